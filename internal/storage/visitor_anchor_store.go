package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
)

const (
	errorMessageRecordVisitorAnchor = "storage: record visitor anchor"
	errorMessageLoadVisitorAnchor   = "storage: load visitor anchor"
)

// ErrMissingDatabase indicates a store was constructed without a database handle.
var ErrMissingDatabase = errors.New("storage: missing database")

// VisitorAnchorStore keeps first-visit instants in the visitor_anchors table.
type VisitorAnchorStore struct {
	database *gorm.DB
}

func NewVisitorAnchorStore(database *gorm.DB) *VisitorAnchorStore {
	return &VisitorAnchorStore{database: database}
}

// FirstVisit inserts now for the visitor and key unless a row exists, then
// returns whichever instant is stored. Concurrent first visits keep the
// earliest committed row.
func (store *VisitorAnchorStore) FirstVisit(ctx context.Context, visitorID string, anchorKey string, now time.Time) (time.Time, error) {
	if store == nil || store.database == nil {
		return time.Time{}, ErrMissingDatabase
	}
	anchor, anchorErr := model.NewVisitorAnchor(model.VisitorAnchorInput{
		VisitorID:    visitorID,
		AnchorKey:    anchorKey,
		FirstVisitAt: now,
	})
	if anchorErr != nil {
		return time.Time{}, anchorErr
	}

	database := store.database.WithContext(ctx)
	createErr := database.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "visitor_id"}, {Name: "anchor_key"}},
		DoNothing: true,
	}).Create(&anchor).Error
	if createErr != nil {
		return time.Time{}, fmt.Errorf("%s: %w", errorMessageRecordVisitorAnchor, createErr)
	}

	var stored model.VisitorAnchor
	loadErr := database.
		Where("visitor_id = ? AND anchor_key = ?", anchor.VisitorID, anchor.AnchorKey).
		First(&stored).Error
	if loadErr != nil {
		return time.Time{}, fmt.Errorf("%s: %w", errorMessageLoadVisitorAnchor, loadErr)
	}
	return stored.FirstVisitAt, nil
}
