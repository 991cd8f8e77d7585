package model

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	visitorAnchorKeyPrefix    = "timer_visitor_start_time"
	visitorAnchorKeySeparator = ":"
	visitorIDMaxLength        = 64
	anchorKeyMaxLength        = 200
)

var (
	ErrInvalidVisitorID = errors.New("invalid_visitor_id")
	ErrInvalidAnchorKey = errors.New("invalid_anchor_key")
)

// VisitorAnchor records the first instant a visitor saw a visitor countdown.
// One row exists per visitor and anchor key; it is never overwritten.
type VisitorAnchor struct {
	ID           string    `gorm:"primaryKey;size:36"`
	VisitorID    string    `gorm:"not null;size:64;uniqueIndex:idx_visitor_anchor_key"`
	AnchorKey    string    `gorm:"not null;size:200;uniqueIndex:idx_visitor_anchor_key"`
	FirstVisitAt time.Time `gorm:"not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

// VisitorAnchorInput holds the values needed to record a first visit.
type VisitorAnchorInput struct {
	VisitorID    string
	AnchorKey    string
	FirstVisitAt time.Time
}

// NewVisitorAnchor constructs a validated VisitorAnchor.
func NewVisitorAnchor(input VisitorAnchorInput) (VisitorAnchor, error) {
	visitorID := strings.TrimSpace(input.VisitorID)
	if visitorID == "" || len(visitorID) > visitorIDMaxLength {
		return VisitorAnchor{}, ErrInvalidVisitorID
	}
	anchorKey := strings.TrimSpace(input.AnchorKey)
	if anchorKey == "" || len(anchorKey) > anchorKeyMaxLength {
		return VisitorAnchor{}, ErrInvalidAnchorKey
	}
	firstVisit := input.FirstVisitAt
	if firstVisit.IsZero() {
		firstVisit = time.Now()
	}
	return VisitorAnchor{
		ID:           uuid.NewString(),
		VisitorID:    visitorID,
		AnchorKey:    anchorKey,
		FirstVisitAt: firstVisit.UTC(),
	}, nil
}

// VisitorAnchorKey builds the storage key shared by the server store and the
// browser runtime's localStorage entry.
func VisitorAnchorKey(duration float64, unit TimeUnit) string {
	return strings.Join([]string{
		visitorAnchorKeyPrefix,
		strconv.FormatFloat(duration, 'f', -1, 64),
		string(unit),
	}, visitorAnchorKeySeparator)
}
