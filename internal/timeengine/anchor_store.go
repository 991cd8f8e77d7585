package timeengine

import (
	"context"
	"sync"
	"time"
)

// AnchorStore persists the first-visit instant per visitor and key.
// FirstVisit returns the stored instant, recording now when none exists.
type AnchorStore interface {
	FirstVisit(ctx context.Context, visitorID string, anchorKey string, now time.Time) (time.Time, error)
}

// MemoryAnchorStore keeps anchors in process memory.
type MemoryAnchorStore struct {
	mutex   sync.Mutex
	anchors map[string]time.Time
}

func NewMemoryAnchorStore() *MemoryAnchorStore {
	return &MemoryAnchorStore{anchors: make(map[string]time.Time)}
}

func (store *MemoryAnchorStore) FirstVisit(_ context.Context, visitorID string, anchorKey string, now time.Time) (time.Time, error) {
	compositeKey := visitorID + "\x00" + anchorKey
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if existing, found := store.anchors[compositeKey]; found {
		return existing, nil
	}
	store.anchors[compositeKey] = now
	return now, nil
}
