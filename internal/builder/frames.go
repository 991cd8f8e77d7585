// Package builder keeps live builder sessions and streams rendered frames to their previews.
package builder

import (
	"sync"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

// FrameKind distinguishes render frames from the one-off completion frame.
type FrameKind string

const (
	FrameKindRender     FrameKind = "frame"
	FrameKindCompletion FrameKind = "completion"

	frameDefaultBuffer = 8
)

// Frame is one message pushed to a session's previews.
type Frame struct {
	Kind         FrameKind            `json:"kind" msgpack:"kind"`
	SessionID    string               `json:"sessionId" msgpack:"sessionId"`
	Sequence     int64                `json:"sequence" msgpack:"sequence"`
	HTML         string               `json:"html,omitempty" msgpack:"html,omitempty"`
	Snapshot     *timeengine.Snapshot `json:"snapshot,omitempty" msgpack:"snapshot,omitempty"`
	FinishAction model.FinishAction   `json:"finishAction,omitempty" msgpack:"finishAction,omitempty"`
	FinishText   string               `json:"finishMessage,omitempty" msgpack:"finishMessage,omitempty"`
	RedirectURL  string               `json:"redirectUrl,omitempty" msgpack:"redirectUrl,omitempty"`
}

// FrameBroadcaster fans frames out to subscribed previews. Slow subscribers
// miss frames rather than blocking the session.
type FrameBroadcaster struct {
	mutex        sync.Mutex
	nextID       int64
	subscribers  map[int64]chan Frame
	closed       bool
	bufferLength int
}

// NewFrameBroadcaster constructs a broadcaster for session frames.
func NewFrameBroadcaster() *FrameBroadcaster {
	return &FrameBroadcaster{
		subscribers:  make(map[int64]chan Frame),
		bufferLength: frameDefaultBuffer,
	}
}

// Subscribe returns a subscription, or nil once the broadcaster is closed.
func (broadcaster *FrameBroadcaster) Subscribe() *FrameSubscription {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	if broadcaster.closed {
		return nil
	}
	subscriptionID := broadcaster.nextID
	broadcaster.nextID++
	frameChannel := make(chan Frame, broadcaster.bufferLength)
	broadcaster.subscribers[subscriptionID] = frameChannel
	return &FrameSubscription{
		broadcaster: broadcaster,
		identifier:  subscriptionID,
		frames:      frameChannel,
	}
}

// Broadcast delivers the frame to all active subscribers.
func (broadcaster *FrameBroadcaster) Broadcast(frame Frame) {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	if broadcaster.closed || len(broadcaster.subscribers) == 0 {
		return
	}
	for _, channel := range broadcaster.subscribers {
		select {
		case channel <- frame:
		default:
		}
	}
}

// SubscriberCount reports the number of open subscriptions.
func (broadcaster *FrameBroadcaster) SubscriberCount() int {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	return len(broadcaster.subscribers)
}

// Close stops the broadcaster and closes all subscriber channels.
func (broadcaster *FrameBroadcaster) Close() {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	if broadcaster.closed {
		return
	}
	broadcaster.closed = true
	for identifier, channel := range broadcaster.subscribers {
		close(channel)
		delete(broadcaster.subscribers, identifier)
	}
}

func (broadcaster *FrameBroadcaster) remove(identifier int64) {
	broadcaster.mutex.Lock()
	defer broadcaster.mutex.Unlock()
	channel, exists := broadcaster.subscribers[identifier]
	if exists {
		delete(broadcaster.subscribers, identifier)
		close(channel)
	}
}

// FrameSubscription is a single preview's view of a session.
type FrameSubscription struct {
	broadcaster *FrameBroadcaster
	identifier  int64
	frames      chan Frame
	once        sync.Once
}

// Frames exposes the receive-only frame channel.
func (subscription *FrameSubscription) Frames() <-chan Frame {
	if subscription == nil {
		return nil
	}
	return subscription.frames
}

// Close unregisters the subscription and closes its channel.
func (subscription *FrameSubscription) Close() {
	if subscription == nil {
		return
	}
	subscription.once.Do(func() {
		if subscription.broadcaster != nil {
			subscription.broadcaster.remove(subscription.identifier)
		}
	})
}
