package builder

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

const (
	frameWaitTimeout  = 3 * time.Second
	framePollInterval = 10 * time.Millisecond
)

var builderTestNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type adjustableClock struct {
	mutex   sync.Mutex
	current time.Time
}

func (clock *adjustableClock) Now() time.Time {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	return clock.current
}

func (clock *adjustableClock) Advance(duration time.Duration) {
	clock.mutex.Lock()
	defer clock.mutex.Unlock()
	clock.current = clock.current.Add(duration)
}

func newTestRegistry(testingT *testing.T, logger *zap.Logger) (*Registry, *adjustableClock) {
	testingT.Helper()
	clock := &adjustableClock{current: builderTestNow}
	registry := NewRegistry(RegistryConfig{Clock: clock, Logger: logger})
	testingT.Cleanup(registry.Close)
	return registry, clock
}

func waitForFrame(testingT *testing.T, subscription *FrameSubscription, accept func(Frame) bool) Frame {
	testingT.Helper()
	deadline := time.After(frameWaitTimeout)
	for {
		select {
		case frame, open := <-subscription.Frames():
			require.True(testingT, open, "subscription closed before the expected frame")
			if accept(frame) {
				return frame
			}
		case <-deadline:
			testingT.Fatal("timed out waiting for frame")
		}
	}
}

func TestTimerSessionPublishesInitialFrame(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	session, err := registry.CreateTimer(nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(session.ID(), "tmr_"))

	require.Eventually(t, func() bool {
		return session.Latest().Sequence > 0
	}, frameWaitTimeout, framePollInterval)

	latest := session.Latest()
	require.Equal(t, FrameKindRender, latest.Kind)
	require.Equal(t, session.ID(), latest.SessionID)
	require.NotNil(t, latest.Snapshot)
	require.Equal(t, int64(1), latest.Snapshot.Remaining.Days)
	require.False(t, latest.Snapshot.Finished)
	require.Contains(t, latest.HTML, "countdown-timer-widget")
}

func TestTimerSessionRerendersWithoutRestartForPresentationalEdits(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	session, err := registry.CreateTimer(nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return session.Latest().Sequence > 0
	}, frameWaitTimeout, framePollInterval)

	subscription := session.Subscribe()
	require.NotNil(t, subscription)
	defer subscription.Close()

	text := "Spooky savings end in"
	updated, err := session.Update(model.TimerConfigPatch{Text: &text})
	require.NoError(t, err)
	require.Equal(t, text, updated.Text)

	frame := waitForFrame(t, subscription, func(frame Frame) bool {
		return strings.Contains(frame.HTML, text)
	})
	require.Equal(t, FrameKindRender, frame.Kind)
	require.Equal(t, text, session.Config().Text)
}

func TestTimerSessionRestartsAndCompletesOnce(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	session, err := registry.CreateTimer(nil)
	require.NoError(t, err)

	subscription := session.Subscribe()
	require.NotNil(t, subscription)
	defer subscription.Close()

	pastTarget := builderTestNow.Add(-time.Hour).Format(time.RFC3339)
	_, err = session.Update(model.TimerConfigPatch{TargetDate: &pastTarget})
	require.NoError(t, err)

	completion := waitForFrame(t, subscription, func(frame Frame) bool {
		return frame.Kind == FrameKindCompletion
	})
	require.Equal(t, model.FinishActionMessage, completion.FinishAction)
	require.Equal(t, "Timer Expired", completion.FinishText)
	require.NotNil(t, completion.Snapshot)
	require.True(t, completion.Snapshot.Finished)

	latest := session.Latest()
	require.True(t, latest.Snapshot.Finished)
	require.Contains(t, latest.HTML, "Timer Expired")

	select {
	case frame := <-subscription.Frames():
		require.NotEqual(t, FrameKindCompletion, frame.Kind)
	case <-time.After(1500 * time.Millisecond):
	}
}

func TestTimerSessionLatestFrameCarriesRedirectAfterCompletion(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	config := model.DefaultTimerConfig(builderTestNow)
	config.TargetDate = builderTestNow.Add(-time.Minute).Format(time.RFC3339)
	config.FinishAction = model.FinishActionRedirect
	config.FinishRedirectURL = "https://shop.example.com/after"
	session, err := registry.CreateTimer(&config)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		latest := session.Latest()
		return latest.Snapshot != nil && latest.Snapshot.Finished
	}, frameWaitTimeout, framePollInterval)

	lateSubscription := session.Subscribe()
	require.NotNil(t, lateSubscription)
	defer lateSubscription.Close()

	latest := session.Latest()
	require.Equal(t, FrameKindRender, latest.Kind)
	require.Contains(t, latest.HTML, `data-finished="redirect"`)
	require.Contains(t, latest.HTML, `data-redirect="https://shop.example.com/after"`)
}

func TestTimerSessionRejectsInvalidPatch(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	session, err := registry.CreateTimer(nil)
	require.NoError(t, err)

	redirect := model.FinishActionRedirect
	_, err = session.Update(model.TimerConfigPatch{FinishAction: &redirect})
	require.ErrorIs(t, err, model.ErrMissingRedirectURL)
	require.Equal(t, model.FinishActionMessage, session.Config().FinishAction)

	require.ErrorIs(t, session.SetDevice(model.DeviceView("watch")), ErrInvalidDevice)
	require.NoError(t, session.SetDevice(model.DeviceMobile))
	require.Equal(t, model.DeviceMobile, session.Device())
}

func TestTimerSessionBannerCloseRendersHiddenBanner(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	session, err := registry.CreateTimer(nil)
	require.NoError(t, err)

	banner := model.LayoutBanner
	_, err = session.Update(model.TimerConfigPatch{Layout: &banner})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return session.Latest().Sequence > 0
	}, frameWaitTimeout, framePollInterval)

	session.SetBannerClosed(true)
	require.True(t, session.BannerClosed())
	require.Contains(t, session.Latest().HTML, `data-closed="true"`)

	session.SetBannerClosed(false)
	require.NotContains(t, session.Latest().HTML, "data-closed")
}

func TestTimerSessionCloseDisconnectsSubscribers(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	session, err := registry.CreateTimer(nil)
	require.NoError(t, err)

	subscription := session.Subscribe()
	require.NotNil(t, subscription)

	require.NoError(t, registry.CloseTimer(session.ID()))
	require.Eventually(t, func() bool {
		for {
			select {
			case _, open := <-subscription.Frames():
				if !open {
					return true
				}
			default:
				return false
			}
		}
	}, frameWaitTimeout, framePollInterval)

	text := "after close"
	_, err = session.Update(model.TimerConfigPatch{Text: &text})
	require.ErrorIs(t, err, ErrSessionClosed)
	require.Nil(t, session.Subscribe())

	_, lookupErr := registry.Timer(session.ID())
	require.ErrorIs(t, lookupErr, ErrSessionNotFound)
	require.ErrorIs(t, registry.CloseTimer(session.ID()), ErrSessionNotFound)
}

func TestWidgetSessionEditLifecycle(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	session, err := registry.CreateWidget(nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(session.ID(), "wgt_"))
	require.Equal(t, int64(1), session.Latest().Sequence)

	_, err = session.SaveEdit()
	require.ErrorIs(t, err, ErrNoActiveEdit)

	edit, err := session.BeginEdit("1")
	require.NoError(t, err)
	require.Equal(t, "Halloween Sale", edit.Original.Content)
	require.Contains(t, session.Latest().HTML, `data-selected="true"`)

	content := "Winter Sale"
	_, err = session.UpdateBlock("1", model.BlockPatch{Content: &content})
	require.NoError(t, err)
	require.Contains(t, session.Latest().HTML, content)

	restored, err := session.CancelEdit()
	require.NoError(t, err)
	require.Equal(t, "Halloween Sale", restored.Blocks[0].Content)
	_, editing := session.Editing()
	require.False(t, editing)
	require.NotContains(t, session.Latest().HTML, `data-selected="true"`)

	_, err = session.BeginEdit("1")
	require.NoError(t, err)
	_, err = session.UpdateBlock("1", model.BlockPatch{Content: &content})
	require.NoError(t, err)
	saved, err := session.SaveEdit()
	require.NoError(t, err)
	require.Equal(t, content, saved.Blocks[0].Content)

	_, err = session.BeginEdit("missing")
	require.ErrorIs(t, err, model.ErrUnknownBlock)
}

func TestWidgetSessionBlockOperations(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	session, err := registry.CreateWidget(nil)
	require.NoError(t, err)

	subscription := session.Subscribe()
	require.NotNil(t, subscription)
	defer subscription.Close()

	appended, err := session.AppendBlock(model.BlockTypeText)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(appended.ID, "blk_"))
	frame := waitForFrame(t, subscription, func(Frame) bool { return true })
	require.Contains(t, frame.HTML, appended.ID)

	_, err = session.AppendBlock(model.BlockType("video"))
	require.ErrorIs(t, err, model.ErrInvalidBlockType)

	toggled, err := session.ToggleBlockVisibility(appended.ID)
	require.NoError(t, err)
	require.False(t, toggled.Blocks[len(toggled.Blocks)-1].Visible)
	require.NotContains(t, session.Latest().HTML, appended.ID)

	moved, err := session.MoveBlock(appended.ID, 0)
	require.NoError(t, err)
	require.Equal(t, appended.ID, moved.Blocks[0].ID)

	_, err = session.BeginEdit(appended.ID)
	require.NoError(t, err)
	removed, err := session.RemoveBlock(appended.ID)
	require.NoError(t, err)
	require.Len(t, removed.Blocks, 6)
	_, editing := session.Editing()
	require.False(t, editing)

	require.NoError(t, session.SetDevice(model.DeviceMobile))
	require.ErrorIs(t, session.SetDevice(model.DeviceView("tv")), ErrInvalidDevice)

	position := model.PopupPosition("left")
	_, err = session.Update(model.WidgetConfigPatch{Position: &position})
	require.ErrorIs(t, err, model.ErrInvalidPopupPosition)
}

func TestRegistryClosesIdleSessions(t *testing.T) {
	logger, logs := observer.New(zap.InfoLevel)
	registry, clock := newTestRegistry(t, zap.New(logger))

	idleTimer, err := registry.CreateTimer(nil)
	require.NoError(t, err)
	idleWidget, err := registry.CreateWidget(nil)
	require.NoError(t, err)

	clock.Advance(DefaultIdleTimeout - time.Minute)
	activeWidget, err := registry.CreateWidget(nil)
	require.NoError(t, err)
	require.Equal(t, 3, registry.SessionCount())

	clock.Advance(2 * time.Minute)
	sweeper := NewSweeper(registry, time.Hour, zap.New(logger))
	sweeper.sweep(t.Context())

	require.Equal(t, 1, registry.SessionCount())
	_, err = registry.Timer(idleTimer.ID())
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = registry.Widget(idleWidget.ID())
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = registry.Widget(activeWidget.ID())
	require.NoError(t, err)

	sweptEntries := logs.FilterMessage(logEventSessionsSwept).All()
	require.Len(t, sweptEntries, 1)
	require.Equal(t, int64(2), sweptEntries[0].ContextMap()[logFieldClosedCount])
}

func TestRegistryRejectsInvalidInitialConfig(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	config := model.DefaultTimerConfig(builderTestNow)
	config.BannerHeight = 0
	_, err := registry.CreateTimer(&config)
	require.Error(t, err)

	widget := model.DefaultWidgetConfig()
	widget.Type = model.WidgetType("modal")
	_, err = registry.CreateWidget(&widget)
	require.ErrorIs(t, err, model.ErrInvalidWidgetType)
}

func TestFrameBroadcasterDropsForSlowSubscribers(t *testing.T) {
	broadcaster := NewFrameBroadcaster()
	subscription := broadcaster.Subscribe()
	require.Equal(t, 1, broadcaster.SubscriberCount())

	for sequence := int64(1); sequence <= frameDefaultBuffer+4; sequence++ {
		broadcaster.Broadcast(Frame{Kind: FrameKindRender, Sequence: sequence})
	}
	require.Len(t, subscription.Frames(), frameDefaultBuffer)
	first := <-subscription.Frames()
	require.Equal(t, int64(1), first.Sequence)

	subscription.Close()
	subscription.Close()
	require.Equal(t, 0, broadcaster.SubscriberCount())

	broadcaster.Close()
	require.Nil(t, broadcaster.Subscribe())

	var nilSubscription *FrameSubscription
	require.Nil(t, nilSubscription.Frames())
	nilSubscription.Close()
}

var _ timeengine.Clock = (*adjustableClock)(nil)

func TestWidgetPreviewBodyHighlightsRequestedBlock(t *testing.T) {
	registry, _ := newTestRegistry(t, nil)
	session, err := registry.CreateWidget(nil)
	require.NoError(t, err)

	body, err := session.PreviewBody("2")
	require.NoError(t, err)
	require.NotNil(t, body)

	_, err = session.PreviewBody("missing")
	require.ErrorIs(t, err, model.ErrUnknownBlock)
}
