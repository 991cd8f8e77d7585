package render_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/render"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/testutil"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

const (
	previewPagePath   = "/preview"
	previewEventsPath = "/events"
	previewLandedPath = "/landed"
	previewLandedPage = `<!doctype html><html lang="en"><head><title>Landed</title></head><body><p id="landed">Landed</p></body></html>`
	previewStreamHold = 2 * time.Second
)

var previewTestNow = time.Date(2025, time.October, 31, 12, 0, 0, 0, time.UTC)

func redirectTimerConfig(testingT *testing.T) model.TimerConfig {
	testingT.Helper()
	config := model.DefaultTimerConfig(previewTestNow)
	config.FinishAction = model.FinishActionRedirect
	config.FinishRedirectURL = previewLandedPath
	require.NoError(testingT, config.Validate())
	return config
}

func finishedSnapshot() timeengine.Snapshot {
	return timeengine.Snapshot{Mode: model.TimerTypeCountdown, Finished: true}
}

func runningPreviewSnapshot() timeengine.Snapshot {
	return timeengine.Snapshot{Mode: model.TimerTypeCountdown, Remaining: timeengine.Remaining{Minutes: 5}}
}

func servePreview(testingT *testing.T, page render.PreviewPage, events func(http.ResponseWriter, *http.Request)) *httptest.Server {
	testingT.Helper()
	var document bytes.Buffer
	require.NoError(testingT, html.Render(&document, page.Document()))

	mux := http.NewServeMux()
	mux.HandleFunc(previewPagePath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = writer.Write(document.Bytes())
	})
	mux.HandleFunc(previewLandedPath, func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = writer.Write([]byte(previewLandedPage))
	})
	if events != nil {
		mux.HandleFunc(previewEventsPath, events)
	}
	server := httptest.NewServer(mux)
	testingT.Cleanup(server.Close)
	return server
}

func TestPreviewFollowsRedirectFromFinishedFrame(t *testing.T) {
	browserContext := testutil.HeadlessBrowserContext(t)
	config := redirectTimerConfig(t)
	renderer := render.NewTimerRenderer(nil, nil)

	finishedMarkup, renderErr := renderer.RenderHTML(config, finishedSnapshot(), render.TimerState{})
	require.NoError(t, renderErr)
	frame, marshalErr := json.Marshal(map[string]any{"kind": "frame", "sequence": 7, "html": finishedMarkup})
	require.NoError(t, marshalErr)

	page := render.PreviewPage{
		Body:      renderer.Render(config, runningPreviewSnapshot(), render.TimerState{}),
		StreamURL: previewEventsPath,
	}
	server := servePreview(t, page, func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		writer.Header().Set("Cache-Control", "no-cache")
		_, _ = writer.Write([]byte("event: frame\ndata: " + string(frame) + "\n\n"))
		if flusher, flushable := writer.(http.Flusher); flushable {
			flusher.Flush()
		}
		select {
		case <-request.Context().Done():
		case <-time.After(previewStreamHold):
		}
	})

	require.NoError(t, chromedp.Run(browserContext,
		chromedp.Navigate(server.URL+previewPagePath),
		chromedp.WaitVisible("#landed", chromedp.ByQuery),
	))
}

func TestPreviewFollowsRedirectFromFinishedInitialBody(t *testing.T) {
	browserContext := testutil.HeadlessBrowserContext(t)
	config := redirectTimerConfig(t)
	renderer := render.NewTimerRenderer(nil, nil)

	page := render.PreviewPage{Body: renderer.Render(config, finishedSnapshot(), render.TimerState{})}
	server := servePreview(t, page, nil)

	require.NoError(t, chromedp.Run(browserContext,
		chromedp.Navigate(server.URL+previewPagePath),
		chromedp.WaitVisible("#landed", chromedp.ByQuery),
	))
}

func TestPreviewStaysWhileTimerRuns(t *testing.T) {
	browserContext := testutil.HeadlessBrowserContext(t)
	config := redirectTimerConfig(t)
	renderer := render.NewTimerRenderer(nil, nil)

	page := render.PreviewPage{Body: renderer.Render(config, runningPreviewSnapshot(), render.TimerState{})}
	server := servePreview(t, page, nil)

	var path string
	require.NoError(t, chromedp.Run(browserContext,
		chromedp.Navigate(server.URL+previewPagePath),
		chromedp.WaitReady("#preview-root", chromedp.ByQuery),
		chromedp.Sleep(300*time.Millisecond),
		chromedp.Evaluate(`location.pathname`, &path),
	))
	require.Equal(t, previewPagePath, path)
}
