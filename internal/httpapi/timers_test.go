package httpapi_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/embed"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
)

type timerResponse struct {
	ID     string            `json:"id"`
	Config model.TimerConfig `json:"config"`
}

func createTimer(testingT *testing.T, harness handlerHarness, body any) timerResponse {
	testingT.Helper()
	recorder := harness.do(testingT, http.MethodPost, "/api/timers", body)
	require.Equal(testingT, http.StatusCreated, recorder.Code, recorder.Body.String())
	return decodeJSON[timerResponse](testingT, recorder)
}

func TestCreateTimerStartsFromDefaults(testingT *testing.T) {
	harness := buildHandlerHarness(testingT)

	created := createTimer(testingT, harness, nil)
	require.True(testingT, strings.HasPrefix(created.ID, "tmr_"), created.ID)
	require.Equal(testingT, model.TimerTypeCountdown, created.Config.TimerType)
	require.Equal(testingT, model.LayoutCentered, created.Config.Layout)

	patched := createTimer(testingT, harness, map[string]any{"text": "Doors open in", "layout": "banner"})
	require.Equal(testingT, "Doors open in", patched.Config.Text)
	require.Equal(testingT, model.LayoutBanner, patched.Config.Layout)
	require.Equal(testingT, 2, harness.registry.SessionCount())
}

func TestCreateTimerRejectsInvalidBodies(testingT *testing.T) {
	testCases := []struct {
		name         string
		body         string
		expectedCode int
		expectedErr  string
	}{
		{name: "malformed json", body: `{"text":`, expectedCode: http.StatusBadRequest, expectedErr: "invalid_json"},
		{name: "unknown field", body: `{"txt":"typo"}`, expectedCode: http.StatusBadRequest, expectedErr: "invalid_json"},
		{name: "redirect without url", body: `{"finishAction":"redirect"}`, expectedCode: http.StatusUnprocessableEntity, expectedErr: "missing_finish_redirect_url"},
		{name: "unknown enum", body: `{"timerStyle":"wavy"}`, expectedCode: http.StatusUnprocessableEntity, expectedErr: "invalid_enum_value"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			harness := buildHandlerHarness(testingT)
			recorder := harness.do(testingT, http.MethodPost, "/api/timers", testCase.body)
			requireErrorCode(testingT, recorder, testCase.expectedCode, testCase.expectedErr)
			require.Zero(testingT, harness.registry.SessionCount())
		})
	}
}

func TestTimerLifecycle(testingT *testing.T) {
	harness := buildHandlerHarness(testingT)
	created := createTimer(testingT, harness, nil)
	timerPath := "/api/timers/" + created.ID

	readRecorder := harness.do(testingT, http.MethodGet, timerPath, nil)
	require.Equal(testingT, http.StatusOK, readRecorder.Code)
	require.Equal(testingT, created.Config, decodeJSON[timerResponse](testingT, readRecorder).Config)

	updateRecorder := harness.do(testingT, http.MethodPatch, timerPath, map[string]any{"buttonText": "Reserve", "showSeconds": false})
	require.Equal(testingT, http.StatusOK, updateRecorder.Code, updateRecorder.Body.String())
	updated := decodeJSON[timerResponse](testingT, updateRecorder).Config
	require.Equal(testingT, "Reserve", updated.ButtonText)
	require.False(testingT, updated.ShowSeconds)
	require.Equal(testingT, created.Config.TargetDate, updated.TargetDate)

	rejected := harness.do(testingT, http.MethodPatch, timerPath, map[string]any{"bannerHeight": 5})
	requireErrorCode(testingT, rejected, http.StatusUnprocessableEntity, "invalid_banner_height")
	unchanged := decodeJSON[timerResponse](testingT, harness.do(testingT, http.MethodGet, timerPath, nil)).Config
	require.Equal(testingT, updated, unchanged)

	deleteRecorder := harness.do(testingT, http.MethodDelete, timerPath, nil)
	require.Equal(testingT, http.StatusNoContent, deleteRecorder.Code)
	requireErrorCode(testingT, harness.do(testingT, http.MethodGet, timerPath, nil), http.StatusNotFound, "unknown_session")
	requireErrorCode(testingT, harness.do(testingT, http.MethodDelete, timerPath, nil), http.StatusNotFound, "unknown_session")
}

func TestPreviewTimerRendersPageWithStreamWiring(testingT *testing.T) {
	harness := buildHandlerHarness(testingT)
	created := createTimer(testingT, harness, map[string]any{"text": "Preview heading"})

	recorder := harness.do(testingT, http.MethodGet, fmt.Sprintf("/api/timers/%s/preview?device=mobile", created.ID), nil)
	require.Equal(testingT, http.StatusOK, recorder.Code)
	require.Contains(testingT, recorder.Header().Get("Content-Type"), "text/html")
	body := recorder.Body.String()
	require.True(testingT, strings.HasPrefix(body, "<!DOCTYPE html>"), body[:32])
	require.Contains(testingT, body, fmt.Sprintf(`data-stream-url="/api/timers/%s/events"`, created.ID))
	require.Contains(testingT, body, fmt.Sprintf(`data-close-url="/api/timers/%s/banner/close"`, created.ID))
	require.Contains(testingT, body, `id="countdown-timer-widget"`)
	require.Contains(testingT, body, "Preview heading")
	require.Contains(testingT, body, "max-width: 375px")

	invalidDevice := harness.do(testingT, http.MethodGet, fmt.Sprintf("/api/timers/%s/preview?device=tablet", created.ID), nil)
	requireErrorCode(testingT, invalidDevice, http.StatusBadRequest, "invalid_device")
}

func TestBannerCloseAndReopen(testingT *testing.T) {
	harness := buildHandlerHarness(testingT)
	created := createTimer(testingT, harness, map[string]any{"layout": "banner"})
	previewPath := fmt.Sprintf("/api/timers/%s/preview", created.ID)

	closeRecorder := harness.do(testingT, http.MethodPost, fmt.Sprintf("/api/timers/%s/banner/close", created.ID), nil)
	require.Equal(testingT, http.StatusNoContent, closeRecorder.Code)
	require.Contains(testingT, harness.do(testingT, http.MethodGet, previewPath, nil).Body.String(), `data-closed="true"`)

	reopenRecorder := harness.do(testingT, http.MethodPost, fmt.Sprintf("/api/timers/%s/banner/reopen", created.ID), nil)
	require.Equal(testingT, http.StatusNoContent, reopenRecorder.Code)
	require.NotContains(testingT, harness.do(testingT, http.MethodGet, previewPath, nil).Body.String(), `data-closed="true"`)
}

func TestTimerEmbedFormats(testingT *testing.T) {
	harness := buildHandlerHarness(testingT)
	created := createTimer(testingT, harness, map[string]any{"text": "Embedded"})
	embedPath := fmt.Sprintf("/api/timers/%s/embed", created.ID)

	inline := harness.do(testingT, http.MethodGet, embedPath, nil)
	require.Equal(testingT, http.StatusOK, inline.Code)
	require.Equal(testingT, "text/plain; charset=utf-8", inline.Header().Get("Content-Type"))
	require.Contains(testingT, inline.Body.String(), `<div id="`+embed.ContainerID+`"></div>`)
	require.Contains(testingT, inline.Body.String(), "window.CountdownForge.mount")
	require.Contains(testingT, inline.Body.String(), `"text": "Embedded"`)

	hosted := harness.do(testingT, http.MethodGet, embedPath+"?format=hosted", nil)
	require.Equal(testingT, http.StatusOK, hosted.Code)
	require.Contains(testingT, hosted.Body.String(), `<script src="https://example.com/widget-runtime.js" defer></script>`)
	require.Contains(testingT, hosted.Body.String(), "data-countdown-forge")

	invalid := harness.do(testingT, http.MethodGet, embedPath+"?format=iframe", nil)
	requireErrorCode(testingT, invalid, http.StatusBadRequest, "invalid_format")
}

func TestExportTimerDownloadsIndentedConfig(testingT *testing.T) {
	harness := buildHandlerHarness(testingT)
	created := createTimer(testingT, harness, nil)

	recorder := harness.do(testingT, http.MethodGet, fmt.Sprintf("/api/timers/%s/export", created.ID), nil)
	require.Equal(testingT, http.StatusOK, recorder.Code)
	require.Equal(testingT,
		fmt.Sprintf("attachment; filename=%q", model.ExportFileName(testExportNow)),
		recorder.Header().Get("Content-Disposition"),
	)
	expected, marshalErr := created.Config.MarshalExport()
	require.NoError(testingT, marshalErr)
	require.Equal(testingT, string(expected), recorder.Body.String())
}
