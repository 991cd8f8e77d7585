package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testTimerButtonURL = "https://shop.example.com/sale?utm=<x>&y=1"
	testTimerText      = `Ends "soon" </script> & more`
)

var testTimerNow = time.Date(2025, time.October, 31, 12, 0, 0, 0, time.UTC)

func TestDefaultTimerConfigStartsOneDayAhead(t *testing.T) {
	config := DefaultTimerConfig(testTimerNow)

	require.NoError(t, config.Validate())
	require.Equal(t, TimerTypeCountdown, config.TimerType)
	require.Equal(t, LayoutCentered, config.Layout)
	require.Equal(t, "2025-11-01T12:00:00.000Z", config.TargetDate)
	require.Equal(t, "UTC", config.Timezone)
	require.Equal(t, 4, config.VisibleUnitCount())
	require.Nil(t, config.BackgroundImage)
}

func TestApplyRetainsUnspecifiedFields(t *testing.T) {
	config := DefaultTimerConfig(testTimerNow)
	text := "New heading"
	layout := LayoutBanner

	updated, err := config.Apply(TimerConfigPatch{Text: &text, Layout: &layout})
	require.NoError(t, err)

	require.Equal(t, text, updated.Text)
	require.Equal(t, LayoutBanner, updated.Layout)
	require.Equal(t, config.ButtonText, updated.ButtonText)
	require.Equal(t, config.TargetDate, updated.TargetDate)
	require.Equal(t, LayoutCentered, config.Layout)
}

func TestApplyRejectsHidingLastVisibleUnit(t *testing.T) {
	hidden := false
	config, err := DefaultTimerConfig(testTimerNow).Apply(TimerConfigPatch{
		ShowDays:    &hidden,
		ShowHours:   &hidden,
		ShowMinutes: &hidden,
	})
	require.NoError(t, err)
	require.False(t, config.CanHideUnit(TimeUnitSeconds))
	require.True(t, config.CanHideUnit(TimeUnitDays))

	updated, err := config.Apply(TimerConfigPatch{ShowSeconds: &hidden})
	require.ErrorIs(t, err, ErrLastVisibleUnit)
	require.True(t, updated.ShowSeconds)

	_, toggleErr := config.WithUnitVisibility(TimeUnitSeconds, false)
	require.ErrorIs(t, toggleErr, ErrLastVisibleUnit)
}

func TestApplyValidatesFields(t *testing.T) {
	testCases := []struct {
		name     string
		patch    func() TimerConfigPatch
		expected error
	}{
		{
			name: "unknown timer type",
			patch: func() TimerConfigPatch {
				value := TimerType("stopwatch")
				return TimerConfigPatch{TimerType: &value}
			},
			expected: ErrInvalidEnumValue,
		},
		{
			name: "unknown digit animation",
			patch: func() TimerConfigPatch {
				value := DigitAnimation("spin")
				return TimerConfigPatch{DigitAnimation: &value}
			},
			expected: ErrInvalidEnumValue,
		},
		{
			name: "banner too short",
			patch: func() TimerConfigPatch {
				value := 59
				return TimerConfigPatch{BannerHeight: &value}
			},
			expected: ErrInvalidBannerHeight,
		},
		{
			name: "banner too tall",
			patch: func() TimerConfigPatch {
				value := 201
				return TimerConfigPatch{BannerHeight: &value}
			},
			expected: ErrInvalidBannerHeight,
		},
		{
			name: "zero scale",
			patch: func() TimerConfigPatch {
				value := 0.0
				return TimerConfigPatch{BannerScale: &value}
			},
			expected: ErrInvalidScale,
		},
		{
			name: "redirect without url",
			patch: func() TimerConfigPatch {
				value := FinishActionRedirect
				return TimerConfigPatch{FinishAction: &value}
			},
			expected: ErrMissingRedirectURL,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			_, err := DefaultTimerConfig(testTimerNow).Apply(testCase.patch())
			require.ErrorIs(testingT, err, testCase.expected)
		})
	}
}

func TestDecodeTimerConfigPatchHandlesBackgroundImage(t *testing.T) {
	config := DefaultTimerConfig(testTimerNow)

	setPatch, err := DecodeTimerConfigPatch([]byte(`{"backgroundImage":"data:image/png;base64,AAA"}`))
	require.NoError(t, err)
	withImage, err := config.Apply(setPatch)
	require.NoError(t, err)
	require.True(t, withImage.HasBackgroundImage())
	require.Equal(t, "data:image/png;base64,AAA", *withImage.BackgroundImage)

	untouchedPatch, err := DecodeTimerConfigPatch([]byte(`{"text":"hello"}`))
	require.NoError(t, err)
	untouched, err := withImage.Apply(untouchedPatch)
	require.NoError(t, err)
	require.True(t, untouched.HasBackgroundImage())

	clearPatch, err := DecodeTimerConfigPatch([]byte(`{"backgroundImage":null}`))
	require.NoError(t, err)
	cleared, err := withImage.Apply(clearPatch)
	require.NoError(t, err)
	require.False(t, cleared.HasBackgroundImage())

	_, unknownErr := DecodeTimerConfigPatch([]byte(`{"colour":"red"}`))
	require.Error(t, unknownErr)
}

func TestLabelVisibleRequiresAllThreeSwitches(t *testing.T) {
	config := DefaultTimerConfig(testTimerNow)
	require.True(t, config.LabelVisible(TimeUnitHours))

	config.ShowHoursLabel = false
	require.False(t, config.LabelVisible(TimeUnitHours))

	config.ShowHoursLabel = true
	config.ShowHours = false
	require.False(t, config.LabelVisible(TimeUnitHours))

	config.ShowHours = true
	config.ShowLabels = false
	require.False(t, config.LabelVisible(TimeUnitHours))
}

func TestTimeUnitMilliseconds(t *testing.T) {
	expected := map[TimeUnit]int64{
		TimeUnitDays:    86400000,
		TimeUnitHours:   3600000,
		TimeUnitMinutes: 60000,
		TimeUnitSeconds: 1000,
	}
	for unit, milliseconds := range expected {
		actual, err := unit.Milliseconds()
		require.NoError(t, err)
		require.Equal(t, milliseconds, actual)
	}
	_, err := TimeUnit("weeks").Milliseconds()
	require.ErrorIs(t, err, ErrUnknownTimeUnit)
}

func TestExportUsesDatedFileNameAndIndentedJSON(t *testing.T) {
	require.Equal(t, "timer-config-2025-10-31.json", ExportFileName(testTimerNow))
	lateEvening := time.Date(2025, time.October, 31, 20, 30, 0, 0, time.FixedZone("EDT", -4*60*60))
	require.Equal(t, "timer-config-2025-11-01.json", ExportFileName(lateEvening))
	earlyMorning := time.Date(2025, time.November, 1, 1, 0, 0, 0, time.FixedZone("CET", 2*60*60))
	require.Equal(t, "timer-config-2025-10-31.json", ExportFileName(earlyMorning))

	config := DefaultTimerConfig(testTimerNow)
	config.ButtonURL = testTimerButtonURL
	config.Text = testTimerText

	exported, err := config.MarshalExport()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(exported), "{\n  \"timerType\": \"countdown\""))
	require.Contains(t, string(exported), testTimerButtonURL)

	var decoded TimerConfig
	require.NoError(t, json.Unmarshal(exported, &decoded))
	require.Equal(t, config, decoded)
}

func TestTimingChangedIgnoresPresentationFields(t *testing.T) {
	config := DefaultTimerConfig(testTimerNow)

	restyled := config
	restyled.TimerColor = "#000000"
	require.False(t, config.TimingChanged(restyled))

	retimed := config
	retimed.Timezone = "Europe/Paris"
	require.True(t, config.TimingChanged(retimed))
}

func TestVisitorAnchorKeyIncludesDurationAndUnit(t *testing.T) {
	require.Equal(t, "timer_visitor_start_time:24:hours", VisitorAnchorKey(24, TimeUnitHours))
	require.Equal(t, "timer_visitor_start_time:1.5:days", VisitorAnchorKey(1.5, TimeUnitDays))
}

func TestValidateRejectsVisitorDurationBeyondRepresentableRange(t *testing.T) {
	config := DefaultTimerConfig(testTimerNow)
	config.TimerType = TimerTypeVisitorCountdown
	config.VisitorCountdownUnit = TimeUnitDays

	config.VisitorCountdownDuration = 120000
	require.ErrorIs(t, config.Validate(), ErrInvalidDuration)

	config.VisitorCountdownUnit = TimeUnitSeconds
	config.VisitorCountdownDuration = 1e13
	require.ErrorIs(t, config.Validate(), ErrInvalidDuration)

	config.VisitorCountdownUnit = TimeUnitDays
	config.VisitorCountdownDuration = 100000
	require.NoError(t, config.Validate())
}
