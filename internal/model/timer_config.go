package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// TimerType selects the time algorithm a countdown widget runs.
type TimerType string

const (
	TimerTypeCountdown        TimerType = "countdown"
	TimerTypeVisitorCountdown TimerType = "visitor-countdown"
	TimerTypeNumberCounter    TimerType = "number-counter"
)

// LayoutMode selects between the full-viewport and the pinned strip presentation.
type LayoutMode string

const (
	LayoutCentered LayoutMode = "centered"
	LayoutBanner   LayoutMode = "banner"
)

type BannerPosition string

const (
	BannerPositionTop    BannerPosition = "top"
	BannerPositionBottom BannerPosition = "bottom"
)

type TextPosition string

const (
	TextPositionTop    TextPosition = "top"
	TextPositionRight  TextPosition = "right"
	TextPositionBottom TextPosition = "bottom"
)

type ButtonPosition string

const (
	ButtonPositionLeft   ButtonPosition = "left"
	ButtonPositionBottom ButtonPosition = "bottom"
)

// TextAnimation names a repeating heading or button text effect.
type TextAnimation string

const (
	TextAnimationNone       TextAnimation = "none"
	TextAnimationGlitch     TextAnimation = "glitch"
	TextAnimationFade       TextAnimation = "fade"
	TextAnimationPulse      TextAnimation = "pulse"
	TextAnimationWave       TextAnimation = "wave"
	TextAnimationTypewriter TextAnimation = "typewriter"
)

type TimerStyle string

const (
	TimerStyleCircle  TimerStyle = "circle"
	TimerStyleSquare  TimerStyle = "square"
	TimerStyleRounded TimerStyle = "rounded"
	TimerStyleNone    TimerStyle = "none"
)

// DigitAnimation names the effect applied to each digit box when it re-renders.
type DigitAnimation string

const (
	DigitAnimationNone   DigitAnimation = "none"
	DigitAnimationBounce DigitAnimation = "bounce"
	DigitAnimationFade   DigitAnimation = "fade"
	DigitAnimationFlip   DigitAnimation = "flip"
	DigitAnimationSlide  DigitAnimation = "slide"
)

// FinishAction governs what a widget shows once its timer or counter ends.
type FinishAction string

const (
	FinishActionHide     FinishAction = "hide"
	FinishActionMessage  FinishAction = "message"
	FinishActionRedirect FinishAction = "redirect"
)

// TimeUnit is one of the four displayable time units, ordered broadest first.
type TimeUnit string

const (
	TimeUnitDays    TimeUnit = "days"
	TimeUnitHours   TimeUnit = "hours"
	TimeUnitMinutes TimeUnit = "minutes"
	TimeUnitSeconds TimeUnit = "seconds"
)

const (
	MinimumBannerHeight   = 60
	MaximumBannerHeight   = 200
	ReferenceBannerHeight = 80

	millisecondsPerSecond = int64(1000)
	millisecondsPerMinute = 60 * millisecondsPerSecond
	millisecondsPerHour   = 60 * millisecondsPerMinute
	millisecondsPerDay    = 24 * millisecondsPerHour

	defaultTargetLeadTime = 24 * time.Hour

	// maximumVisitorMilliseconds keeps first visit plus duration inside time.Duration.
	maximumVisitorMilliseconds = math.MaxInt64 / int64(time.Millisecond)
)

// TimeUnits lists the units broadest first; render order follows this slice.
var TimeUnits = []TimeUnit{TimeUnitDays, TimeUnitHours, TimeUnitMinutes, TimeUnitSeconds}

var (
	ErrLastVisibleUnit      = errors.New("at_least_one_unit_visible")
	ErrInvalidEnumValue     = errors.New("invalid_enum_value")
	ErrInvalidBannerHeight  = errors.New("invalid_banner_height")
	ErrInvalidScale         = errors.New("invalid_scale")
	ErrInvalidDuration      = errors.New("invalid_duration")
	ErrUnknownTimeUnit      = errors.New("unknown_time_unit")
	ErrMissingRedirectURL   = errors.New("missing_finish_redirect_url")
	errorMessageInvalidEnum = "%w: %s=%q"
)

func (timerType TimerType) Valid() bool {
	switch timerType {
	case TimerTypeCountdown, TimerTypeVisitorCountdown, TimerTypeNumberCounter:
		return true
	}
	return false
}

func (layoutMode LayoutMode) Valid() bool {
	return layoutMode == LayoutCentered || layoutMode == LayoutBanner
}

func (bannerPosition BannerPosition) Valid() bool {
	return bannerPosition == BannerPositionTop || bannerPosition == BannerPositionBottom
}

func (textPosition TextPosition) Valid() bool {
	switch textPosition {
	case TextPositionTop, TextPositionRight, TextPositionBottom:
		return true
	}
	return false
}

func (buttonPosition ButtonPosition) Valid() bool {
	return buttonPosition == ButtonPositionLeft || buttonPosition == ButtonPositionBottom
}

func (textAnimation TextAnimation) Valid() bool {
	switch textAnimation {
	case TextAnimationNone, TextAnimationGlitch, TextAnimationFade, TextAnimationPulse, TextAnimationWave, TextAnimationTypewriter:
		return true
	}
	return false
}

func (timerStyle TimerStyle) Valid() bool {
	switch timerStyle {
	case TimerStyleCircle, TimerStyleSquare, TimerStyleRounded, TimerStyleNone:
		return true
	}
	return false
}

func (digitAnimation DigitAnimation) Valid() bool {
	switch digitAnimation {
	case DigitAnimationNone, DigitAnimationBounce, DigitAnimationFade, DigitAnimationFlip, DigitAnimationSlide:
		return true
	}
	return false
}

func (finishAction FinishAction) Valid() bool {
	switch finishAction {
	case FinishActionHide, FinishActionMessage, FinishActionRedirect:
		return true
	}
	return false
}

func (unit TimeUnit) Valid() bool {
	return unit.Rank() >= 0
}

// Rank returns the position of the unit in TimeUnits, or -1 for unknown units.
func (unit TimeUnit) Rank() int {
	for index, candidate := range TimeUnits {
		if candidate == unit {
			return index
		}
	}
	return -1
}

// Milliseconds returns the length of one unit.
func (unit TimeUnit) Milliseconds() (int64, error) {
	switch unit {
	case TimeUnitDays:
		return millisecondsPerDay, nil
	case TimeUnitHours:
		return millisecondsPerHour, nil
	case TimeUnitMinutes:
		return millisecondsPerMinute, nil
	case TimeUnitSeconds:
		return millisecondsPerSecond, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTimeUnit, string(unit))
}

// TimerConfig is the complete, serializable description of one countdown widget.
// Both the live preview and the exported snippet read it; neither writes it.
type TimerConfig struct {
	TimerType                   TimerType      `json:"timerType"`
	Layout                      LayoutMode     `json:"layout"`
	BannerPosition              BannerPosition `json:"bannerPosition"`
	BannerScale                 float64        `json:"bannerScale"`
	BannerHeight                int            `json:"bannerHeight"`
	ShowCloseButton             bool           `json:"showCloseButton"`
	Text                        string         `json:"text"`
	TextPosition                TextPosition   `json:"textPosition"`
	TextAnimation               TextAnimation  `json:"textAnimation"`
	TextAnimationDuration       float64        `json:"textAnimationDuration"`
	ButtonText                  string         `json:"buttonText"`
	ButtonPosition              ButtonPosition `json:"buttonPosition"`
	ButtonURL                   string         `json:"buttonUrl"`
	ShowButton                  bool           `json:"showButton"`
	ButtonTextAnimation         TextAnimation  `json:"buttonTextAnimation"`
	ButtonTextAnimationDuration float64        `json:"buttonTextAnimationDuration"`
	TargetDate                  string         `json:"targetDate"`
	Timezone                    string         `json:"timezone"`
	TimerStyle                  TimerStyle     `json:"timerStyle"`
	DigitAnimation              DigitAnimation `json:"digitAnimation"`
	TimerSize                   float64        `json:"timerSize"`
	BackgroundColor             string         `json:"backgroundColor"`
	BackgroundImage             *string        `json:"backgroundImage"`
	TextFont                    string         `json:"textFont"`
	ButtonFont                  string         `json:"buttonFont"`
	TextColor                   string         `json:"textColor"`
	TimerColor                  string         `json:"timerColor"`
	TimerTextColor              string         `json:"timerTextColor"`
	ButtonColor                 string         `json:"buttonColor"`
	ButtonTextColor             string         `json:"buttonTextColor"`
	ButtonHoverColor            string         `json:"buttonHoverColor"`
	ShowLabels                  bool           `json:"showLabels"`
	ShowDaysLabel               bool           `json:"showDaysLabel"`
	ShowHoursLabel              bool           `json:"showHoursLabel"`
	ShowMinutesLabel            bool           `json:"showMinutesLabel"`
	ShowSecondsLabel            bool           `json:"showSecondsLabel"`
	ShowDays                    bool           `json:"showDays"`
	ShowHours                   bool           `json:"showHours"`
	ShowMinutes                 bool           `json:"showMinutes"`
	ShowSeconds                 bool           `json:"showSeconds"`
	LabelDays                   string         `json:"labelDays"`
	LabelHours                  string         `json:"labelHours"`
	LabelMinutes                string         `json:"labelMinutes"`
	LabelSeconds                string         `json:"labelSeconds"`
	ShowTimerShadow             bool           `json:"showTimerShadow"`
	ShowButtonShadow            bool           `json:"showButtonShadow"`
	CustomTextCSS               string         `json:"customTextCSS"`
	CustomButtonCSS             string         `json:"customButtonCSS"`
	CustomTimerCSS              string         `json:"customTimerCSS"`
	StartNumber                 int64          `json:"startNumber"`
	EndNumber                   int64          `json:"endNumber"`
	CounterDuration             float64        `json:"counterDuration"`
	VisitorCountdownDuration    float64        `json:"visitorCountdownDuration"`
	VisitorCountdownUnit        TimeUnit       `json:"visitorCountdownUnit"`
	FinishAction                FinishAction   `json:"finishAction"`
	FinishMessage               string         `json:"finishMessage"`
	FinishRedirectURL           string         `json:"finishRedirectUrl"`
}

// DefaultTimerConfig returns the configuration a new builder starts from: a
// countdown one day after now, centered on the page.
func DefaultTimerConfig(now time.Time) TimerConfig {
	return TimerConfig{
		TimerType:                   TimerTypeCountdown,
		Layout:                      LayoutCentered,
		BannerPosition:              BannerPositionTop,
		BannerScale:                 1,
		BannerHeight:                ReferenceBannerHeight,
		ShowCloseButton:             true,
		Text:                        "⚡ Limited-time offer! Sale ends in",
		TextPosition:                TextPositionTop,
		TextAnimation:               TextAnimationNone,
		TextAnimationDuration:       2,
		ButtonText:                  "Shop now",
		ButtonPosition:              ButtonPositionBottom,
		ButtonURL:                   "https://example.com",
		ShowButton:                  true,
		ButtonTextAnimation:         TextAnimationNone,
		ButtonTextAnimationDuration: 2,
		TargetDate:                  now.UTC().Add(defaultTargetLeadTime).Format("2006-01-02T15:04:05.000Z"),
		Timezone:                    "UTC",
		TimerStyle:                  TimerStyleRounded,
		DigitAnimation:              DigitAnimationNone,
		TimerSize:                   1,
		BackgroundColor:             "#f8fafc",
		BackgroundImage:             nil,
		TextFont:                    "Inter",
		ButtonFont:                  "Inter",
		TextColor:                   "#1e293b",
		TimerColor:                  "#3b82f6",
		TimerTextColor:              "#ffffff",
		ButtonColor:                 "#1f2937",
		ButtonTextColor:             "#ffffff",
		ButtonHoverColor:            "#111827",
		ShowLabels:                  true,
		ShowDaysLabel:               true,
		ShowHoursLabel:              true,
		ShowMinutesLabel:            true,
		ShowSecondsLabel:            true,
		ShowDays:                    true,
		ShowHours:                   true,
		ShowMinutes:                 true,
		ShowSeconds:                 true,
		LabelDays:                   "Days",
		LabelHours:                  "Hours",
		LabelMinutes:                "Minutes",
		LabelSeconds:                "Seconds",
		ShowTimerShadow:             true,
		ShowButtonShadow:            true,
		StartNumber:                 0,
		EndNumber:                   1000,
		CounterDuration:             60,
		VisitorCountdownDuration:    24,
		VisitorCountdownUnit:        TimeUnitHours,
		FinishAction:                FinishActionMessage,
		FinishMessage:               "Timer Expired",
	}
}

// Validate reports the first rule the configuration breaks.
func (config TimerConfig) Validate() error {
	enumChecks := []struct {
		field string
		value string
		valid bool
	}{
		{"timerType", string(config.TimerType), config.TimerType.Valid()},
		{"layout", string(config.Layout), config.Layout.Valid()},
		{"bannerPosition", string(config.BannerPosition), config.BannerPosition.Valid()},
		{"textPosition", string(config.TextPosition), config.TextPosition.Valid()},
		{"textAnimation", string(config.TextAnimation), config.TextAnimation.Valid()},
		{"buttonPosition", string(config.ButtonPosition), config.ButtonPosition.Valid()},
		{"buttonTextAnimation", string(config.ButtonTextAnimation), config.ButtonTextAnimation.Valid()},
		{"timerStyle", string(config.TimerStyle), config.TimerStyle.Valid()},
		{"digitAnimation", string(config.DigitAnimation), config.DigitAnimation.Valid()},
		{"visitorCountdownUnit", string(config.VisitorCountdownUnit), config.VisitorCountdownUnit.Valid()},
		{"finishAction", string(config.FinishAction), config.FinishAction.Valid()},
	}
	for _, check := range enumChecks {
		if !check.valid {
			return fmt.Errorf(errorMessageInvalidEnum, ErrInvalidEnumValue, check.field, check.value)
		}
	}

	if config.VisibleUnitCount() == 0 {
		return ErrLastVisibleUnit
	}
	if config.BannerHeight < MinimumBannerHeight || config.BannerHeight > MaximumBannerHeight {
		return fmt.Errorf("%w: %d", ErrInvalidBannerHeight, config.BannerHeight)
	}
	if config.BannerScale <= 0 || config.TimerSize <= 0 {
		return ErrInvalidScale
	}
	if config.TextAnimationDuration < 0 || config.ButtonTextAnimationDuration < 0 ||
		config.CounterDuration < 0 || config.VisitorCountdownDuration < 0 {
		return ErrInvalidDuration
	}
	if unitMilliseconds, unitErr := config.VisitorCountdownUnit.Milliseconds(); unitErr == nil &&
		config.VisitorCountdownDuration*float64(unitMilliseconds) > float64(maximumVisitorMilliseconds) {
		return fmt.Errorf("%w: visitorCountdownDuration=%v", ErrInvalidDuration, config.VisitorCountdownDuration)
	}
	if config.FinishAction == FinishActionRedirect && strings.TrimSpace(config.FinishRedirectURL) == "" {
		return ErrMissingRedirectURL
	}
	return nil
}

// UnitVisible reports whether the unit's digit boxes render.
func (config TimerConfig) UnitVisible(unit TimeUnit) bool {
	switch unit {
	case TimeUnitDays:
		return config.ShowDays
	case TimeUnitHours:
		return config.ShowHours
	case TimeUnitMinutes:
		return config.ShowMinutes
	case TimeUnitSeconds:
		return config.ShowSeconds
	}
	return false
}

// LabelVisible gates a unit label on showLabels, the unit's own label switch and the unit itself.
func (config TimerConfig) LabelVisible(unit TimeUnit) bool {
	if !config.ShowLabels || !config.UnitVisible(unit) {
		return false
	}
	switch unit {
	case TimeUnitDays:
		return config.ShowDaysLabel
	case TimeUnitHours:
		return config.ShowHoursLabel
	case TimeUnitMinutes:
		return config.ShowMinutesLabel
	case TimeUnitSeconds:
		return config.ShowSecondsLabel
	}
	return false
}

func (config TimerConfig) UnitLabel(unit TimeUnit) string {
	switch unit {
	case TimeUnitDays:
		return config.LabelDays
	case TimeUnitHours:
		return config.LabelHours
	case TimeUnitMinutes:
		return config.LabelMinutes
	case TimeUnitSeconds:
		return config.LabelSeconds
	}
	return ""
}

func (config TimerConfig) VisibleUnitCount() int {
	visibleCount := 0
	for _, unit := range TimeUnits {
		if config.UnitVisible(unit) {
			visibleCount++
		}
	}
	return visibleCount
}

// CanHideUnit reports whether hiding the unit would still leave another unit visible.
func (config TimerConfig) CanHideUnit(unit TimeUnit) bool {
	remaining := 0
	for _, candidate := range TimeUnits {
		if candidate != unit && config.UnitVisible(candidate) {
			remaining++
		}
	}
	return remaining > 0
}

// WithUnitVisibility returns a copy with the unit toggled. Hiding the last visible unit fails.
func (config TimerConfig) WithUnitVisibility(unit TimeUnit, visible bool) (TimerConfig, error) {
	if !unit.Valid() {
		return config, fmt.Errorf("%w: %q", ErrUnknownTimeUnit, string(unit))
	}
	patch := TimerConfigPatch{}
	switch unit {
	case TimeUnitDays:
		patch.ShowDays = &visible
	case TimeUnitHours:
		patch.ShowHours = &visible
	case TimeUnitMinutes:
		patch.ShowMinutes = &visible
	case TimeUnitSeconds:
		patch.ShowSeconds = &visible
	}
	return config.Apply(patch)
}

// HasBackgroundImage reports whether an image should replace the background color.
func (config TimerConfig) HasBackgroundImage() bool {
	return config.BackgroundImage != nil && strings.TrimSpace(*config.BackgroundImage) != ""
}

// VisitorAnchorKey identifies the first-visit instant for one duration and unit pair.
func (config TimerConfig) VisitorAnchorKey() string {
	return VisitorAnchorKey(config.VisitorCountdownDuration, config.VisitorCountdownUnit)
}

// TimingChanged reports whether any field that drives the time algorithm differs.
func (config TimerConfig) TimingChanged(other TimerConfig) bool {
	return config.TimerType != other.TimerType ||
		config.TargetDate != other.TargetDate ||
		config.Timezone != other.Timezone ||
		config.VisitorCountdownDuration != other.VisitorCountdownDuration ||
		config.VisitorCountdownUnit != other.VisitorCountdownUnit ||
		config.StartNumber != other.StartNumber ||
		config.EndNumber != other.EndNumber ||
		config.CounterDuration != other.CounterDuration
}
