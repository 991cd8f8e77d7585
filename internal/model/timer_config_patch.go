package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	exportFileNamePrefix = "timer-config-"
	exportFileNameSuffix = ".json"
	exportDateLayout     = "2006-01-02"
	exportIndent         = "  "
)

// OptionalString distinguishes an absent JSON field from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

func (optional *OptionalString) UnmarshalJSON(data []byte) error {
	optional.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		optional.Value = nil
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	optional.Value = &value
	return nil
}

func (optional OptionalString) MarshalJSON() ([]byte, error) {
	if optional.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*optional.Value)
}

// TimerConfigPatch carries a partial update. Nil fields keep the prior value.
type TimerConfigPatch struct {
	TimerType                   *TimerType      `json:"timerType,omitempty"`
	Layout                      *LayoutMode     `json:"layout,omitempty"`
	BannerPosition              *BannerPosition `json:"bannerPosition,omitempty"`
	BannerScale                 *float64        `json:"bannerScale,omitempty"`
	BannerHeight                *int            `json:"bannerHeight,omitempty"`
	ShowCloseButton             *bool           `json:"showCloseButton,omitempty"`
	Text                        *string         `json:"text,omitempty"`
	TextPosition                *TextPosition   `json:"textPosition,omitempty"`
	TextAnimation               *TextAnimation  `json:"textAnimation,omitempty"`
	TextAnimationDuration       *float64        `json:"textAnimationDuration,omitempty"`
	ButtonText                  *string         `json:"buttonText,omitempty"`
	ButtonPosition              *ButtonPosition `json:"buttonPosition,omitempty"`
	ButtonURL                   *string         `json:"buttonUrl,omitempty"`
	ShowButton                  *bool           `json:"showButton,omitempty"`
	ButtonTextAnimation         *TextAnimation  `json:"buttonTextAnimation,omitempty"`
	ButtonTextAnimationDuration *float64        `json:"buttonTextAnimationDuration,omitempty"`
	TargetDate                  *string         `json:"targetDate,omitempty"`
	Timezone                    *string         `json:"timezone,omitempty"`
	TimerStyle                  *TimerStyle     `json:"timerStyle,omitempty"`
	DigitAnimation              *DigitAnimation `json:"digitAnimation,omitempty"`
	TimerSize                   *float64        `json:"timerSize,omitempty"`
	BackgroundColor             *string         `json:"backgroundColor,omitempty"`
	BackgroundImage             OptionalString  `json:"backgroundImage"`
	TextFont                    *string         `json:"textFont,omitempty"`
	ButtonFont                  *string         `json:"buttonFont,omitempty"`
	TextColor                   *string         `json:"textColor,omitempty"`
	TimerColor                  *string         `json:"timerColor,omitempty"`
	TimerTextColor              *string         `json:"timerTextColor,omitempty"`
	ButtonColor                 *string         `json:"buttonColor,omitempty"`
	ButtonTextColor             *string         `json:"buttonTextColor,omitempty"`
	ButtonHoverColor            *string         `json:"buttonHoverColor,omitempty"`
	ShowLabels                  *bool           `json:"showLabels,omitempty"`
	ShowDaysLabel               *bool           `json:"showDaysLabel,omitempty"`
	ShowHoursLabel              *bool           `json:"showHoursLabel,omitempty"`
	ShowMinutesLabel            *bool           `json:"showMinutesLabel,omitempty"`
	ShowSecondsLabel            *bool           `json:"showSecondsLabel,omitempty"`
	ShowDays                    *bool           `json:"showDays,omitempty"`
	ShowHours                   *bool           `json:"showHours,omitempty"`
	ShowMinutes                 *bool           `json:"showMinutes,omitempty"`
	ShowSeconds                 *bool           `json:"showSeconds,omitempty"`
	LabelDays                   *string         `json:"labelDays,omitempty"`
	LabelHours                  *string         `json:"labelHours,omitempty"`
	LabelMinutes                *string         `json:"labelMinutes,omitempty"`
	LabelSeconds                *string         `json:"labelSeconds,omitempty"`
	ShowTimerShadow             *bool           `json:"showTimerShadow,omitempty"`
	ShowButtonShadow            *bool           `json:"showButtonShadow,omitempty"`
	CustomTextCSS               *string         `json:"customTextCSS,omitempty"`
	CustomButtonCSS             *string         `json:"customButtonCSS,omitempty"`
	CustomTimerCSS              *string         `json:"customTimerCSS,omitempty"`
	StartNumber                 *int64          `json:"startNumber,omitempty"`
	EndNumber                   *int64          `json:"endNumber,omitempty"`
	CounterDuration             *float64        `json:"counterDuration,omitempty"`
	VisitorCountdownDuration    *float64        `json:"visitorCountdownDuration,omitempty"`
	VisitorCountdownUnit        *TimeUnit       `json:"visitorCountdownUnit,omitempty"`
	FinishAction                *FinishAction   `json:"finishAction,omitempty"`
	FinishMessage               *string         `json:"finishMessage,omitempty"`
	FinishRedirectURL           *string         `json:"finishRedirectUrl,omitempty"`
}

// DecodeTimerConfigPatch parses a JSON merge document into a patch.
func DecodeTimerConfigPatch(payload []byte) (TimerConfigPatch, error) {
	var patch TimerConfigPatch
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&patch); err != nil {
		return TimerConfigPatch{}, fmt.Errorf("decode timer config patch: %w", err)
	}
	return patch, nil
}

// Apply merges the patch into a copy of the configuration and validates the result.
// The receiver is never modified.
func (config TimerConfig) Apply(patch TimerConfigPatch) (TimerConfig, error) {
	updated := config
	assign(&updated.TimerType, patch.TimerType)
	assign(&updated.Layout, patch.Layout)
	assign(&updated.BannerPosition, patch.BannerPosition)
	assign(&updated.BannerScale, patch.BannerScale)
	assign(&updated.BannerHeight, patch.BannerHeight)
	assign(&updated.ShowCloseButton, patch.ShowCloseButton)
	assign(&updated.Text, patch.Text)
	assign(&updated.TextPosition, patch.TextPosition)
	assign(&updated.TextAnimation, patch.TextAnimation)
	assign(&updated.TextAnimationDuration, patch.TextAnimationDuration)
	assign(&updated.ButtonText, patch.ButtonText)
	assign(&updated.ButtonPosition, patch.ButtonPosition)
	assign(&updated.ButtonURL, patch.ButtonURL)
	assign(&updated.ShowButton, patch.ShowButton)
	assign(&updated.ButtonTextAnimation, patch.ButtonTextAnimation)
	assign(&updated.ButtonTextAnimationDuration, patch.ButtonTextAnimationDuration)
	assign(&updated.TargetDate, patch.TargetDate)
	assign(&updated.Timezone, patch.Timezone)
	assign(&updated.TimerStyle, patch.TimerStyle)
	assign(&updated.DigitAnimation, patch.DigitAnimation)
	assign(&updated.TimerSize, patch.TimerSize)
	assign(&updated.BackgroundColor, patch.BackgroundColor)
	if patch.BackgroundImage.Set {
		if patch.BackgroundImage.Value == nil {
			updated.BackgroundImage = nil
		} else {
			image := *patch.BackgroundImage.Value
			updated.BackgroundImage = &image
		}
	}
	assign(&updated.TextFont, patch.TextFont)
	assign(&updated.ButtonFont, patch.ButtonFont)
	assign(&updated.TextColor, patch.TextColor)
	assign(&updated.TimerColor, patch.TimerColor)
	assign(&updated.TimerTextColor, patch.TimerTextColor)
	assign(&updated.ButtonColor, patch.ButtonColor)
	assign(&updated.ButtonTextColor, patch.ButtonTextColor)
	assign(&updated.ButtonHoverColor, patch.ButtonHoverColor)
	assign(&updated.ShowLabels, patch.ShowLabels)
	assign(&updated.ShowDaysLabel, patch.ShowDaysLabel)
	assign(&updated.ShowHoursLabel, patch.ShowHoursLabel)
	assign(&updated.ShowMinutesLabel, patch.ShowMinutesLabel)
	assign(&updated.ShowSecondsLabel, patch.ShowSecondsLabel)
	assign(&updated.ShowDays, patch.ShowDays)
	assign(&updated.ShowHours, patch.ShowHours)
	assign(&updated.ShowMinutes, patch.ShowMinutes)
	assign(&updated.ShowSeconds, patch.ShowSeconds)
	assign(&updated.LabelDays, patch.LabelDays)
	assign(&updated.LabelHours, patch.LabelHours)
	assign(&updated.LabelMinutes, patch.LabelMinutes)
	assign(&updated.LabelSeconds, patch.LabelSeconds)
	assign(&updated.ShowTimerShadow, patch.ShowTimerShadow)
	assign(&updated.ShowButtonShadow, patch.ShowButtonShadow)
	assign(&updated.CustomTextCSS, patch.CustomTextCSS)
	assign(&updated.CustomButtonCSS, patch.CustomButtonCSS)
	assign(&updated.CustomTimerCSS, patch.CustomTimerCSS)
	assign(&updated.StartNumber, patch.StartNumber)
	assign(&updated.EndNumber, patch.EndNumber)
	assign(&updated.CounterDuration, patch.CounterDuration)
	assign(&updated.VisitorCountdownDuration, patch.VisitorCountdownDuration)
	assign(&updated.VisitorCountdownUnit, patch.VisitorCountdownUnit)
	assign(&updated.FinishAction, patch.FinishAction)
	assign(&updated.FinishMessage, patch.FinishMessage)
	assign(&updated.FinishRedirectURL, patch.FinishRedirectURL)

	if validationErr := updated.Validate(); validationErr != nil {
		return config, validationErr
	}
	return updated, nil
}

func assign[T any](target *T, value *T) {
	if value != nil {
		*target = *value
	}
}

// ExportFileName names the configuration download for the UTC day of now.
func ExportFileName(now time.Time) string {
	return exportFileNamePrefix + now.UTC().Format(exportDateLayout) + exportFileNameSuffix
}

// MarshalExport renders the configuration as two-space indented JSON.
func (config TimerConfig) MarshalExport() ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", exportIndent)
	if err := encoder.Encode(config); err != nil {
		return nil, fmt.Errorf("marshal timer config: %w", err)
	}
	return bytes.TrimRight(buffer.Bytes(), "\n"), nil
}
