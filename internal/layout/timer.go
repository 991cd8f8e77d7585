// Package layout turns widget configurations into concrete geometry and base styles.
package layout

import (
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/styles"
)

type FlexDirection string

const (
	FlexRow    FlexDirection = "row"
	FlexColumn FlexDirection = "column"
)

// Slot names a structural region of the timer widget.
type Slot string

const (
	SlotHeading Slot = "heading"
	SlotStack   Slot = "stack"
	SlotTimer   Slot = "timer"
	SlotButton  Slot = "button"
	SlotActions Slot = "actions"
)

const (
	SystemFontStack = "-apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif"
	ShadowStyle     = "0 10px 15px -3px rgba(0, 0, 0, 0.1)"

	centeredBoxWidth      = 64.0
	centeredBoxHeight     = 80.0
	centeredDigitFontSize = 36.0
	bannerBoxWidth        = 48.0
	bannerBoxHeight       = 56.0
	bannerDigitFontSize   = 24.0
	contentMaxWidth       = "1152px"
)

// BannerGeometry places the strip and scales its content.
type BannerGeometry struct {
	Edge   model.BannerPosition
	Height int
	Scale  float64
}

// UnitSlot is one displayed time unit.
type UnitSlot struct {
	Unit      model.TimeUnit
	Label     string
	ShowLabel bool
}

// TimerLayout holds the resolved structure and base styles of a timer widget.
// Custom CSS is applied on top by the renderer.
type TimerLayout struct {
	Mode        model.LayoutMode
	Banner      BannerGeometry
	Direction   FlexDirection
	Outer       []Slot
	Stack       []Slot
	Units       []UnitSlot
	CounterMode bool
	ShowButton  bool
	ShowClose   bool
	Shape       BoxShape
	Fonts       []string

	HeadingAnimation AnimationAsset
	ButtonAnimation  AnimationAsset
	DigitAnimation   AnimationAsset

	ContainerStyle  styles.StyleMap
	InnerStyle      styles.StyleMap
	HeadingStyle    styles.StyleMap
	HeadingWrapper  styles.StyleMap
	StackStyle      styles.StyleMap
	TimerRowStyle   styles.StyleMap
	UnitStyle       styles.StyleMap
	DigitRowStyle   styles.StyleMap
	DigitBoxStyle   styles.StyleMap
	DigitTextStyle  styles.StyleMap
	LabelStyle      styles.StyleMap
	ActionsStyle    styles.StyleMap
	ButtonStyle     styles.StyleMap
	ButtonTextStyle styles.StyleMap
	CloseStyle      styles.StyleMap
	MessageStyle    styles.StyleMap
}

// CombinedBannerScale grows content with the banner height relative to the
// 80px reference, multiplied by the explicit scale.
func CombinedBannerScale(config model.TimerConfig) float64 {
	return config.BannerScale * float64(config.BannerHeight) / float64(model.ReferenceBannerHeight)
}

// Direction puts heading, timer and button in a row when the heading sits to
// the right or the button to the left.
func Direction(config model.TimerConfig) FlexDirection {
	if config.TextPosition == model.TextPositionRight || config.ButtonPosition == model.ButtonPositionLeft {
		return FlexRow
	}
	return FlexColumn
}

// DisplayUnits returns the unit boxes to render, broadest first. Visitor
// countdowns only show units at or below their configured granularity.
func DisplayUnits(config model.TimerConfig) []UnitSlot {
	if config.TimerType == model.TimerTypeNumberCounter {
		return nil
	}
	minimumRank := 0
	if config.TimerType == model.TimerTypeVisitorCountdown && config.VisitorCountdownUnit.Valid() {
		minimumRank = config.VisitorCountdownUnit.Rank()
	}
	units := make([]UnitSlot, 0, len(model.TimeUnits))
	for _, unit := range model.TimeUnits {
		if unit.Rank() < minimumRank || !config.UnitVisible(unit) {
			continue
		}
		units = append(units, UnitSlot{
			Unit:      unit,
			Label:     config.UnitLabel(unit),
			ShowLabel: config.LabelVisible(unit),
		})
	}
	if len(units) == 0 && minimumRank > 0 {
		granularity := config.VisitorCountdownUnit
		units = append(units, UnitSlot{
			Unit:      granularity,
			Label:     config.UnitLabel(granularity),
			ShowLabel: config.ShowLabels,
		})
	}
	return units
}

// BackgroundStyle resolves an image over a color.
func BackgroundStyle(config model.TimerConfig) styles.StyleMap {
	if config.HasBackgroundImage() {
		if imageURL, safe := CSSURL(*config.BackgroundImage); safe {
			return styles.StyleMap{
				"backgroundColor":    "transparent",
				"backgroundImage":    imageURL,
				"backgroundSize":     "cover",
				"backgroundPosition": "center",
			}
		}
	}
	return styles.StyleMap{"backgroundColor": config.BackgroundColor}
}

// CSSURL wraps an address in url("..."), refusing characters that would end the value.
func CSSURL(address string) (string, bool) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" || strings.ContainsAny(trimmed, "\"\\\n\r") || !styles.SafeValue(trimmed) {
		return "", false
	}
	return "url(\"" + trimmed + "\")", true
}

// FontFamily quotes a configured family and appends a generic fallback.
func FontFamily(family string) string {
	cleaned := strings.TrimSpace(strings.NewReplacer("'", "", "\"", "", ";", "").Replace(family))
	if cleaned == "" {
		return "inherit"
	}
	return "'" + cleaned + "', sans-serif"
}

// ResolveTimer computes the timer widget layout.
func ResolveTimer(config model.TimerConfig) TimerLayout {
	timerLayout := TimerLayout{
		Mode:             config.Layout,
		Direction:        Direction(config),
		Units:            DisplayUnits(config),
		CounterMode:      config.TimerType == model.TimerTypeNumberCounter,
		ShowButton:       config.ShowButton,
		Shape:            BoxShapeFor(config.TimerStyle),
		Fonts:            fontsFor(config.TextFont, config.ButtonFont),
		HeadingAnimation: TextAnimationAsset(config.TextAnimation),
		ButtonAnimation:  TextAnimationAsset(config.ButtonTextAnimation),
		DigitAnimation:   DigitAnimationAsset(config.DigitAnimation),
	}

	if config.Layout == model.LayoutBanner {
		resolveBanner(config, &timerLayout)
	} else {
		resolveCentered(config, &timerLayout)
	}

	timerLayout.HeadingStyle = timerLayout.HeadingStyle.Merge(
		styles.StyleMap{"color": config.TextColor, "fontFamily": FontFamily(config.TextFont)},
		timerLayout.HeadingAnimation.Style(config.TextAnimationDuration),
	)
	timerLayout.DigitRowStyle = styles.StyleMap{"display": "flex", "gap": "4px"}
	timerLayout.DigitBoxStyle = timerLayout.DigitBoxStyle.Merge(styles.StyleMap{
		"display":         "flex",
		"alignItems":      "center",
		"justifyContent":  "center",
		"overflow":        "hidden",
		"borderRadius":    timerLayout.Shape.Radius,
		"backgroundColor": config.TimerColor,
	})
	if timerLayout.Shape.Borderless {
		timerLayout.DigitBoxStyle["border"] = "0"
	}
	if config.ShowTimerShadow {
		timerLayout.DigitBoxStyle["boxShadow"] = ShadowStyle
	}
	timerLayout.DigitTextStyle = timerLayout.DigitTextStyle.Merge(styles.StyleMap{
		"fontWeight": "700",
		"lineHeight": "1",
		"color":      config.TimerTextColor,
	})
	timerLayout.LabelStyle = timerLayout.LabelStyle.Merge(styles.StyleMap{
		"fontWeight": "500",
		"color":      config.TextColor,
	})
	timerLayout.ButtonStyle = timerLayout.ButtonStyle.Merge(styles.StyleMap{
		"display":         "inline-block",
		"fontWeight":      "600",
		"borderRadius":    "8px",
		"textDecoration":  "none",
		"transition":      "background-color 0.3s",
		"backgroundColor": config.ButtonColor,
		"color":           config.ButtonTextColor,
		"fontFamily":      FontFamily(config.ButtonFont),
	})
	if config.ShowButtonShadow {
		timerLayout.ButtonStyle["boxShadow"] = ShadowStyle
	}
	timerLayout.ButtonTextStyle = styles.StyleMap{"display": "inline-block"}.Merge(
		timerLayout.ButtonAnimation.Style(config.ButtonTextAnimationDuration),
	)
	timerLayout.MessageStyle = styles.StyleMap{
		"fontSize":   "24px",
		"fontWeight": "600",
		"textAlign":  "center",
		"color":      config.TextColor,
	}
	return timerLayout
}

func resolveCentered(config model.TimerConfig, timerLayout *TimerLayout) {
	size := config.TimerSize
	if size <= 0 {
		size = 1
	}
	boxWidth := centeredBoxWidth * size
	boxHeight := centeredBoxHeight * size
	if timerLayout.Shape.Circle {
		boxWidth = boxHeight
	}

	timerLayout.Outer = []Slot{}
	if config.TextPosition == model.TextPositionTop || config.TextPosition == model.TextPositionRight {
		timerLayout.Outer = append(timerLayout.Outer, SlotHeading)
	}
	timerLayout.Outer = append(timerLayout.Outer, SlotStack)
	if config.TextPosition == model.TextPositionBottom {
		timerLayout.Outer = append(timerLayout.Outer, SlotHeading)
	}
	timerLayout.Stack = []Slot{}
	if config.ShowButton && config.ButtonPosition == model.ButtonPositionLeft {
		timerLayout.Stack = append(timerLayout.Stack, SlotButton)
	}
	timerLayout.Stack = append(timerLayout.Stack, SlotTimer)
	if config.ShowButton && config.ButtonPosition == model.ButtonPositionBottom {
		timerLayout.Stack = append(timerLayout.Stack, SlotButton)
	}

	timerLayout.ContainerStyle = styles.StyleMap{
		"display":        "flex",
		"alignItems":     "center",
		"justifyContent": "center",
		"padding":        "48px 24px",
		"minHeight":      "400px",
		"boxSizing":      "border-box",
		"fontFamily":     SystemFontStack,
	}.Merge(BackgroundStyle(config))
	timerLayout.InnerStyle = styles.StyleMap{
		"display":        "flex",
		"flexDirection":  string(timerLayout.Direction),
		"alignItems":     "center",
		"justifyContent": "center",
		"gap":            "32px",
		"maxWidth":       contentMaxWidth,
		"width":          "100%",
	}
	timerLayout.HeadingStyle = styles.StyleMap{
		"margin":     "0",
		"fontSize":   "30px",
		"fontWeight": "700",
		"textAlign":  "center",
	}
	timerLayout.StackStyle = styles.StyleMap{
		"display":       "flex",
		"flexDirection": "column",
		"alignItems":    "center",
		"gap":           "24px",
	}
	timerLayout.TimerRowStyle = styles.StyleMap{
		"display":        "flex",
		"flexWrap":       "wrap",
		"alignItems":     "center",
		"justifyContent": "center",
		"gap":            "16px",
	}
	timerLayout.UnitStyle = styles.StyleMap{
		"display":       "flex",
		"flexDirection": "column",
		"alignItems":    "center",
		"gap":           "8px",
	}
	timerLayout.DigitBoxStyle = styles.StyleMap{"width": pixels(boxWidth), "height": pixels(boxHeight)}
	timerLayout.DigitTextStyle = styles.StyleMap{"fontSize": pixels(centeredDigitFontSize * size)}
	timerLayout.LabelStyle = styles.StyleMap{"fontSize": "14px"}
	timerLayout.ButtonStyle = styles.StyleMap{"padding": "16px 32px", "fontSize": "18px"}
}

func resolveBanner(config model.TimerConfig, timerLayout *TimerLayout) {
	boxWidth := bannerBoxWidth
	if timerLayout.Shape.Circle {
		boxWidth = bannerBoxHeight
	}
	timerLayout.Banner = BannerGeometry{
		Edge:   config.BannerPosition,
		Height: config.BannerHeight,
		Scale:  CombinedBannerScale(config),
	}
	timerLayout.Direction = FlexRow
	timerLayout.ShowClose = config.ShowCloseButton
	timerLayout.Outer = []Slot{SlotHeading, SlotTimer, SlotActions}
	timerLayout.Stack = nil

	edge := "top"
	if config.BannerPosition == model.BannerPositionBottom {
		edge = "bottom"
	}
	timerLayout.ContainerStyle = styles.StyleMap{
		"position":   "fixed",
		edge:         "0",
		"left":       "0",
		"right":      "0",
		"zIndex":     "50",
		"height":     strconv.Itoa(config.BannerHeight) + "px",
		"overflow":   "hidden",
		"boxSizing":  "border-box",
		"fontFamily": SystemFontStack,
	}.Merge(BackgroundStyle(config))
	timerLayout.InnerStyle = styles.StyleMap{
		"display":         "flex",
		"alignItems":      "center",
		"justifyContent":  "space-between",
		"gap":             "24px",
		"height":          "100%",
		"maxWidth":        contentMaxWidth,
		"margin":          "0 auto",
		"padding":         "0 24px",
		"boxSizing":       "border-box",
		"transform":       "scale(" + formatNumber(timerLayout.Banner.Scale) + ")",
		"transformOrigin": "center",
	}
	timerLayout.HeadingWrapper = styles.StyleMap{"flexShrink": "0", "maxWidth": "360px"}
	timerLayout.HeadingStyle = styles.StyleMap{
		"margin":          "0",
		"fontSize":        "20px",
		"fontWeight":      "700",
		"lineHeight":      "1.25",
		"display":         "-webkit-box",
		"WebkitLineClamp": "2",
		"WebkitBoxOrient": "vertical",
		"overflow":        "hidden",
		"textOverflow":    "ellipsis",
	}
	timerLayout.TimerRowStyle = styles.StyleMap{
		"display":    "flex",
		"alignItems": "center",
		"gap":        "8px",
		"flexShrink": "0",
	}
	timerLayout.UnitStyle = styles.StyleMap{
		"display":       "flex",
		"flexDirection": "column",
		"alignItems":    "center",
		"gap":           "4px",
	}
	timerLayout.DigitBoxStyle = styles.StyleMap{"width": pixels(boxWidth), "height": pixels(bannerBoxHeight)}
	timerLayout.DigitTextStyle = styles.StyleMap{"fontSize": pixels(bannerDigitFontSize)}
	timerLayout.LabelStyle = styles.StyleMap{"fontSize": "12px"}
	timerLayout.ActionsStyle = styles.StyleMap{
		"display":    "flex",
		"alignItems": "center",
		"gap":        "16px",
		"flexShrink": "0",
	}
	timerLayout.ButtonStyle = styles.StyleMap{"padding": "12px 24px", "fontSize": "16px"}
	timerLayout.CloseStyle = styles.StyleMap{
		"background": "transparent",
		"border":     "none",
		"padding":    "8px",
		"cursor":     "pointer",
		"fontSize":   "20px",
		"lineHeight": "1",
		"color":      config.TextColor,
	}
}

func fontsFor(families ...string) []string {
	fonts := make([]string, 0, len(families))
	seen := map[string]struct{}{}
	for _, family := range families {
		trimmed := strings.TrimSpace(family)
		if trimmed == "" {
			continue
		}
		if _, duplicate := seen[trimmed]; duplicate {
			continue
		}
		seen[trimmed] = struct{}{}
		fonts = append(fonts, trimmed)
	}
	return fonts
}

func pixels(value float64) string {
	return formatNumber(value) + "px"
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
