package layout

import (
	"sort"
	"strings"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/styles"
)

// AnimationTarget says which element of a digit the animation runs on.
type AnimationTarget string

const (
	AnimationTargetBox  AnimationTarget = "box"
	AnimationTargetText AnimationTarget = "text"
)

// AnimationAsset binds an animation variant to its keyframes and timing.
type AnimationAsset struct {
	Keyframes   string
	Timing      string
	Duration    string
	Target      AnimationTarget
	ExtraStyles styles.StyleMap
	Definition  string
}

// None reports whether the asset applies no animation.
func (asset AnimationAsset) None() bool {
	return asset.Keyframes == ""
}

// Style returns the declarations that start the animation. repeatSeconds
// overrides the fixed duration and makes the animation repeat forever.
func (asset AnimationAsset) Style(repeatSeconds float64) styles.StyleMap {
	if asset.None() {
		return styles.StyleMap{}
	}
	result := styles.StyleMap{}.Merge(asset.ExtraStyles)
	if repeatSeconds > 0 {
		result["animation"] = asset.Keyframes + " " + formatNumber(repeatSeconds) + "s infinite " + asset.Timing
		return result
	}
	if repeatSeconds < 0 || asset.Duration == "" {
		return styles.StyleMap{}
	}
	result["animation"] = asset.Keyframes + " " + asset.Duration + " " + asset.Timing
	return result
}

var textAnimationAssets = map[model.TextAnimation]AnimationAsset{
	model.TextAnimationNone: {},
	model.TextAnimationGlitch: {
		Keyframes: "cf-text-glitch",
		Timing:    "linear",
		Definition: "@keyframes cf-text-glitch { 0%, 100% { transform: translate(0); } 2% { transform: translate(-2px, 2px); } " +
			"4% { transform: translate(-2px, -2px); } 6% { transform: translate(2px, 2px); } " +
			"8% { transform: translate(2px, -2px); } 10% { transform: translate(0); } }",
	},
	model.TextAnimationFade: {
		Keyframes: "cf-text-fade",
		Timing:    "ease-out",
		Definition: "@keyframes cf-text-fade { 0% { opacity: 0; transform: translateY(-10px); } " +
			"10% { opacity: 1; transform: translateY(0); } 100% { opacity: 1; transform: translateY(0); } }",
	},
	model.TextAnimationPulse: {
		Keyframes: "cf-text-pulse",
		Timing:    "linear",
		Definition: "@keyframes cf-text-pulse { 0%, 100% { transform: scale(1); opacity: 1; } " +
			"5% { transform: scale(1.05); opacity: 0.8; } 10% { transform: scale(1); opacity: 1; } }",
	},
	model.TextAnimationWave: {
		Keyframes: "cf-text-wave",
		Timing:    "ease-in-out",
		Definition: "@keyframes cf-text-wave { 0%, 100% { transform: translateY(0); } 2.5% { transform: translateY(-10px); } " +
			"7.5% { transform: translateY(10px); } 10% { transform: translateY(0); } }",
	},
	model.TextAnimationTypewriter: {
		Keyframes:   "cf-text-typewriter",
		Timing:      "steps(40, end)",
		ExtraStyles: styles.StyleMap{"overflow": "hidden", "whiteSpace": "nowrap"},
		Definition:  "@keyframes cf-text-typewriter { 0% { width: 0; } 10% { width: 100%; } 100% { width: 100%; } }",
	},
}

var digitAnimationAssets = map[model.DigitAnimation]AnimationAsset{
	model.DigitAnimationNone: {},
	model.DigitAnimationBounce: {
		Keyframes:  "cf-bounce-digit",
		Timing:     "ease-in-out",
		Duration:   "0.5s",
		Target:     AnimationTargetBox,
		Definition: "@keyframes cf-bounce-digit { 0%, 100% { transform: scale(1); } 50% { transform: scale(1.15); } }",
	},
	model.DigitAnimationFade: {
		Keyframes:  "cf-fade-digit",
		Timing:     "ease-in-out",
		Duration:   "0.5s",
		Target:     AnimationTargetBox,
		Definition: "@keyframes cf-fade-digit { 0% { opacity: 0; } 100% { opacity: 1; } }",
	},
	model.DigitAnimationFlip: {
		Keyframes:   "cf-flip-digit",
		Timing:      "ease-in-out",
		Duration:    "0.6s",
		Target:      AnimationTargetBox,
		ExtraStyles: styles.StyleMap{"transformStyle": "preserve-3d"},
		Definition:  "@keyframes cf-flip-digit { 0% { transform: rotateX(0deg); } 50% { transform: rotateX(90deg); } 100% { transform: rotateX(0deg); } }",
	},
	model.DigitAnimationSlide: {
		Keyframes:  "cf-slide-digit",
		Timing:     "ease-out",
		Duration:   "0.4s",
		Target:     AnimationTargetText,
		Definition: "@keyframes cf-slide-digit { 0% { transform: translateY(-20px); opacity: 0; } 100% { transform: translateY(0); opacity: 1; } }",
	},
}

// TextAnimationAsset looks up a heading or button text animation. Unknown
// variants resolve to no animation.
func TextAnimationAsset(animation model.TextAnimation) AnimationAsset {
	return textAnimationAssets[animation]
}

// DigitAnimationAsset looks up a digit animation. Unknown variants resolve to no animation.
func DigitAnimationAsset(animation model.DigitAnimation) AnimationAsset {
	return digitAnimationAssets[animation]
}

// KeyframesCSS returns every keyframe definition, sorted by name.
func KeyframesCSS() string {
	definitions := make([]string, 0, len(textAnimationAssets)+len(digitAnimationAssets))
	for _, asset := range textAnimationAssets {
		if !asset.None() {
			definitions = append(definitions, asset.Definition)
		}
	}
	for _, asset := range digitAnimationAssets {
		if !asset.None() {
			definitions = append(definitions, asset.Definition)
		}
	}
	sort.Strings(definitions)
	return strings.Join(definitions, "\n")
}

// BoxShape is the geometry of one digit box.
type BoxShape struct {
	Radius     string
	Borderless bool
	Circle     bool
}

var boxShapes = map[model.TimerStyle]BoxShape{
	model.TimerStyleCircle:  {Radius: "50%", Circle: true},
	model.TimerStyleSquare:  {Radius: "4px"},
	model.TimerStyleRounded: {Radius: "12px"},
	model.TimerStyleNone:    {Radius: "0", Borderless: true},
}

// BoxShapeFor looks up the digit box shape; unknown styles fall back to rounded.
func BoxShapeFor(timerStyle model.TimerStyle) BoxShape {
	if shape, found := boxShapes[timerStyle]; found {
		return shape
	}
	return boxShapes[model.TimerStyleRounded]
}
