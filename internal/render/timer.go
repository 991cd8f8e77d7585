package render

import (
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/layout"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/styles"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

const (
	widgetRootID        = "countdown-timer-widget"
	attributeWidget     = "data-widget"
	attributeLayout     = "data-layout"
	attributeClosed     = "data-closed"
	widgetKindTimer     = "timer"
	closeButtonLabel    = "Close banner"
	closeButtonGlyph    = "×"
	actionCloseBanner   = "close"
	mobilePreviewWidth  = "375px"
	slotFinishedMessage = "finish-message"
)

// TimerState is presentational state that is not part of the configuration.
type TimerState struct {
	Device       model.DeviceView
	BannerClosed bool
	Previous     *timeengine.Snapshot
}

// TimerRenderer renders timer widgets.
type TimerRenderer struct {
	parser *styles.Parser
	logger *zap.Logger
}

// NewTimerRenderer constructs a TimerRenderer. A nil parser uses one backed by logger.
func NewTimerRenderer(parser *styles.Parser, logger *zap.Logger) *TimerRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parser == nil {
		parser = styles.NewParser(logger)
	}
	return &TimerRenderer{parser: parser, logger: logger}
}

// Render builds the widget tree for one snapshot. Styles are applied as
// computed base, then custom CSS, then the device transform.
func (renderer *TimerRenderer) Render(config model.TimerConfig, snapshot timeengine.Snapshot, state TimerState) *html.Node {
	timerLayout := layout.ResolveTimer(config)
	root := element(atom.Div,
		attribute("id", widgetRootID),
		attribute(attributeWidget, widgetKindTimer),
		attribute(attributeLayout, string(config.Layout)),
	)
	if snapshot.Problem != "" {
		setAttribute(root, attributeProblem, snapshot.Problem)
	}

	if config.Layout == model.LayoutBanner && state.BannerClosed {
		setAttribute(root, attributeClosed, "true")
		setStyle(root, styles.StyleMap{"display": "none"})
		return root
	}

	if snapshot.Finished {
		switch config.FinishAction {
		case model.FinishActionHide:
			setAttribute(root, attributeFinished, string(model.FinishActionHide))
			return root
		case model.FinishActionMessage:
			setAttribute(root, attributeFinished, string(model.FinishActionMessage))
			setStyle(root, renderer.deviceTransform(timerLayout.ContainerStyle, config, state.Device))
			inner := element(atom.Div)
			setStyle(inner, timerLayout.InnerStyle)
			message := element(atom.P, attribute(attributeSlot, slotFinishedMessage))
			setStyle(message, timerLayout.MessageStyle)
			message.AppendChild(text(config.FinishMessage))
			root.AppendChild(appendChildren(inner, message))
			return root
		case model.FinishActionRedirect:
			setAttribute(root, attributeFinished, string(model.FinishActionRedirect))
			setAttribute(root, attributeRedirect, config.FinishRedirectURL)
		}
	}

	setStyle(root, renderer.deviceTransform(timerLayout.ContainerStyle, config, state.Device))
	inner := element(atom.Div)
	setStyle(inner, timerLayout.InnerStyle)
	root.AppendChild(inner)

	if config.Layout == model.LayoutBanner {
		renderer.renderBanner(inner, config, timerLayout, snapshot, state)
		return root
	}
	renderer.renderCentered(inner, config, timerLayout, snapshot, state)
	return root
}

// RenderHTML renders the widget and serializes it.
func (renderer *TimerRenderer) RenderHTML(config model.TimerConfig, snapshot timeengine.Snapshot, state TimerState) (string, error) {
	return RenderHTML(renderer.Render(config, snapshot, state))
}

// FontURLs lists the stylesheets the widget's fonts need.
func (renderer *TimerRenderer) FontURLs(config model.TimerConfig) []string {
	fonts := layout.ResolveTimer(config).Fonts
	addresses := make([]string, 0, len(fonts))
	for _, font := range fonts {
		addresses = append(addresses, TimerFontURL(font))
	}
	return addresses
}

func (renderer *TimerRenderer) renderCentered(inner *html.Node, config model.TimerConfig, timerLayout layout.TimerLayout, snapshot timeengine.Snapshot, state TimerState) {
	for _, slot := range timerLayout.Outer {
		switch slot {
		case layout.SlotHeading:
			inner.AppendChild(renderer.heading(atom.H1, config, timerLayout))
		case layout.SlotStack:
			stack := element(atom.Div, attribute(attributeSlot, string(layout.SlotStack)))
			setStyle(stack, timerLayout.StackStyle)
			for _, stackSlot := range timerLayout.Stack {
				switch stackSlot {
				case layout.SlotButton:
					stack.AppendChild(renderer.button(config, timerLayout))
				case layout.SlotTimer:
					stack.AppendChild(renderer.timer(config, timerLayout, snapshot, state))
				}
			}
			inner.AppendChild(stack)
		}
	}
}

func (renderer *TimerRenderer) renderBanner(inner *html.Node, config model.TimerConfig, timerLayout layout.TimerLayout, snapshot timeengine.Snapshot, state TimerState) {
	headingWrapper := element(atom.Div)
	setStyle(headingWrapper, timerLayout.HeadingWrapper)
	headingWrapper.AppendChild(renderer.heading(atom.H2, config, timerLayout))

	actions := element(atom.Div, attribute(attributeSlot, string(layout.SlotActions)))
	setStyle(actions, timerLayout.ActionsStyle)
	if timerLayout.ShowButton {
		actions.AppendChild(renderer.button(config, timerLayout))
	}
	if timerLayout.ShowClose {
		closeButton := element(atom.Button,
			attribute("type", "button"),
			attribute("aria-label", closeButtonLabel),
			attribute(attributeAction, actionCloseBanner),
		)
		setStyle(closeButton, timerLayout.CloseStyle)
		closeButton.AppendChild(text(closeButtonGlyph))
		actions.AppendChild(closeButton)
	}

	appendChildren(inner,
		headingWrapper,
		renderer.timer(config, timerLayout, snapshot, state),
		actions,
	)
}

func (renderer *TimerRenderer) heading(tag atom.Atom, config model.TimerConfig, timerLayout layout.TimerLayout) *html.Node {
	heading := element(tag, attribute(attributeSlot, string(layout.SlotHeading)))
	setStyle(heading, timerLayout.HeadingStyle.Merge(renderer.parser.Parse(config.CustomTextCSS)))
	heading.AppendChild(text(config.Text))
	return heading
}

func (renderer *TimerRenderer) button(config model.TimerConfig, timerLayout layout.TimerLayout) *html.Node {
	anchor := element(atom.A,
		attribute(attributeSlot, string(layout.SlotButton)),
		attribute("href", config.ButtonURL),
		attribute("target", "_blank"),
		attribute("rel", "noopener noreferrer"),
		attribute("onmouseenter", hoverScript(config.ButtonHoverColor)),
		attribute("onmouseleave", hoverScript(config.ButtonColor)),
	)
	setStyle(anchor, timerLayout.ButtonStyle.Merge(renderer.parser.Parse(config.CustomButtonCSS)))
	label := element(atom.Span)
	setStyle(label, timerLayout.ButtonTextStyle)
	label.AppendChild(text(config.ButtonText))
	anchor.AppendChild(label)
	return anchor
}

func (renderer *TimerRenderer) timer(config model.TimerConfig, timerLayout layout.TimerLayout, snapshot timeengine.Snapshot, state TimerState) *html.Node {
	row := element(atom.Div, attribute(attributeSlot, string(layout.SlotTimer)))
	setStyle(row, timerLayout.TimerRowStyle)
	customTimer := renderer.parser.Parse(config.CustomTimerCSS)

	if timerLayout.CounterMode {
		digits := timeengine.CounterDigits(snapshot.CounterValue)
		var previous []string
		if state.Previous != nil {
			previous = timeengine.CounterDigits(state.Previous.CounterValue)
		}
		digitRow := element(atom.Div, attribute(attributeUnit, "counter"))
		setStyle(digitRow, timerLayout.DigitRowStyle)
		for index, digit := range digits {
			changed := previous == nil || len(previous) != len(digits) || previous[index] != digit
			digitRow.AppendChild(digitBox(digit, changed && state.Previous != nil, timerLayout, customTimer))
		}
		row.AppendChild(digitRow)
		return row
	}

	for _, unitSlot := range timerLayout.Units {
		padded := snapshot.Remaining.PaddedValue(unitSlot.Unit)
		previousPadded := ""
		if state.Previous != nil {
			previousPadded = state.Previous.Remaining.PaddedValue(unitSlot.Unit)
		}

		unit := element(atom.Div, attribute(attributeUnit, string(unitSlot.Unit)))
		setStyle(unit, timerLayout.UnitStyle)
		digitRow := element(atom.Div)
		setStyle(digitRow, timerLayout.DigitRowStyle)
		for index, character := range padded {
			changed := state.Previous != nil &&
				(len(previousPadded) != len(padded) || rune(previousPadded[index]) != character)
			digitRow.AppendChild(digitBox(string(character), changed, timerLayout, customTimer))
		}
		unit.AppendChild(digitRow)
		if unitSlot.ShowLabel {
			label := element(atom.Span)
			setStyle(label, timerLayout.LabelStyle)
			label.AppendChild(text(unitSlot.Label))
			unit.AppendChild(label)
		}
		row.AppendChild(unit)
	}
	return row
}

func digitBox(digit string, animate bool, timerLayout layout.TimerLayout, customTimer styles.StyleMap) *html.Node {
	boxStyle := timerLayout.DigitBoxStyle
	textStyle := timerLayout.DigitTextStyle
	if animate && !timerLayout.DigitAnimation.None() {
		if timerLayout.DigitAnimation.Target == layout.AnimationTargetText {
			textStyle = textStyle.Merge(timerLayout.DigitAnimation.Style(0))
		} else {
			boxStyle = boxStyle.Merge(timerLayout.DigitAnimation.Style(0))
		}
	}
	box := element(atom.Div, attribute("class", "cf-digit"))
	setStyle(box, boxStyle.Merge(customTimer))
	digitText := element(atom.Span)
	setStyle(digitText, textStyle)
	digitText.AppendChild(text(digit))
	box.AppendChild(digitText)
	return box
}

func (renderer *TimerRenderer) deviceTransform(container styles.StyleMap, config model.TimerConfig, device model.DeviceView) styles.StyleMap {
	if device != model.DeviceMobile {
		return container
	}
	transformed := container.Merge(styles.StyleMap{"maxWidth": mobilePreviewWidth, "marginLeft": "auto", "marginRight": "auto"})
	if config.Layout != model.LayoutBanner {
		transformed["padding"] = "32px 16px"
	}
	return transformed
}

func hoverScript(color string) string {
	quoted, marshalErr := json.Marshal(color)
	if marshalErr != nil {
		return ""
	}
	return "this.style.backgroundColor=" + string(quoted)
}
