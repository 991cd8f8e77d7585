package layout

import (
	"strconv"
	"strings"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/styles"
)

// Target says where a block widget is displayed.
type Target string

const (
	TargetPreview Target = "preview"
	TargetExport  Target = "export"
)

const (
	mobilePaddingFactor  = 0.7
	mobileFontSizeFactor = 0.85
	mobileMaxWidth       = "90%"
	defaultBlockFontSize = "16px"
	defaultBlockMargin   = "8px 0"
	widgetShadow         = "0 20px 25px -5px rgba(0, 0, 0, 0.3)"
	defaultGradientStart = "#1e3a8a"
	defaultGradientEnd   = "#3b82f6"
	defaultGradientAngle = "to bottom"
)

// BlockElement names the HTML element a block renders as.
type BlockElement string

const (
	ElementHeading BlockElement = "h2"
	ElementText    BlockElement = "p"
	ElementButton  BlockElement = "button"
	ElementSpacer  BlockElement = "div"
	ElementImage   BlockElement = "img"
)

// BlockPlacement is one visible block with its resolved styles.
type BlockPlacement struct {
	Block        model.WidgetBlock
	Element      BlockElement
	WrapperStyle styles.StyleMap
	Style        styles.StyleMap
	Font         string
}

// BlockLayout is the resolved geometry of a block widget.
type BlockLayout struct {
	Banner         bool
	ContainerStyle styles.StyleMap
	WidgetStyle    styles.StyleMap
	Blocks         []BlockPlacement
	Fonts          []string
}

// ResolveBlockWidget places the widget and its visible blocks for a device.
// Mobile scaling is applied here and never written back into the configuration.
func ResolveBlockWidget(widget model.WidgetConfig, device model.DeviceView, target Target) BlockLayout {
	banner := widget.Type == model.WidgetTypeBanner
	mobile := device == model.DeviceMobile

	blockLayout := BlockLayout{
		Banner:         banner,
		ContainerStyle: blockContainerStyle(widget, banner, target),
		WidgetStyle:    blockWidgetStyle(widget, banner, mobile),
	}

	var fontFamilies []string
	for _, block := range widget.VisibleBlocks() {
		placement := placeBlock(block, mobile)
		if placement.Font != "" {
			fontFamilies = append(fontFamilies, placement.Font)
		}
		blockLayout.Blocks = append(blockLayout.Blocks, placement)
	}
	blockLayout.Fonts = fontsFor(fontFamilies...)
	return blockLayout
}

// PrimaryFontName extracts the first family of a font-family list without quotes.
func PrimaryFontName(fontFamily string) string {
	first, _, _ := strings.Cut(fontFamily, ",")
	return strings.TrimSpace(strings.NewReplacer("'", "", "\"", "").Replace(first))
}

// BlockBackgroundStyle resolves color, gradient or image backgrounds.
func BlockBackgroundStyle(widget model.WidgetConfig) styles.StyleMap {
	switch widget.BackgroundType {
	case model.BackgroundTypeGradient:
		return styles.StyleMap{
			"backgroundImage": "linear-gradient(" +
				fallback(widget.GradientDirection, defaultGradientAngle) + ", " +
				fallback(widget.GradientStart, defaultGradientStart) + ", " +
				fallback(widget.GradientEnd, defaultGradientEnd) + ")",
		}
	case model.BackgroundTypeImage:
		if imageURL, safe := CSSURL(widget.BackgroundImage); safe {
			return styles.StyleMap{
				"backgroundImage":    imageURL,
				"backgroundSize":     "cover",
				"backgroundPosition": "center",
				"backgroundRepeat":   "no-repeat",
			}
		}
	}
	return styles.StyleMap{"backgroundColor": widget.BackgroundColor}
}

// ScaleLength multiplies the leading integer of a CSS length and returns pixels.
// Values without a leading integer are returned unchanged.
func ScaleLength(value string, factor float64) string {
	trimmed := strings.TrimSpace(value)
	end := 0
	for end < len(trimmed) && (trimmed[end] >= '0' && trimmed[end] <= '9' || end == 0 && trimmed[end] == '-') {
		end++
	}
	number, parseErr := strconv.Atoi(trimmed[:end])
	if parseErr != nil {
		return value
	}
	return pixels(float64(number) * factor)
}

func blockContainerStyle(widget model.WidgetConfig, banner bool, target Target) styles.StyleMap {
	if banner {
		position := "absolute"
		if target == TargetExport {
			position = "relative"
		}
		container := styles.StyleMap{"position": position, "width": "100%", "top": "0", "left": "0"}
		if target == TargetPreview {
			container["zIndex"] = "10"
		}
		return container
	}

	container := styles.StyleMap{"position": "absolute", "left": "50%", "zIndex": "10"}
	if target == TargetExport {
		container["position"] = "fixed"
		container["zIndex"] = "1000"
	}
	switch widget.Position {
	case model.PopupPositionTop:
		container["top"] = "20px"
		container["transform"] = "translateX(-50%)"
	case model.PopupPositionBottom:
		container["bottom"] = "20px"
		container["transform"] = "translateX(-50%)"
	default:
		container["top"] = "50%"
		container["transform"] = "translate(-50%, -50%)"
	}
	return container
}

func blockWidgetStyle(widget model.WidgetConfig, banner bool, mobile bool) styles.StyleMap {
	widgetStyle := BlockBackgroundStyle(widget).Merge(styles.StyleMap{
		"borderRadius": widget.BorderRadius,
		"padding":      widget.Padding,
		"maxWidth":     widget.MaxWidth,
		"margin":       "0 auto",
		"boxShadow":    widgetShadow,
	})
	if mobile {
		widgetStyle["padding"] = ScaleLength(widget.Padding, mobilePaddingFactor)
		widgetStyle["maxWidth"] = mobileMaxWidth
	}
	if banner {
		widgetStyle["borderRadius"] = "0"
		widgetStyle["maxWidth"] = "100%"
		widgetStyle["margin"] = "0"
		widgetStyle["boxShadow"] = "none"
	}
	return widgetStyle
}

func placeBlock(block model.WidgetBlock, mobile bool) BlockPlacement {
	placement := BlockPlacement{Block: block, WrapperStyle: styles.StyleMap{}}
	if block.Styles.FontFamily != "" {
		placement.Font = PrimaryFontName(block.Styles.FontFamily)
	}
	declared := styles.StyleMap(block.Styles.Entries())

	fontSize := block.Styles.FontSize
	if mobile {
		fontSize = ScaleLength(fallback(block.Styles.FontSize, defaultBlockFontSize), mobileFontSizeFactor)
	}

	switch block.Type {
	case model.BlockTypeSpacing:
		placement.Element = ElementSpacer
		placement.Style = styles.StyleMap{"height": block.Styles.Padding}
		return placement
	case model.BlockTypeImage:
		placement.Element = ElementImage
		placement.WrapperStyle = styles.StyleMap{"textAlign": fallback(block.Styles.TextAlign, "center")}
		placement.Style = styles.StyleMap{"maxWidth": "100%", "height": "auto", "display": "inline-block"}
		if block.Styles.BorderRadius != "" {
			placement.Style["borderRadius"] = block.Styles.BorderRadius
		}
		return placement
	case model.BlockTypeButton:
		placement.Element = ElementButton
		placement.WrapperStyle = styles.StyleMap{"textAlign": "center", "marginTop": "16px"}
		placement.Style = declared.Merge(styles.StyleMap{
			"border":     "none",
			"cursor":     "pointer",
			"fontFamily": fallback(block.Styles.FontFamily, "inherit"),
		})
	case model.BlockTypeHeading:
		placement.Element = ElementHeading
		placement.Style = declared.Merge(styles.StyleMap{
			"margin":     fallback(block.Styles.Margin, defaultBlockMargin),
			"fontFamily": fallback(block.Styles.FontFamily, "inherit"),
		})
	default:
		placement.Element = ElementText
		placement.Style = declared.Merge(styles.StyleMap{
			"margin":     fallback(block.Styles.Margin, defaultBlockMargin),
			"fontFamily": fallback(block.Styles.FontFamily, "inherit"),
		})
	}
	if fontSize != "" {
		placement.Style["fontSize"] = fontSize
	}
	return placement
}

func fallback(value string, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}
