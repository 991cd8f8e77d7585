package render

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/layout"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/styles"
)

const (
	blockWidgetRootID   = "custom-widget"
	widgetKindBlock     = "block"
	attributeSelected   = "data-selected"
	attributeSelectable = "data-selectable"
	selectionColor      = "#3b82f6"
)

// BlockSelection describes the highlight and click forwarding of a preview.
type BlockSelection struct {
	SelectedBlockID string
	Selectable      bool
}

// BlockRenderer renders block widgets.
type BlockRenderer struct{}

func NewBlockRenderer() *BlockRenderer {
	return &BlockRenderer{}
}

// Render builds the block widget tree. Hidden blocks are skipped. Clicks are
// forwarded by the page through the data-block-id attribute; the renderer
// itself holds no selection state.
func (renderer *BlockRenderer) Render(widget model.WidgetConfig, device model.DeviceView, selection BlockSelection) *html.Node {
	blockLayout := layout.ResolveBlockWidget(widget, device, layout.TargetPreview)

	root := element(atom.Div,
		attribute("id", blockWidgetRootID),
		attribute(attributeWidget, widgetKindBlock),
		attribute(attributeLayout, string(widget.Type)),
	)
	setStyle(root, blockLayout.ContainerStyle)
	body := element(atom.Div)
	setStyle(body, blockLayout.WidgetStyle)
	root.AppendChild(body)

	for _, placement := range blockLayout.Blocks {
		selected := placement.Block.ID == selection.SelectedBlockID && selection.SelectedBlockID != ""
		body.AppendChild(renderer.block(placement, selected, selection.Selectable))
	}
	return root
}

// RenderHTML renders the block widget and serializes it.
func (renderer *BlockRenderer) RenderHTML(widget model.WidgetConfig, device model.DeviceView, selection BlockSelection) (string, error) {
	return RenderHTML(renderer.Render(widget, device, selection))
}

// FontURLs lists the stylesheets the visible blocks need.
func (renderer *BlockRenderer) FontURLs(widget model.WidgetConfig) []string {
	fonts := layout.ResolveBlockWidget(widget, model.DeviceDesktop, layout.TargetPreview).Fonts
	addresses := make([]string, 0, len(fonts))
	for _, font := range fonts {
		addresses = append(addresses, BlockFontURL(font))
	}
	return addresses
}

func (renderer *BlockRenderer) block(placement layout.BlockPlacement, selected bool, selectable bool) *html.Node {
	interaction := styles.StyleMap{"cursor": "default"}
	if selectable {
		interaction["cursor"] = "pointer"
	}
	if selected {
		interaction["outline"] = "2px solid " + selectionColor
		interaction["outlineOffset"] = "2px"
	}

	var target *html.Node
	wrapper := element(atom.Div)
	wrapperStyle := styles.StyleMap{"position": "relative"}.Merge(placement.WrapperStyle)

	switch placement.Element {
	case layout.ElementSpacer:
		if selected {
			interaction["outline"] = "2px dashed " + selectionColor
		}
		target = element(atom.Div)
		setStyle(target, styles.StyleMap{"position": "relative"}.Merge(placement.Style, interaction))
		wrapper = nil
	case layout.ElementImage:
		target = element(atom.Img, attribute("src", placement.Block.Content), attribute("alt", ""))
		setStyle(target, placement.Style.Merge(interaction))
	case layout.ElementButton:
		if selected {
			interaction["outlineOffset"] = "4px"
		}
		target = element(atom.Button, attribute("type", "button"))
		setStyle(target, placement.Style.Merge(interaction))
		target.AppendChild(text(placement.Block.Content))
	case layout.ElementHeading:
		target = element(atom.H2)
		setStyle(target, placement.Style.Merge(interaction, styles.StyleMap{"borderRadius": "4px"}))
		target.AppendChild(text(placement.Block.Content))
	default:
		target = element(atom.P)
		setStyle(target, placement.Style.Merge(interaction, styles.StyleMap{"borderRadius": "4px"}))
		target.AppendChild(text(placement.Block.Content))
	}

	setAttribute(target, attributeBlockID, placement.Block.ID)
	if selectable {
		setAttribute(target, attributeSelectable, "true")
	}
	if selected {
		setAttribute(target, attributeSelected, "true")
	}
	if wrapper == nil {
		return target
	}
	setStyle(wrapper, wrapperStyle)
	wrapper.AppendChild(target)
	return wrapper
}
