package embed

import (
	"html"
	"strings"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/layout"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
)

const (
	blockExportContainerID = "custom-widget"
	blockIndent            = "    "
	mobilePaddingFactor    = 0.7
)

// BlockExport is the code a block widget is exported as.
type BlockExport struct {
	HTML       string `json:"html"`
	JavaScript string `json:"javascript"`
	CSS        string `json:"css"`
}

const blockExportJavaScript = `// Add this script to initialize the widget
(function() {
  var widget = document.getElementById('custom-widget');
  if (!widget) {
    return;
  }

  var closeButton = document.createElement('button');
  closeButton.type = 'button';
  closeButton.setAttribute('aria-label', 'Close');
  closeButton.textContent = '×';
  closeButton.style.cssText = 'position: absolute; top: 10px; right: 10px; background: transparent; border: none; font-size: 24px; cursor: pointer; color: #fff;';
  closeButton.onclick = function() {
    widget.style.display = 'none';
  };

  if (widget.firstElementChild) {
    widget.firstElementChild.style.position = 'relative';
    widget.firstElementChild.appendChild(closeButton);
  }

  widget.style.display = 'none';
  setTimeout(function() {
    widget.style.display = 'block';
  }, 1000);
})();`

const blockExportCSSTemplate = `/* Responsive styles for mobile */
@media (max-width: 768px) {
  #custom-widget > div {
    padding: {{padding}} !important;
    max-width: 90% !important;
  }

  #custom-widget h2 {
    font-size: 85% !important;
  }

  #custom-widget p {
    font-size: 85% !important;
  }

  #custom-widget button {
    font-size: 85% !important;
  }
}`

// GenerateBlockExport renders the HTML, JavaScript and CSS for a block widget.
// Hidden blocks are left out.
func (generator *Generator) GenerateBlockExport(widget model.WidgetConfig) (BlockExport, error) {
	if validationErr := widget.Validate(); validationErr != nil {
		return BlockExport{}, validationErr
	}
	blockLayout := layout.ResolveBlockWidget(widget, model.DeviceDesktop, layout.TargetExport)

	lines := []string{
		`<div id="` + blockExportContainerID + `" style="` + html.EscapeString(blockLayout.ContainerStyle.Declarations()) + `">`,
		`  <div style="` + html.EscapeString(blockLayout.WidgetStyle.Declarations()) + `">`,
	}
	for _, placement := range blockLayout.Blocks {
		lines = append(lines, exportBlock(placement))
	}
	lines = append(lines, "  </div>", "</div>")

	return BlockExport{
		HTML:       strings.Join(lines, "\n"),
		JavaScript: blockExportJavaScript,
		CSS:        strings.ReplaceAll(blockExportCSSTemplate, "{{padding}}", layout.ScaleLength(widget.Padding, mobilePaddingFactor)),
	}, nil
}

func exportBlock(placement layout.BlockPlacement) string {
	style := html.EscapeString(placement.Style.Declarations())
	content := html.EscapeString(placement.Block.Content)
	switch placement.Element {
	case layout.ElementSpacer:
		return blockIndent + `<div style="` + style + `"></div>`
	case layout.ElementImage:
		return blockIndent + `<div style="` + html.EscapeString(placement.WrapperStyle.Declarations()) + `">` + "\n" +
			blockIndent + `  <img src="` + content + `" alt="" style="` + style + `">` + "\n" +
			blockIndent + `</div>`
	case layout.ElementButton:
		return blockIndent + `<div style="` + html.EscapeString(placement.WrapperStyle.Declarations()) + `">` + "\n" +
			blockIndent + `  <button style="` + style + `">` + "\n" +
			blockIndent + `    ` + content + "\n" +
			blockIndent + `  </button>` + "\n" +
			blockIndent + `</div>`
	}
	tag := string(placement.Element)
	return blockIndent + `<` + tag + ` style="` + style + `">` + content + `</` + tag + `>`
}
