package render

import (
	_ "embed"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/layout"
)

//go:embed assets/preview.js
var previewPageScript string

const (
	previewRootID           = "preview-root"
	attributeStreamURL      = "data-stream-url"
	attributeSelectURL      = "data-select-url"
	attributeCloseURL       = "data-close-url"
	previewBaseStyles       = "html, body { margin: 0; padding: 0; min-height: 100%; } #preview-root { position: relative; min-height: 100vh; }"
	defaultPreviewPageTitle = "Widget preview"
)

// PreviewPage describes the builder preview document.
type PreviewPage struct {
	Title string
	// FontURLs are stylesheet addresses added to the head.
	FontURLs []string
	Body     *html.Node
	// StreamURL is the server-sent events endpoint the page subscribes to.
	StreamURL string
	// SelectURL receives block clicks; ":blockId" is replaced with the clicked block.
	SelectURL string
	// CloseURL receives banner close clicks.
	CloseURL string
}

// Document builds the full preview HTML document.
func (page PreviewPage) Document() *html.Node {
	title := page.Title
	if title == "" {
		title = defaultPreviewPageTitle
	}

	document := &html.Node{Type: html.DocumentNode}
	document.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, attribute("charset", "utf-8")))
	head.AppendChild(element(atom.Meta, attribute("name", "viewport"), attribute("content", "width=device-width, initial-scale=1")))
	titleNode := element(atom.Title)
	titleNode.AppendChild(text(title))
	head.AppendChild(titleNode)
	appendChildren(head, FontLinks(page.FontURLs)...)
	styleNode := element(atom.Style)
	styleNode.AppendChild(text(previewBaseStyles + "\n" + layout.KeyframesCSS()))
	head.AppendChild(styleNode)

	body := element(atom.Body)
	if page.StreamURL != "" {
		setAttribute(body, attributeStreamURL, page.StreamURL)
	}
	if page.SelectURL != "" {
		setAttribute(body, attributeSelectURL, page.SelectURL)
	}
	if page.CloseURL != "" {
		setAttribute(body, attributeCloseURL, page.CloseURL)
	}
	previewRoot := element(atom.Div, attribute("id", previewRootID))
	appendChildren(previewRoot, page.Body)
	body.AppendChild(previewRoot)
	script := element(atom.Script)
	script.AppendChild(text(previewPageScript))
	body.AppendChild(script)

	htmlNode := element(atom.Html, attribute("lang", "en"))
	appendChildren(htmlNode, head, body)
	document.AppendChild(htmlNode)
	return document
}

// Render serializes the preview document.
func (page PreviewPage) Render() (string, error) {
	return RenderHTML(page.Document())
}
