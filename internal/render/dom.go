// Package render builds preview markup as golang.org/x/net/html node trees.
package render

import (
	"bytes"
	"fmt"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/styles"
)

const (
	attributeStyle    = "style"
	attributeSlot     = "data-slot"
	attributeBlockID  = "data-block-id"
	attributeFinished = "data-finished"
	attributeRedirect = "data-redirect"
	attributeProblem  = "data-problem"
	attributeUnit     = "data-unit"
	attributeAction   = "data-action"
)

func element(tag atom.Atom, attributes ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: tag,
		Data:     tag.String(),
		Attr:     attributes,
	}
}

func attribute(key string, value string) html.Attribute {
	return html.Attribute{Key: key, Val: value}
}

func text(content string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: content}
}

func appendChildren(parent *html.Node, children ...*html.Node) *html.Node {
	for _, child := range children {
		if child != nil {
			parent.AppendChild(child)
		}
	}
	return parent
}

func setStyle(node *html.Node, styleMap styles.StyleMap) {
	safe := styles.StyleMap{}
	for property, value := range styleMap {
		if styles.SafeValue(value) {
			safe[property] = value
		}
	}
	declarations := safe.Declarations()
	if declarations == "" {
		return
	}
	setAttribute(node, attributeStyle, declarations)
}

func setAttribute(node *html.Node, key string, value string) {
	for index := range node.Attr {
		if node.Attr[index].Key == key {
			node.Attr[index].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, attribute(key, value))
}

// AttributeValue returns the value of key on node.
func AttributeValue(node *html.Node, key string) (string, bool) {
	if node == nil {
		return "", false
	}
	for _, nodeAttribute := range node.Attr {
		if nodeAttribute.Key == key {
			return nodeAttribute.Val, true
		}
	}
	return "", false
}

// RenderHTML serializes a node tree.
func RenderHTML(node *html.Node) (string, error) {
	var buffer bytes.Buffer
	if renderErr := html.Render(&buffer, node); renderErr != nil {
		return "", fmt.Errorf("render html: %w", renderErr)
	}
	return buffer.String(), nil
}
