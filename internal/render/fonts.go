package render

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	googleFontsBaseURL  = "https://fonts.googleapis.com/css2?family="
	timerFontWeights    = ":wght@400;500;600;700&display=swap"
	blockFontWeights    = ":wght@300;400;500;600;700;800&display=swap"
	blockFontIDPrefix   = "google-font-"
	fontStylesheetValue = "stylesheet"
)

// TimerFontURL builds the stylesheet address for a heading or button font.
func TimerFontURL(family string) string {
	return googleFontsBaseURL + fontQueryName(family) + timerFontWeights
}

// BlockFontURL builds the stylesheet address for a block font family.
func BlockFontURL(family string) string {
	return googleFontsBaseURL + fontQueryName(family) + blockFontWeights
}

// BlockFontID names the link element that loads a block font.
func BlockFontID(family string) string {
	return blockFontIDPrefix + strings.Join(strings.Fields(family), "-")
}

// FontLinks builds one stylesheet link per distinct address.
func FontLinks(addresses []string) []*html.Node {
	links := make([]*html.Node, 0, len(addresses))
	seen := map[string]struct{}{}
	for _, address := range addresses {
		if _, duplicate := seen[address]; duplicate || address == "" {
			continue
		}
		seen[address] = struct{}{}
		links = append(links, element(atom.Link,
			attribute("rel", fontStylesheetValue),
			attribute("href", address),
		))
	}
	return links
}

func fontQueryName(family string) string {
	words := strings.Fields(family)
	for index, word := range words {
		words[index] = url.QueryEscape(word)
	}
	return strings.Join(words, "+")
}
