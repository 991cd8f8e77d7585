package styles

import (
	"sort"
	"strings"
	"unicode"
)

// StyleMap maps camelCase CSS property names to values.
type StyleMap map[string]string

// Merge returns a new map with the overrides applied in order; later maps win.
func (styleMap StyleMap) Merge(overrides ...StyleMap) StyleMap {
	merged := make(StyleMap, len(styleMap))
	for property, value := range styleMap {
		merged[property] = value
	}
	for _, override := range overrides {
		for property, value := range override {
			merged[property] = value
		}
	}
	return merged
}

// Declarations renders the map as an inline style attribute value with
// kebab-case properties in sorted order.
func (styleMap StyleMap) Declarations() string {
	properties := make([]string, 0, len(styleMap))
	for property := range styleMap {
		properties = append(properties, property)
	}
	sort.Strings(properties)

	declarations := make([]string, 0, len(properties))
	for _, property := range properties {
		declarations = append(declarations, CamelToKebab(property)+": "+styleMap[property]+";")
	}
	return strings.Join(declarations, " ")
}

// KebabToCamel converts "text-shadow" to "textShadow".
func KebabToCamel(property string) string {
	var builder strings.Builder
	upperNext := false
	for _, character := range property {
		if character == '-' {
			upperNext = true
			continue
		}
		if upperNext {
			builder.WriteRune(unicode.ToUpper(character))
			upperNext = false
			continue
		}
		builder.WriteRune(character)
	}
	return builder.String()
}

// CamelToKebab converts "textShadow" to "text-shadow".
func CamelToKebab(property string) string {
	var builder strings.Builder
	for _, character := range property {
		if unicode.IsUpper(character) {
			builder.WriteByte('-')
			builder.WriteRune(unicode.ToLower(character))
			continue
		}
		builder.WriteRune(character)
	}
	return builder.String()
}
