// Package styles parses free-text CSS declaration lists into style maps.
package styles

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	declarationSeparator = ";"
	propertySeparator    = ":"

	logEventDeclarationDropped = "css_declaration_dropped"
	logFieldDeclaration        = "declaration"
	logFieldReason             = "reason"

	dropReasonMissingSeparator = "missing_separator"
	dropReasonEmptyProperty    = "empty_property"
	dropReasonEmptyValue       = "empty_value"
	dropReasonInvalidProperty  = "invalid_property"
	dropReasonUnsafeValue      = "unsafe_value"
)

var (
	commentPattern  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	propertyPattern = regexp.MustCompile(`^-?[a-z][a-z0-9-]*$`)

	unsafeValueFragments = []string{"<", ">", "{", "}", "expression(", "javascript:"}
)

// Parser converts declaration lists such as "color: red; font-size: 12px" into StyleMaps.
type Parser struct {
	logger *zap.Logger
}

// NewParser constructs a Parser. A nil logger discards drop events.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// DroppedDeclaration is a declaration Parse ignored and the reason it did.
type DroppedDeclaration struct {
	Declaration string
	Reason      string
}

// Parse never fails. Segments without a property or a value, and values that
// could escape a style attribute, are dropped; every other declaration is kept.
func (parser *Parser) Parse(text string) StyleMap {
	result, dropped := parse(text)
	for _, declaration := range dropped {
		parser.logger.Debug(logEventDeclarationDropped,
			zap.String(logFieldDeclaration, declaration.Declaration),
			zap.String(logFieldReason, declaration.Reason),
		)
	}
	return result
}

// Inspect reports the declarations Parse would drop from text.
func (parser *Parser) Inspect(text string) []DroppedDeclaration {
	_, dropped := parse(text)
	return dropped
}

func parse(text string) (StyleMap, []DroppedDeclaration) {
	result := StyleMap{}
	var dropped []DroppedDeclaration
	drop := func(declaration string, reason string) {
		dropped = append(dropped, DroppedDeclaration{Declaration: declaration, Reason: reason})
	}
	withoutComments := commentPattern.ReplaceAllString(text, "")
	for _, segment := range strings.Split(withoutComments, declarationSeparator) {
		trimmedSegment := strings.TrimSpace(segment)
		if trimmedSegment == "" {
			continue
		}
		parts := strings.SplitN(trimmedSegment, propertySeparator, 2)
		if len(parts) != 2 {
			drop(trimmedSegment, dropReasonMissingSeparator)
			continue
		}
		property := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		switch {
		case property == "":
			drop(trimmedSegment, dropReasonEmptyProperty)
			continue
		case value == "":
			drop(trimmedSegment, dropReasonEmptyValue)
			continue
		case !propertyPattern.MatchString(property):
			drop(trimmedSegment, dropReasonInvalidProperty)
			continue
		case !SafeValue(value):
			drop(trimmedSegment, dropReasonUnsafeValue)
			continue
		}
		result[KebabToCamel(property)] = value
	}
	return result, dropped
}

// SafeValue reports whether a declaration value can be placed in a style attribute.
func SafeValue(value string) bool {
	lowered := strings.ToLower(value)
	for _, fragment := range unsafeValueFragments {
		if strings.Contains(lowered, fragment) {
			return false
		}
	}
	return true
}
