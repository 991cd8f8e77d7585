// Package configfile loads saved timer and widget configurations from JSON, YAML or TOML files.
package configfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
)

// Kind names what a configuration file describes.
type Kind string

// Format is the serialization of a configuration file.
type Format string

const (
	KindTimer  Kind = "timer"
	KindWidget Kind = "widget"

	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"

	extensionJSON = ".json"
	extensionYAML = ".yaml"
	extensionYML  = ".yml"
	extensionTOML = ".toml"

	widgetDiscriminatorKey = "blocks"
)

var (
	ErrUnsupportedExtension = errors.New("unsupported config file extension")
	ErrEmptyDocument        = errors.New("empty config document")
)

// Document is one decoded configuration. Exactly one of Timer and Widget is set.
type Document struct {
	Path   string
	Kind   Kind
	Timer  *model.TimerConfig
	Widget *model.WidgetConfig
}

// FormatForPath maps a file extension to its Format.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case extensionJSON:
		return FormatJSON, true
	case extensionYAML, extensionYML:
		return FormatYAML, true
	case extensionTOML:
		return FormatTOML, true
	default:
		return "", false
	}
}

// Supported reports whether path carries an extension Load understands.
func Supported(path string) bool {
	_, supported := FormatForPath(path)
	return supported
}

// Load reads and validates one configuration file. Timer files are applied
// over the defaults for now, so a file may carry only the fields it changes.
func Load(path string, now time.Time) (Document, error) {
	format, supported := FormatForPath(path)
	if !supported {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedExtension, filepath.Ext(path))
	}
	contents, readErr := os.ReadFile(path)
	if readErr != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, readErr)
	}
	document, decodeErr := Decode(contents, format, now)
	if decodeErr != nil {
		return Document{}, fmt.Errorf("%s: %w", path, decodeErr)
	}
	document.Path = path
	return document, nil
}

// Decode parses contents in the given format. YAML and TOML documents are
// converted to JSON first so every format shares the JSON field names.
func Decode(contents []byte, format Format, now time.Time) (Document, error) {
	payload := bytes.TrimSpace(contents)
	switch format {
	case FormatJSON:
	case FormatYAML, FormatTOML:
		converted, convertErr := structuredToJSON(contents, format)
		if convertErr != nil {
			return Document{}, convertErr
		}
		payload = converted
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedExtension, format)
	}
	if len(payload) == 0 {
		return Document{}, ErrEmptyDocument
	}

	var fields map[string]json.RawMessage
	if probeErr := json.Unmarshal(payload, &fields); probeErr != nil {
		return Document{}, fmt.Errorf("decode config document: %w", probeErr)
	}
	if fields == nil {
		return Document{}, ErrEmptyDocument
	}

	if _, isWidget := fields[widgetDiscriminatorKey]; isWidget {
		widget := model.DefaultWidgetConfig()
		widget.Blocks = nil
		if decodeErr := json.Unmarshal(payload, &widget); decodeErr != nil {
			return Document{}, fmt.Errorf("decode widget config: %w", decodeErr)
		}
		if validationErr := widget.Validate(); validationErr != nil {
			return Document{}, validationErr
		}
		return Document{Kind: KindWidget, Widget: &widget}, nil
	}

	patch, patchErr := model.DecodeTimerConfigPatch(payload)
	if patchErr != nil {
		return Document{}, patchErr
	}
	timer, applyErr := model.DefaultTimerConfig(now).Apply(patch)
	if applyErr != nil {
		return Document{}, applyErr
	}
	return Document{Kind: KindTimer, Timer: &timer}, nil
}

// Name is the file name without its directory and extension.
func (document Document) Name() string {
	base := filepath.Base(document.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func structuredToJSON(contents []byte, format Format) ([]byte, error) {
	var decoded map[string]any
	var decodeErr error
	if format == FormatTOML {
		decodeErr = toml.Unmarshal(contents, &decoded)
	} else {
		decodeErr = yaml.Unmarshal(contents, &decoded)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode %s config: %w", format, decodeErr)
	}
	if len(decoded) == 0 {
		return nil, nil
	}
	normalized, normalizeErr := normalizeValue(decoded)
	if normalizeErr != nil {
		return nil, normalizeErr
	}
	encoded, encodeErr := json.Marshal(normalized)
	if encodeErr != nil {
		return nil, fmt.Errorf("encode %s config: %w", format, encodeErr)
	}
	return encoded, nil
}

// normalizeValue rewrites nested mappings and date values so encoding/json can
// marshal them. TOML local date-times keep their offset-free text, which the
// timer reads as wall clock in its timezone.
func normalizeValue(value any) (any, error) {
	switch typed := value.(type) {
	case map[string]any:
		normalized := make(map[string]any, len(typed))
		for key, child := range typed {
			converted, convertErr := normalizeValue(child)
			if convertErr != nil {
				return nil, convertErr
			}
			normalized[key] = converted
		}
		return normalized, nil
	case map[any]any:
		normalized := make(map[string]any, len(typed))
		for key, child := range typed {
			keyText, isText := key.(string)
			if !isText {
				return nil, fmt.Errorf("decode config: non-string key %v", key)
			}
			converted, convertErr := normalizeValue(child)
			if convertErr != nil {
				return nil, convertErr
			}
			normalized[keyText] = converted
		}
		return normalized, nil
	case []any:
		normalized := make([]any, len(typed))
		for index, child := range typed {
			converted, convertErr := normalizeValue(child)
			if convertErr != nil {
				return nil, convertErr
			}
			normalized[index] = converted
		}
		return normalized, nil
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano), nil
	case toml.LocalDateTime:
		return typed.String(), nil
	case toml.LocalDate:
		return typed.String(), nil
	default:
		return typed, nil
	}
}
