// Package embed produces the snippets users paste into their sites.
package embed

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
)

//go:embed assets/widget-runtime.js
var runtimeSource string

// Format selects the snippet flavor.
type Format string

const (
	// FormatInline carries the configuration and the whole runtime in one script.
	FormatInline Format = "inline"
	// FormatHosted references the runtime by URL and carries the configuration in an attribute.
	FormatHosted Format = "hosted"

	DefaultRuntimePath = "/widget-runtime.js"
	ContainerID        = "countdown-timer-widget"
	// ContainerClass marks hosted containers; several may share one page.
	ContainerClass = "countdown-timer-widget"

	scriptCloseSequence        = "</"
	escapedScriptCloseSequence = `<\/`
	configIndent               = "  "
)

var (
	ErrUnknownFormat = errors.New("embed: unknown snippet format")
	ErrInvalidConfig = errors.New("embed: invalid timer config")
)

// RuntimeSource returns the browser runtime shared by both formats.
func RuntimeSource() string {
	return runtimeSource
}

// ParseFormat maps a query value to a Format. Empty selects inline.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatInline:
		return FormatInline, nil
	case FormatHosted:
		return FormatHosted, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, value)
}

// Generator renders embed snippets for timer configurations.
type Generator struct {
	runtimeURL string
}

// NewGenerator constructs a Generator. An empty runtimeURL uses the service path.
func NewGenerator(runtimeURL string) *Generator {
	trimmedURL := strings.TrimSpace(runtimeURL)
	if trimmedURL == "" {
		trimmedURL = DefaultRuntimePath
	}
	return &Generator{runtimeURL: trimmedURL}
}

// RuntimeURL is the address hosted snippets load the runtime from.
func (generator *Generator) RuntimeURL() string {
	return generator.runtimeURL
}

// Generate renders the snippet. Output is deterministic for a given configuration.
func (generator *Generator) Generate(config model.TimerConfig, format Format) (string, error) {
	if validationErr := config.Validate(); validationErr != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfig, validationErr)
	}
	switch format {
	case FormatInline:
		return generator.inline(config)
	case FormatHosted:
		return generator.hosted(config)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
}

func (generator *Generator) inline(config model.TimerConfig) (string, error) {
	configJSON, encodeErr := encodeConfig(config, configIndent)
	if encodeErr != nil {
		return "", encodeErr
	}
	var builder strings.Builder
	builder.WriteString(`<div id="` + ContainerID + `"></div>` + "\n")
	builder.WriteString("<script>\n(function () {\n")
	builder.WriteString("  var config = " + scriptSafe(indentContinuation(configJSON, configIndent)) + ";\n")
	builder.WriteString(scriptSafe(strings.TrimRight(runtimeSource, "\n")) + "\n")
	builder.WriteString(`  window.CountdownForge.mount(document.getElementById("` + ContainerID + `"), config);` + "\n")
	builder.WriteString("})();\n</script>")
	return builder.String(), nil
}

func (generator *Generator) hosted(config model.TimerConfig) (string, error) {
	configJSON, encodeErr := encodeConfig(config, "")
	if encodeErr != nil {
		return "", encodeErr
	}
	return `<div class="` + ContainerClass + `" data-countdown-forge data-config="` + html.EscapeString(configJSON) + `"></div>` + "\n" +
		`<script src="` + html.EscapeString(generator.runtimeURL) + `" defer></script>`, nil
}

func encodeConfig(config model.TimerConfig, indent string) (string, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if indent != "" {
		encoder.SetIndent("", indent)
	}
	if encodeErr := encoder.Encode(config); encodeErr != nil {
		return "", fmt.Errorf("encode timer config: %w", encodeErr)
	}
	return strings.TrimRight(buffer.String(), "\n"), nil
}

func scriptSafe(source string) string {
	return strings.ReplaceAll(source, scriptCloseSequence, escapedScriptCloseSequence)
}

func indentContinuation(text string, indent string) string {
	return strings.ReplaceAll(text, "\n", "\n"+indent)
}
