package embed

import (
	"encoding/json"
	"html"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/layout"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
)

const (
	testEmbedButtonURL = "https://shop.example.com/sale?utm=<x>&y=1"
	testEmbedText      = `Ends "soon" </script> & more`
)

var (
	testEmbedNow           = time.Date(2025, time.October, 31, 12, 0, 0, 0, time.UTC)
	hostedConfigAttribute  = regexp.MustCompile(`data-config="([^"]*)"`)
	embedSnippetContainer  = `<div id="countdown-timer-widget"`
	embedHostedContainer   = `<div class="countdown-timer-widget"`
	embedRuntimeMountCall  = `window.CountdownForge.mount(document.getElementById("countdown-timer-widget"), config);`
	embedHostedScriptRegex = regexp.MustCompile(`<script src="([^"]+)" defer></script>$`)
)

func embedTestConfig() model.TimerConfig {
	config := model.DefaultTimerConfig(testEmbedNow)
	config.ButtonURL = testEmbedButtonURL
	config.Text = testEmbedText
	return config
}

func TestInlineSnippetCarriesConfigAndRuntime(t *testing.T) {
	generator := NewGenerator("")
	snippet, err := generator.Generate(embedTestConfig(), FormatInline)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(snippet, embedSnippetContainer+"></div>\n<script>"))
	require.True(t, strings.HasSuffix(snippet, "</script>"))
	require.Contains(t, snippet, `"buttonUrl": "`+testEmbedButtonURL+`"`)
	require.Contains(t, snippet, `"text": "Ends \"soon\" <\/script> & more"`)
	require.Equal(t, 1, strings.Count(snippet, "</script>"))
	require.Contains(t, snippet, strings.TrimRight(RuntimeSource(), "\n"))
	require.Contains(t, snippet, embedRuntimeMountCall)

	again, err := generator.Generate(embedTestConfig(), FormatInline)
	require.NoError(t, err)
	require.Equal(t, snippet, again)
}

func TestHostedSnippetCarriesEscapedConfigAttribute(t *testing.T) {
	generator := NewGenerator("https://cdn.example.com/widget-runtime.js")
	config := embedTestConfig()
	snippet, err := generator.Generate(config, FormatHosted)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(snippet, embedHostedContainer+" data-countdown-forge data-config="))
	require.NotContains(t, snippet, ` id="`)
	scriptMatch := embedHostedScriptRegex.FindStringSubmatch(snippet)
	require.Len(t, scriptMatch, 2)
	require.Equal(t, "https://cdn.example.com/widget-runtime.js", scriptMatch[1])
	require.NotContains(t, snippet, "</script> & more")

	attributeMatch := hostedConfigAttribute.FindStringSubmatch(snippet)
	require.Len(t, attributeMatch, 2)
	var decoded model.TimerConfig
	require.NoError(t, json.Unmarshal([]byte(html.UnescapeString(attributeMatch[1])), &decoded))
	require.Equal(t, config, decoded)
	require.Equal(t, DefaultRuntimePath, NewGenerator("  ").RuntimeURL())
}

func TestGenerateRejectsUnknownFormatAndInvalidConfig(t *testing.T) {
	generator := NewGenerator("")
	_, formatErr := generator.Generate(embedTestConfig(), Format("iframe"))
	require.ErrorIs(t, formatErr, ErrUnknownFormat)

	config := embedTestConfig()
	config.ShowDays, config.ShowHours, config.ShowMinutes, config.ShowSeconds = false, false, false, false
	_, configErr := generator.Generate(config, FormatInline)
	require.ErrorIs(t, configErr, ErrInvalidConfig)
	require.ErrorIs(t, configErr, model.ErrLastVisibleUnit)
}

func TestParseFormat(t *testing.T) {
	testCases := []struct {
		value    string
		expected Format
		fails    bool
	}{
		{value: "", expected: FormatInline},
		{value: "inline", expected: FormatInline},
		{value: " Hosted ", expected: FormatHosted},
		{value: "iframe", fails: true},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.value, func(testingT *testing.T) {
			format, err := ParseFormat(testCase.value)
			if testCase.fails {
				require.ErrorIs(testingT, err, ErrUnknownFormat)
				return
			}
			require.NoError(testingT, err)
			require.Equal(testingT, testCase.expected, format)
		})
	}
}

func TestRuntimeCarriesEveryKeyframeDefinition(t *testing.T) {
	runtime := RuntimeSource()
	for _, definition := range strings.Split(layout.KeyframesCSS(), "\n") {
		require.Contains(t, runtime, `"`+definition+`"`)
	}
	require.NotContains(t, runtime, "</")
	require.Contains(t, runtime, "timer_visitor_start_time")
}

func TestGenerateBlockExport(t *testing.T) {
	widget := model.DefaultWidgetConfig()
	widget.Blocks[1].Visible = false
	widget.Blocks[0].Content = "<b>Halloween</b>"

	export, err := NewGenerator("").GenerateBlockExport(widget)
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(export.HTML, `<div id="custom-widget" style="`))
	require.Contains(t, export.HTML, "position: fixed;")
	require.Contains(t, export.HTML, "z-index: 1000;")
	require.Contains(t, export.HTML, "&lt;b&gt;Halloween&lt;/b&gt;")
	require.NotContains(t, export.HTML, "13% Off on everything!")
	require.Contains(t, export.HTML, `<div style="height: 12px;"></div>`)
	require.Contains(t, export.HTML, "border: none;")
	require.Contains(t, export.HTML, "Shop Now")
	require.True(t, strings.HasSuffix(export.HTML, "  </div>\n</div>"))

	require.Contains(t, export.JavaScript, "getElementById('custom-widget')")
	require.Contains(t, export.CSS, "padding: 22.4px !important;")
	require.Contains(t, export.CSS, "@media (max-width: 768px)")

	widget.Blocks = append(widget.Blocks, widget.Blocks[0])
	_, duplicateErr := NewGenerator("").GenerateBlockExport(widget)
	require.ErrorIs(t, duplicateErr, model.ErrDuplicateBlockID)
}
