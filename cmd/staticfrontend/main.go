package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/configfile"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/embed"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/httpapi"
)

const (
	runtimeOutputName      = "widget-runtime.js"
	inlineSnippetSuffix    = ".inline.html"
	hostedSnippetSuffix    = ".hosted.html"
	blockExportHTMLName    = "index.html"
	blockExportScriptName  = "script.js"
	blockExportStylesName  = "styles.css"
	widgetOutputDirSuffix  = ".widget"
	defaultConfigDirectory = "configs"
	defaultOutputDirectory = "public"
)

type renderTarget struct {
	outputPath string
	payload    []byte
}

func renderHTML(handler gin.HandlerFunc, method string, path string) (int, []byte) {
	recorder := httptest.NewRecorder()
	context, _ := gin.CreateTestContext(recorder)
	context.Request = httptest.NewRequest(method, path, nil)
	handler(context)
	return recorder.Code, recorder.Body.Bytes()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// buildTargets renders the hosted runtime plus the snippets of every config
// file under configDirectory.
func buildTargets(configDirectory string, outputDirectory string, runtimeURL string, now time.Time) ([]renderTarget, error) {
	publicHandlers := httpapi.NewPublicHandlers(nil, nil, nil, zap.NewNop())
	status, runtimePayload := renderHTML(publicHandlers.RuntimeScript, http.MethodGet, embed.DefaultRuntimePath)
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("render %s returned %d", embed.DefaultRuntimePath, status)
	}
	targets := []renderTarget{{outputPath: filepath.Join(outputDirectory, runtimeOutputName), payload: runtimePayload}}

	var configPaths []string
	walkErr := filepath.WalkDir(configDirectory, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() && configfile.Supported(path) {
			configPaths = append(configPaths, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	sort.Strings(configPaths)

	generator := embed.NewGenerator(runtimeURL)
	for _, configPath := range configPaths {
		document, loadErr := configfile.Load(configPath, now)
		if loadErr != nil {
			return nil, loadErr
		}
		switch document.Kind {
		case configfile.KindTimer:
			for format, suffix := range map[embed.Format]string{embed.FormatInline: inlineSnippetSuffix, embed.FormatHosted: hostedSnippetSuffix} {
				snippet, snippetErr := generator.Generate(*document.Timer, format)
				if snippetErr != nil {
					return nil, fmt.Errorf("%s: %w", configPath, snippetErr)
				}
				targets = append(targets, renderTarget{
					outputPath: filepath.Join(outputDirectory, document.Name()+suffix),
					payload:    []byte(snippet),
				})
			}
		case configfile.KindWidget:
			export, exportErr := generator.GenerateBlockExport(*document.Widget)
			if exportErr != nil {
				return nil, fmt.Errorf("%s: %w", configPath, exportErr)
			}
			widgetDirectory := filepath.Join(outputDirectory, document.Name()+widgetOutputDirSuffix)
			targets = append(targets,
				renderTarget{outputPath: filepath.Join(widgetDirectory, blockExportHTMLName), payload: []byte(export.HTML)},
				renderTarget{outputPath: filepath.Join(widgetDirectory, blockExportScriptName), payload: []byte(export.JavaScript)},
				renderTarget{outputPath: filepath.Join(widgetDirectory, blockExportStylesName), payload: []byte(export.CSS)},
			)
		}
	}
	sort.Slice(targets, func(left int, right int) bool {
		return targets[left].outputPath < targets[right].outputPath
	})
	return targets, nil
}

func main() {
	gin.SetMode(gin.TestMode)

	var configDirectory string
	var outputDir string
	var runtimeURL string
	flag.StringVar(&configDirectory, "configs", defaultConfigDirectory, "directory of timer and widget config files")
	flag.StringVar(&outputDir, "out", defaultOutputDirectory, "directory to write static assets into")
	flag.StringVar(&runtimeURL, "runtime-url", embed.DefaultRuntimePath, "address hosted snippets load the runtime from")
	flag.Parse()

	targets, buildErr := buildTargets(configDirectory, outputDir, runtimeURL, time.Now())
	if buildErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "render snippets: %v\n", buildErr)
		os.Exit(1)
	}

	for _, target := range targets {
		payload := bytes.ReplaceAll(target.payload, []byte("\r\n"), []byte("\n"))
		if err := writeFile(target.outputPath, payload); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "write %s: %v\n", target.outputPath, err)
			os.Exit(1)
		}
	}

	fmt.Println("static snippets generated in", outputDir)
}
