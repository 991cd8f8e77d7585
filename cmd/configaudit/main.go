package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/countdownforge/internal/configfile"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/model"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/styles"
	"github.com/MarkoPoloResearchLab/countdownforge/internal/timeengine"
)

const (
	defaultAuditDirectory = "configs"
	secureScheme          = "https"
)

var errAuditFailed = errors.New("config_audit_failed")

type auditResult struct {
	errors   []string
	warnings []string
	audited  int
}

func (result *auditResult) addError(message string, arguments ...any) {
	result.errors = append(result.errors, fmt.Sprintf(message, arguments...))
}

func (result *auditResult) addWarning(message string, arguments ...any) {
	result.warnings = append(result.warnings, fmt.Sprintf(message, arguments...))
}

func (result auditResult) ok() bool {
	return len(result.errors) == 0
}

func main() {
	paths := os.Args[1:]
	if len(paths) == 0 {
		paths = []string{defaultAuditDirectory}
	}
	result := runAudit(paths, time.Now())
	if reportErr := report(result, os.Stdout, os.Stderr); reportErr != nil {
		os.Exit(1)
	}
}

func report(result auditResult, stdout io.Writer, stderr io.Writer) error {
	sort.Strings(result.errors)
	sort.Strings(result.warnings)

	for _, warning := range result.warnings {
		_, _ = fmt.Fprintf(stdout, "WARN: %s\n", warning)
	}
	for _, errorMessage := range result.errors {
		_, _ = fmt.Fprintf(stderr, "ERROR: %s\n", errorMessage)
	}
	if !result.ok() {
		_, _ = fmt.Fprintf(stderr, "config-audit failed\n")
		return errAuditFailed
	}
	_, _ = fmt.Fprintf(stdout, "config-audit OK (%d files)\n", result.audited)
	return nil
}

func runAudit(paths []string, now time.Time) auditResult {
	var result auditResult
	parser := styles.NewParser(nil)

	for _, root := range paths {
		configPaths, collectErr := collectConfigPaths(root)
		if collectErr != nil {
			result.addError("%s: %v", root, collectErr)
			continue
		}
		if len(configPaths) == 0 {
			result.addWarning("%s: no config files found", root)
			continue
		}
		for _, configPath := range configPaths {
			document, loadErr := configfile.Load(configPath, now)
			if loadErr != nil {
				result.addError("%v", loadErr)
				continue
			}
			result.audited++
			switch document.Kind {
			case configfile.KindTimer:
				auditTimer(configPath, *document.Timer, parser, now, &result)
			case configfile.KindWidget:
				auditWidget(configPath, *document.Widget, &result)
			}
		}
	}
	return result
}

func collectConfigPaths(root string) ([]string, error) {
	info, statErr := os.Stat(root)
	if statErr != nil {
		return nil, statErr
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var configPaths []string
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !configfile.Supported(path) {
			return nil
		}
		configPaths = append(configPaths, path)
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	sort.Strings(configPaths)
	return configPaths, nil
}

func auditTimer(path string, config model.TimerConfig, parser *styles.Parser, now time.Time, result *auditResult) {
	if config.TimerType == model.TimerTypeCountdown {
		target, targetErr := timeengine.ResolveTarget(config.TargetDate, config.Timezone)
		switch {
		case targetErr != nil:
			result.addError("%s: %v", path, targetErr)
		case !target.After(now):
			result.addWarning("%s: target date %s has already passed", path, config.TargetDate)
		}
	}

	customCSS := map[string]string{
		"customTextCSS":   config.CustomTextCSS,
		"customButtonCSS": config.CustomButtonCSS,
		"customTimerCSS":  config.CustomTimerCSS,
	}
	for fieldName, declarations := range customCSS {
		for _, dropped := range parser.Inspect(declarations) {
			result.addWarning("%s: %s drops %q (%s)", path, fieldName, dropped.Declaration, dropped.Reason)
		}
	}

	if config.ShowButton && !isSecureURL(config.ButtonURL) {
		result.addWarning("%s: buttonUrl %q is not an https address", path, config.ButtonURL)
	}
	if config.FinishAction == model.FinishActionRedirect && !isSecureURL(config.FinishRedirectURL) {
		result.addWarning("%s: finishRedirectUrl %q is not an https address", path, config.FinishRedirectURL)
	}
}

func auditWidget(path string, config model.WidgetConfig, result *auditResult) {
	if len(config.VisibleBlocks()) == 0 {
		result.addWarning("%s: widget has no visible blocks", path)
	}
	for _, block := range config.Blocks {
		if block.Type == model.BlockTypeImage && strings.TrimSpace(block.Content) == "" {
			result.addWarning("%s: image block %s has no source", path, block.ID)
		}
	}
}

func isSecureURL(address string) bool {
	parsed, parseErr := url.Parse(strings.TrimSpace(address))
	if parseErr != nil {
		return false
	}
	return parsed.Scheme == secureScheme && parsed.Host != ""
}
