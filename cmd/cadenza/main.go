// Command cadenza converts between music notation formats.
// It provides commands for detecting formats, converting files, and
// validating notation sources.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	"github.com/cadenza-tools/cadenza/core/xml"
	"github.com/cadenza-tools/cadenza/internal/config"
	"github.com/cadenza-tools/cadenza/internal/formats"
	"github.com/cadenza-tools/cadenza/internal/formats/lily"
	"github.com/cadenza-tools/cadenza/internal/logging"

	// Import format packages so their init functions register them.
	_ "github.com/cadenza-tools/cadenza/internal/formats/musicxml"
)

const version = "0.2.0"

// CLI defines the command-line interface for cadenza.
var CLI struct {
	// Global flags
	Config    string `help:"Path to YAML configuration file" type:"path"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (json, text)"`

	Convert  ConvertCmd  `cmd:"" help:"Convert a notation file to another format"`
	Detect   DetectCmd   `cmd:"" help:"Detect the notation format of a file"`
	Validate ValidateCmd `cmd:"" help:"Validate a notation file"`
	Fmt      FmtCmd      `cmd:"" help:"Pretty-print an XML notation file"`
	Formats  FormatsCmd  `cmd:"" help:"List registered notation formats"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("cadenza"),
		kong.Description("Bidirectional music notation converter."),
		kong.UsageOnError(),
	)

	cfg, err := loadConfig()
	ctx.FatalIfErrorf(err)

	initLogging(cfg)

	ctx.FatalIfErrorf(ctx.Run(cfg))
}

// loadConfig resolves the effective configuration: the --config file if
// given, otherwise defaults plus environment overrides.
func loadConfig() (*config.Config, error) {
	if CLI.Config != "" {
		return config.LoadConfigWithEnvOverrides(CLI.Config)
	}
	return config.DefaultConfig()
}

// initLogging applies the configured level and format, with command-line
// flags taking precedence.
func initLogging(cfg *config.Config) {
	level := cfg.Logging.Level
	if CLI.LogLevel != "" {
		level = CLI.LogLevel
	}
	format := cfg.Logging.Format
	if CLI.LogFormat != "" {
		format = CLI.LogFormat
	}

	var l logging.Level
	switch level {
	case "debug":
		l = logging.LevelDebug
	case "warn":
		l = logging.LevelWarn
	case "error":
		l = logging.LevelError
	default:
		l = logging.LevelInfo
	}

	f := logging.FormatJSON
	if format == "text" {
		f = logging.FormatText
	}

	logging.InitLogger(l, f)
}

// readInput reads an input file, enforcing the configured size limit.
func readInput(path string, cfg *config.Config) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input: %w", err)
	}
	if cfg.Convert.MaxFileSize > 0 && info.Size() > cfg.Convert.MaxFileSize {
		return nil, fmt.Errorf("input %s is %d bytes, over the %d byte limit", path, info.Size(), cfg.Convert.MaxFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return data, nil
}

// ConvertCmd converts a notation file to another format.
type ConvertCmd struct {
	Path string `arg:"" help:"Path to input file" type:"existingfile"`
	To   string `help:"Target format ID (default from configuration)"`
	From string `help:"Source format ID (detected when omitted)"`
	Out  string `required:"" help:"Output path" type:"path"`
}

func (c *ConvertCmd) Run(cfg *config.Config) error {
	start := time.Now()

	content, err := readInput(c.Path, cfg)
	if err != nil {
		return err
	}

	// Resolve the source format.
	var source formats.Format
	if c.From != "" {
		source, err = formats.Get(c.From)
		if err != nil {
			return err
		}
	} else {
		source, err = formats.Detect(c.Path, content)
		if err != nil {
			return err
		}
		logging.FormatDetected(c.Path, source.ID(), false)
	}

	targetID := c.To
	if targetID == "" {
		targetID = cfg.Convert.DefaultTo
	}
	if targetID == source.ID() {
		return fmt.Errorf("source and target format are both %q", targetID)
	}
	target, err := formats.Get(targetID)
	if err != nil {
		return err
	}

	imported, err := source.Import(content)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	exported, err := target.Export(imported.Score)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	warnings := append(imported.Warnings, exported.Warnings...)

	if err := os.MkdirAll(filepath.Dir(c.Out), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(c.Out, exported.Data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	logging.Conversion(source.ID(), target.ID(), len(warnings), time.Since(start))

	fmt.Printf("Converted: %s (%s) -> %s (%s)\n", c.Path, source.ID(), c.Out, target.ID())
	if len(warnings) > 0 {
		fmt.Printf("Warnings (%d):\n", len(warnings))
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		if cfg.Convert.Strict {
			return fmt.Errorf("strict mode: %d warning(s) treated as failure", len(warnings))
		}
	}
	return nil
}

// DetectCmd detects the notation format of a file.
type DetectCmd struct {
	Path string `arg:"" help:"Path to file to detect" type:"existingfile"`
}

func (c *DetectCmd) Run(cfg *config.Config) error {
	content, err := readInput(c.Path, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("Detecting format of: %s\n\n", c.Path)

	matched := false
	for _, f := range formats.List() {
		if f.Detect(content) {
			fmt.Printf("  [MATCH] %s: %s\n", f.ID(), f.Name())
			matched = true
		} else {
			fmt.Printf("  [no]    %s: %s\n", f.ID(), f.Name())
		}
	}

	if !matched {
		return fmt.Errorf("no format detected for: %s", c.Path)
	}
	return nil
}

// ValidateCmd validates a notation file.
type ValidateCmd struct {
	Path string `arg:"" help:"Path to file to validate" type:"existingfile"`
}

func (c *ValidateCmd) Run(cfg *config.Config) error {
	content, err := readInput(c.Path, cfg)
	if err != nil {
		return err
	}

	source, err := formats.Detect(c.Path, content)
	if err != nil {
		return err
	}

	fmt.Printf("Validating: %s (%s)\n", c.Path, source.ID())

	var issues []string
	switch source.ID() {
	case lily.FormatID:
		issues, err = lily.ValidateSource(string(content))
		if err != nil {
			return err
		}
	default:
		result := xml.Validate(content, nil)
		for _, e := range result.Errors {
			issues = append(issues, e.Message)
		}
	}

	// An import pass surfaces cross-reference fidelity warnings too.
	imported, err := source.Import(content)
	if err != nil {
		return err
	}
	issues = append(issues, imported.Warnings...)

	if len(issues) == 0 {
		fmt.Println("  No issues found.")
		return nil
	}

	fmt.Printf("  Issues (%d):\n", len(issues))
	for _, issue := range issues {
		fmt.Printf("    - %s\n", issue)
	}
	if cfg.Convert.Strict {
		return fmt.Errorf("strict mode: %d issue(s) found", len(issues))
	}
	return nil
}

// FmtCmd pretty-prints an XML notation file.
type FmtCmd struct {
	Path   string `arg:"" help:"Path to XML file" type:"existingfile"`
	Out    string `help:"Output path (defaults to rewriting the input)" type:"path"`
	Indent string `help:"Indentation string" default:"  "`
}

func (c *FmtCmd) Run(cfg *config.Config) error {
	content, err := readInput(c.Path, cfg)
	if err != nil {
		return err
	}

	formatted, err := xml.Format(content, xml.FormatOptions{Indent: c.Indent})
	if err != nil {
		return fmt.Errorf("format failed: %w", err)
	}

	out := c.Out
	if out == "" {
		out = c.Path
	}
	if err := os.WriteFile(out, formatted, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("Formatted: %s -> %s\n", c.Path, out)
	return nil
}

// FormatsCmd lists registered notation formats.
type FormatsCmd struct{}

func (c *FormatsCmd) Run(cfg *config.Config) error {
	fmt.Println("Registered formats:")
	for _, f := range formats.List() {
		fmt.Printf("  %-10s %s (extensions: %v)\n", f.ID(), f.Name(), f.Extensions())
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(cfg *config.Config) error {
	fmt.Printf("cadenza version %s\n", version)
	return nil
}
