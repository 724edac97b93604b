// Command latex-chunker partitions LaTeX documents into protected spans and
// translatable chunks, drives chunk translation through an OpenAI-compatible
// API, and reassembles the translated document.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"latex-chunker/internal/config"
	"latex-chunker/internal/dispatcher"
	"latex-chunker/internal/encoding"
	"latex-chunker/internal/logger"
	"latex-chunker/internal/parser"
	"latex-chunker/internal/validator"
)

const version = "1.0.0"

// CLI defines the command-line interface.
var CLI struct {
	Config  string `help:"Config file path" short:"c" type:"path"`
	Verbose bool   `help:"Enable debug logging" short:"v"`
	LogFile string `help:"Log file path; empty logs to stderr only" type:"path"`

	Parse       ParseCmd         `cmd:"" help:"Parse a document and print its chunk model as JSON"`
	Translate   TranslateCmd     `cmd:"" help:"Translate a document and write the reconstructed result"`
	Roundtrip   RoundtripCmd     `cmd:"" help:"Verify that parse and reconstruct reproduce the input exactly"`
	Validate    ValidateCmd      `cmd:"" help:"Structurally compare a translated document against its source"`
	ConfigGroup ConfigGroup      `cmd:"" name:"config" help:"Configuration management"`
	Version     kong.VersionFlag `help:"Print version and exit"`
}

// ConfigGroup contains configuration operations.
type ConfigGroup struct {
	Init InitConfigCmd `cmd:"" help:"Write a default config file"`
}

func loadConfig() (*config.Config, error) {
	return config.Load(CLI.Config)
}

// ParseCmd parses a document and emits the model.
type ParseCmd struct {
	Input string `arg:"" help:"LaTeX source file" type:"existingfile"`
	Out   string `help:"Output path; defaults to stdout" short:"o" type:"path"`
}

func (c *ParseCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source, err := encoding.ReadFile(c.Input)
	if err != nil {
		return err
	}

	doc, err := parser.Parse(source, cfg)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document model: %w", err)
	}
	data = append(data, '\n')

	if c.Out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(c.Out, data, 0644)
}

// TranslateCmd runs the full pipeline: parse, dispatch, reconstruct.
type TranslateCmd struct {
	Input    string `arg:"" help:"LaTeX source file" type:"existingfile"`
	Out      string `required:"" help:"Output path for the translated document" short:"o" type:"path"`
	Language string `help:"Target language (overrides config)"`
	Report   string `help:"Write the dispatch report as JSON to this path" type:"path"`
}

func (c *TranslateCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Language != "" {
		cfg.TargetLanguage = c.Language
	}

	source, err := encoding.ReadFile(c.Input)
	if err != nil {
		return err
	}

	doc, err := parser.Parse(source, cfg)
	if err != nil {
		return err
	}

	translatable := doc.TranslatableChunks()
	fmt.Printf("Parsed: %s\n", c.Input)
	fmt.Printf("  Chunks: %d (%d translatable)\n", len(doc.Chunks), len(translatable))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := dispatcher.NewOpenAIClient(cfg)
	d := dispatcher.New(client, cfg.Concurrency, cfg.TargetLanguage)

	translations, report := d.Dispatch(ctx, doc, func(done, total int, chunkID string) {
		fmt.Printf("\r  Translating: %d/%d", done, total)
	})
	fmt.Println()

	result := doc.Reconstruct(translations)
	if err := os.WriteFile(c.Out, []byte(result), 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	fmt.Printf("  Translated: %d, kept original: %d\n", report.Translated, len(report.Failed))
	fmt.Printf("Written: %s\n", c.Out)

	if c.Report != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		if err := os.WriteFile(c.Report, append(data, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("translation interrupted; partial result written")
	}
	return nil
}

// RoundtripCmd checks the reconstruction guarantee on a real file.
type RoundtripCmd struct {
	Input string `arg:"" help:"LaTeX source file" type:"existingfile"`
}

func (c *RoundtripCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source, err := encoding.ReadFile(c.Input)
	if err != nil {
		return err
	}

	doc, err := parser.Parse(source, cfg)
	if err != nil {
		return err
	}

	rebuilt := doc.Reconstruct(nil)
	if rebuilt != source {
		return fmt.Errorf("round-trip mismatch: reconstructed %d bytes, source %d bytes", len(rebuilt), len(source))
	}

	fmt.Printf("Round-trip OK: %s (%d chunks, %d bytes)\n", c.Input, len(doc.Chunks), len(source))
	return nil
}

// ValidateCmd compares a translated document against its source.
type ValidateCmd struct {
	Source     string `arg:"" help:"Original LaTeX file" type:"existingfile"`
	Translated string `arg:"" help:"Translated LaTeX file" type:"existingfile"`
	JSON       bool   `help:"Output result as JSON"`
}

func (c *ValidateCmd) Run() error {
	source, err := encoding.ReadFile(c.Source)
	if err != nil {
		return err
	}
	translated, err := encoding.ReadFile(c.Translated)
	if err != nil {
		return err
	}

	result := validator.Validate(source, translated)

	if c.JSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Println(string(data))
	} else {
		for _, e := range result.Errors {
			fmt.Printf("  [ERROR] %s\n", e)
		}
		for _, w := range result.Warnings {
			fmt.Printf("  [WARN]  %s\n", w)
		}
		if result.Passed {
			fmt.Println("Validation passed.")
		} else {
			fmt.Printf("Validation failed: %d error(s).\n", len(result.Errors))
		}
	}

	if !result.Passed {
		return fmt.Errorf("validation failed")
	}
	return nil
}

// InitConfigCmd writes a default config file.
type InitConfigCmd struct {
	Path string `help:"Target path; defaults to the standard config location" type:"path"`
}

func (c *InitConfigCmd) Run() error {
	path := c.Path
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Printf("Config written: %s\n", path)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("latex-chunker"),
		kong.Description("Structure-preserving LaTeX translation chunker."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	level := logger.LevelInfo
	if CLI.Verbose {
		level = logger.LevelDebug
	}
	if err := logger.Init(&logger.Config{
		LogFilePath:   CLI.LogFile,
		MaxFileSize:   10 * 1024 * 1024,
		Level:         level,
		EnableConsole: CLI.Verbose,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
	}
	defer logger.Close()

	ctx.FatalIfErrorf(ctx.Run())
}
