package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatECS     = "ecs"
	FormatWallet  = "wallet"
)

/*
LogConfiguration describes the logger, loaded from yaml file and
overridden by command line flags.
*/
type LogConfiguration struct {
	Level      string `yaml:"defaultLevel"`
	Format     string `yaml:"format"`
	OutputPath string `yaml:"outputPath"`
	// Go time format string or "none" to not log time at all.
	TimeFormat string `yaml:"timeFormat"`
	// When true source code location of the logging call is added.
	ShowSource bool `yaml:"showSource"`
	// Disables colors of the "console" format.
	NoColor bool `yaml:"noColor"`

	writer io.Writer
}

/*
New builds new slog logger according to the configuration. Nil configuration
means "text format at INFO level to stdout".
*/
func New(cfg *LogConfiguration) (*slog.Logger, error) {
	if cfg == nil {
		cfg = &LogConfiguration{}
	}
	if err := cfg.initWriter(); err != nil {
		return nil, fmt.Errorf("initializing log writer: %w", err)
	}
	h, err := cfg.Handler(cfg.writer)
	if err != nil {
		return nil, fmt.Errorf("creating log handler: %w", err)
	}
	return slog.New(h), nil
}

/*
Handler returns slog handler writing into "out" in the format and level
described by the configuration.
*/
func (cfg *LogConfiguration) Handler(out io.Writer) (slog.Handler, error) {
	var lvl slog.Level
	if cfg.Level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl, AddSource: cfg.ShowSource}

	switch strings.ToLower(cfg.Format) {
	case FormatText, "":
		opts.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatDataAttrAsJSON)
		return slog.NewTextHandler(out, opts), nil
	case FormatJSON:
		opts.ReplaceAttr = formatTimeAttr(cfg.TimeFormat)
		return slog.NewJSONHandler(out, opts), nil
	case FormatECS:
		opts.ReplaceAttr = composeAttrFmt(formatTimeAttr(cfg.TimeFormat), formatAttrECS)
		return slog.NewJSONHandler(out, opts), nil
	case FormatWallet:
		opts.ReplaceAttr = formatAttrWallet
		return slog.NewTextHandler(out, opts), nil
	case FormatConsole:
		// records are emitted as JSON and rendered by zerolog's console writer
		cw := zerolog.ConsoleWriter{Out: out, NoColor: cfg.NoColor, TimeFormat: "15:04:05.000"}
		if cfg.TimeFormat != "" && cfg.TimeFormat != "none" {
			cw.TimeFormat = cfg.TimeFormat
		}
		if cfg.TimeFormat == "none" {
			cw.PartsExclude = []string{zerolog.TimestampFieldName}
		}
		opts.ReplaceAttr = formatAttrConsole
		return slog.NewJSONHandler(cw, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

func (cfg *LogConfiguration) initWriter() error {
	if cfg.writer != nil {
		return nil
	}
	w, err := filenameToWriter(cfg.OutputPath)
	if err != nil {
		return err
	}
	cfg.writer = w
	return nil
}

func filenameToWriter(name string) (io.Writer, error) {
	switch strings.ToLower(name) {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "discard":
		return io.Discard, nil
	default:
		if err := os.MkdirAll(filepath.Dir(name), 0700); err != nil {
			return nil, fmt.Errorf("create dir %q for log file: %w", filepath.Dir(name), err)
		}
		f, err := os.OpenFile(filepath.Clean(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
		if err != nil {
			return nil, fmt.Errorf("open file %q for logging: %w", name, err)
		}
		return f, nil
	}
}
