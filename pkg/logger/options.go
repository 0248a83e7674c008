package logger

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Format selects the handler behind a logger.
type Format int

const (
	// FormatText writes slog key=value lines.
	FormatText Format = iota
	// FormatPretty writes colorized charmbracelet/log lines for terminals.
	FormatPretty
	// FormatJSON writes one JSON object per record, as in insurag.log.
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatPretty:
		return "pretty"
	case FormatJSON:
		return "json"
	default:
		return "text"
	}
}

// ParseFormat parses a --log-format value. "auto" and "" resolve by tty:
// pretty on a terminal, JSON otherwise.
func ParseFormat(s string, tty bool) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		if tty {
			return FormatPretty, nil
		}
		return FormatJSON, nil
	case "pretty":
		return FormatPretty, nil
	case "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q: want auto, pretty, json or text", s)
	}
}

// Option configures a logger built by New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		} else {
			c.level = slog.LevelInfo
		}
	}
}

// WithFormat picks the handler. Defaults to FormatText.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithWriters sets the outputs, combined with io.MultiWriter. Defaults to
// stdout.
func WithWriters(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithSource adds file:line to every record.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}

// WithService binds a service attribute naming the process that wrote the
// record, so insurag.log lines from `serve` and `insuragapi` can be told apart.
func WithService(name string) Option {
	return func(c *config) {
		if name != "" {
			c.attrs = append(c.attrs, slog.String("service", name))
		}
	}
}
