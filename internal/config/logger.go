package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/felixgeelhaar/sessionbridge/internal/log"
)

// NewLogger builds the logger c selects, writing to w. Component is attached
// to every record.
func (c LogConfig) NewLogger(w io.Writer, component string) log.Logger {
	level := log.ParseLevel(c.Level)

	if c.Backend == "zerolog" {
		var out io.Writer = w
		if log.ParseFormat(c.Format) == log.FormatText {
			out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
		}
		zl := zerolog.New(out).With().Timestamp().Str("component", component).Logger().
			Level(level.ToZerologLevel())
		return log.Zerolog(zl)
	}

	return log.New(log.Config{
		Level:     level,
		Format:    log.ParseFormat(c.Format),
		Output:    log.NewOutput(w),
		Component: component,
	})
}
