package log

import (
	"github.com/rs/zerolog"
)

type zerologLogger struct {
	zl zerolog.Logger
}

// Zerolog adapts a zerolog.Logger to the Logger contract.
func Zerolog(zl zerolog.Logger) Logger {
	return zerologLogger{zl: zl}
}

func (z zerologLogger) Debug(params Params, msg string) {
	z.zl.Debug().Fields(map[string]any(params)).Msg(msg)
}

func (z zerologLogger) Info(params Params, msg string) {
	z.zl.Info().Fields(map[string]any(params)).Msg(msg)
}

func (z zerologLogger) Warn(params Params, msg string) {
	z.zl.Warn().Fields(map[string]any(params)).Msg(msg)
}

func (z zerologLogger) Error(params Params, err error, msg string) {
	z.zl.Error().Err(err).Fields(map[string]any(params)).Msg(msg)
}
