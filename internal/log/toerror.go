package log

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ToError normalizes an arbitrary recovered or reported value into an error.
// It never panics.
func ToError(v any) (err error) {
	switch t := v.(type) {
	case nil:
		return errors.New("<nil>")
	case error:
		return t
	case string:
		return errors.New(t)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", v)
		}
	}()

	b, mErr := json.Marshal(v)
	if mErr != nil {
		return fmt.Errorf("%v", v)
	}
	return errors.New(string(b))
}

// LogError returns a reporter that logs whatever it is handed at error level.
func LogError(l Logger, msg string) func(any) {
	return func(v any) {
		l.Error(Params{}, ToError(v), msg)
	}
}
