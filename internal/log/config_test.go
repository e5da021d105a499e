package log

import (
	"bytes"
	"os"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"text", FormatText},
		{"", FormatText},
		{"yaml", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseFormat(tt.in); got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got := ParseFormat(tt.want.String()); got != tt.want {
				t.Errorf("round trip of %v gave %v", tt.want, got)
			}
		})
	}
}

func TestOutputWriter(t *testing.T) {
	var buf bytes.Buffer
	if NewOutput(&buf).Writer() != &buf {
		t.Error("NewOutput should keep its writer")
	}
	if OutputStdout().Writer() != os.Stdout {
		t.Error("OutputStdout should write to stdout")
	}
	if (Output{}).Writer() != os.Stderr {
		t.Error("zero Output should fall back to stderr")
	}
}

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.Level != LevelInfo || c.Format != FormatText || c.AddSource {
		t.Errorf("unexpected default config %+v", c)
	}

	d := DevelopmentConfig()
	if d.Level != LevelDebug || !d.AddSource {
		t.Errorf("unexpected development config %+v", d)
	}
}
