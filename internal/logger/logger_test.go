package logger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWithWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	log.Info().Str("filename", "extracto.csv").Msg("import started")

	output := buf.String()
	if !strings.Contains(output, "import started") {
		t.Errorf("expected output to contain message, got: %s", output)
	}
	if !strings.Contains(output, "extracto.csv") {
		t.Errorf("expected output to contain filename field, got: %s", output)
	}
}

func TestWithContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewWithWriter(buf)

	ctx := WithContext(context.Background(), log)

	retrieved := FromContext(ctx)
	retrieved.Info().Msg("from context")

	if buf.Len() == 0 {
		t.Error("expected log output from retrieved logger")
	}
}

func TestFromContext_DefaultLogger(t *testing.T) {
	log := FromContext(context.Background())

	if log.GetLevel() == zerolog.Disabled {
		t.Error("expected default logger to be enabled")
	}
}
