package logging

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/gt"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	Init("info", "json", &buf)
	defer Init("info", "json", os.Stderr)

	Info("feed_ranked", map[string]any{"user_id": "u1", "items": 3, "err": errors.New("boom")})

	var got map[string]any
	gt.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	gt.Equal(t, got["message"], any("feed_ranked"))
	gt.Equal(t, got["level"], any("info"))
	gt.Equal(t, got["user_id"], any("u1"))
	gt.Equal(t, got["err"], any("boom"))
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	Init("warn", "json", &buf)
	defer Init("info", "json", os.Stderr)

	Debug("hidden", nil)
	Info("hidden", nil)
	gt.Equal(t, buf.Len(), 0)

	Error("shown", nil)
	gt.True(t, buf.Len() > 0)
}
