package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeEvents テスト用のイベントディレクトリを作成し環境変数に設定する
func writeEvents(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"past1.md":    "---\ntitle: Past Event 1\ndate: 2024-01-10T10:00:00Z\n---\n",
		"future1.md":  "---\ntitle: Future Event 1\ndate: 2024-01-20T10:00:00Z\n---\n",
		"current1.md": "---\ntitle: Current Event 1\ndate: 2024-01-15T14:00:00Z\nlocation: Hall\n---\nX\n",
		"past2.md":    "---\ntitle: Past Event 2\ndate: 2024-01-12T10:00:00Z\n---\n",
		"future2.md":  "---\ntitle: Future Event 2\ndate: 2024-01-18T10:00:00Z\n---\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	t.Setenv("EVENT_SOURCE", "markdown")
	t.Setenv("EVENTS_DIR", dir)
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("LOG_LEVEL", "ERROR")
	t.Setenv("UPCOMING_LIMIT", "1")
	t.Setenv("LINE_CHANNEL_ACCESS_TOKEN", "")
	t.Setenv("LINE_USER_ID", "")
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	err := newApp(&out).RunContext(context.Background(), append([]string{"eventboard"}, args...))
	return out.String(), err
}

func TestList_JSON(t *testing.T) {
	writeEvents(t)

	out, err := run(t, "list", "--format", "json", "--today", "2024-01-15")
	require.NoError(t, err)

	var events []struct {
		ID          string  `json:"id"`
		Temporal    string  `json:"temporal"`
		Description *string `json:"description"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &events))

	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"current1", "future2", "future1", "past2", "past1"}, ids)
	require.NotNil(t, events[0].Description)
	assert.Equal(t, "X", *events[0].Description)
	assert.Nil(t, events[1].Description)
}

func TestList_TextWithFilter(t *testing.T) {
	writeEvents(t)

	out, err := run(t, "list", "--temporal", "future", "--today", "2024-01-15")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "future2")
	assert.Contains(t, lines[0], "2024-01-18 10:00")
	assert.Contains(t, lines[1], "future1")
}

func TestList_ICS(t *testing.T) {
	writeEvents(t)

	out, err := run(t, "list", "--format", "ics", "--today", "2024-01-15")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Equal(t, 5, strings.Count(out, "BEGIN:VEVENT"))
}

func TestList_InvalidFlags(t *testing.T) {
	writeEvents(t)

	_, err := run(t, "list", "--temporal", "someday")
	assert.Error(t, err)

	_, err = run(t, "list", "--today", "15/01/2024")
	assert.Error(t, err)

	_, err = run(t, "list", "--format", "xml")
	assert.Error(t, err)
}

func TestNotify_DryRun(t *testing.T) {
	writeEvents(t)

	out, err := run(t, "notify", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "eventboard")
	assert.Contains(t, out, "今後の予定")
}

func TestNotify_MissingCredentials(t *testing.T) {
	writeEvents(t)

	_, err := run(t, "notify")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "LINE_CHANNEL_ACCESS_TOKEN")
}

func TestReferenceClock(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)

	clock, err := referenceClock("2023-01-10", jst)
	require.NoError(t, err)
	assert.True(t, time.Date(2023, 1, 10, 0, 0, 0, 0, jst).Equal(clock()))

	clock, err = referenceClock("", jst)
	require.NoError(t, err)
	assert.Equal(t, jst, clock().Location())

	_, err = referenceClock("2023/01/10", jst)
	assert.Error(t, err)
}
