package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func icsFixture(events ...string) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//EN",
	}
	lines = append(lines, events...)
	lines = append(lines, "END:VCALENDAR", "")
	return strings.Join(lines, "\r\n")
}

func TestICSSource_FetchEvents(t *testing.T) {
	body := icsFixture(
		"BEGIN:VEVENT",
		"UID:utc-1",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240115T050000Z",
		"SUMMARY:Standup",
		"LOCATION:Room 1",
		"DESCRIPTION:Daily sync",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:allday-1",
		"DTSTAMP:20240101T000000Z",
		"DTSTART;VALUE=DATE:20240116",
		"SUMMARY:Holiday",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:floating-1",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240117T093000",
		"SUMMARY:Floating",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"DTSTAMP:20240101T000000Z",
		"DTSTART:20240118T093000Z",
		"SUMMARY:No UID",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:nostart-1",
		"DTSTAMP:20240101T000000Z",
		"SUMMARY:No start",
		"END:VEVENT",
	)

	path := filepath.Join(t.TempDir(), "events.ics")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	events, err := NewICSSource(path, jst, nil).FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "utc-1", events[0].ID)
	assert.Equal(t, "Standup", events[0].Title)
	assert.Equal(t, "Room 1", events[0].Location)
	require.NotNil(t, events[0].Body)
	assert.Equal(t, "Daily sync", *events[0].Body)
	assert.True(t, time.Date(2024, 1, 15, 14, 0, 0, 0, jst).Equal(events[0].Date))

	assert.Equal(t, "allday-1", events[1].ID)
	assert.Nil(t, events[1].Body)
	assert.True(t, time.Date(2024, 1, 16, 0, 0, 0, 0, jst).Equal(events[1].Date))

	assert.Equal(t, "floating-1", events[2].ID)
	assert.True(t, time.Date(2024, 1, 17, 9, 30, 0, 0, jst).Equal(events[2].Date))
}

func TestICSSource_ReadError(t *testing.T) {
	source := NewICSSource("/nonexistent/events.ics", jst, nil)
	source.readFile = func(string) ([]byte, error) {
		return nil, errors.New("permission denied")
	}

	_, err := source.FetchEvents(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ICSファイルの読み込みに失敗しました")
	assert.Contains(t, err.Error(), "permission denied")
}

func TestICSSource_Empty(t *testing.T) {
	source := NewICSSource("empty.ics", jst, nil)
	source.readFile = func(string) ([]byte, error) {
		return []byte("  \n"), nil
	}

	_, err := source.FetchEvents(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ICSファイルが空です")
}
