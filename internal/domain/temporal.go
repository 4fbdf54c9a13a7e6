package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Temporal 基準日に対するイベントの時間区分
//
// 数値の大小がそのまま一覧の表示順になる (Current < Future < Past)。
type Temporal int

const (
	Current Temporal = 0
	Future  Temporal = 1
	Past    Temporal = 2
)

var temporalNames = map[Temporal]string{
	Current: "current",
	Future:  "future",
	Past:    "past",
}

// String 区分名を返す
func (t Temporal) String() string {
	if name, ok := temporalNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Temporal(%d)", int(t))
}

// MarshalText JSON等では区分名で出力する
func (t Temporal) MarshalText() ([]byte, error) {
	if _, ok := temporalNames[t]; !ok {
		return nil, fmt.Errorf("不正な時間区分です: %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText 区分名から復元する
func (t *Temporal) UnmarshalText(text []byte) error {
	parsed, err := ParseTemporal(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTemporal 区分名 (current/future/past) を Temporal に変換
func ParseTemporal(name string) (Temporal, error) {
	for t, n := range temporalNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("不明な時間区分です: %q", name)
}

// ParseTemporals カンマ区切りの区分名を解析 (大文字小文字・空白は無視)
//
// 空文字列の場合は nil を返す。
func ParseTemporals(csv string) ([]Temporal, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var out []Temporal
	for _, name := range strings.Split(csv, ",") {
		t, err := ParseTemporal(strings.ToLower(strings.TrimSpace(name)))
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// StartOfDay t と同じロケーションでの当日 00:00:00 を返す
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Classify 日付を基準日に対して分類する
//
// today は呼び出し側で日の始まりに揃えておくこと。
// [today, 翌日) が Current、翌日以降が Future、それより前が Past。
func Classify(date, today time.Time) Temporal {
	nextDay := today.AddDate(0, 0, 1)

	switch {
	case !date.Before(nextDay):
		return Future
	case !date.Before(today):
		return Current
	default:
		return Past
	}
}

// Compare 一覧の並び順を決める比較関数
//
// 区分順が優先。同じ区分内では Past は新しい順、Current/Future は古い順。
func Compare(a, b ProcessedEvent) int {
	if a.Temporal != b.Temporal {
		return int(a.Temporal) - int(b.Temporal)
	}

	if a.Temporal == Past {
		return b.Date.Compare(a.Date)
	}
	return a.Date.Compare(b.Date)
}

// ProcessEvents イベントを分類して表示順に並べる
//
// today がゼロ値の場合は現在時刻を使う。基準日は新しい値として日の始まりに
// 揃えるので、呼び出し側の値は変更されない。
func ProcessEvents(events []RawEvent, today time.Time) []ProcessedEvent {
	if today.IsZero() {
		today = time.Now()
	}
	ref := StartOfDay(today)

	processed := make([]ProcessedEvent, 0, len(events))
	for _, event := range events {
		processed = append(processed, ProcessedEvent{
			ID:          event.ID,
			Title:       event.Title,
			Date:        event.Date,
			Temporal:    Classify(event.Date, ref),
			Description: copyString(event.Body),
			Location:    event.Location,
		})
	}

	slices.SortStableFunc(processed, Compare)
	return processed
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
