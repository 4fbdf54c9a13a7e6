package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"github.com/k-negishi/eventboard/internal/domain"
)

// ICSSource iCalendarファイルからイベントを読み込むEventSource
type ICSSource struct {
	path     string
	location *time.Location
	log      *zap.Logger
	readFile func(string) ([]byte, error)
}

// NewICSSource iCalendarファイルのソースを作成
func NewICSSource(path string, location *time.Location, log *zap.Logger) *ICSSource {
	if location == nil {
		location = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ICSSource{
		path:     path,
		location: location,
		log:      log,
		readFile: os.ReadFile,
	}
}

// FetchEvents ファイルを読み込み VEVENT をイベントに変換
func (s *ICSSource) FetchEvents(ctx context.Context) ([]domain.RawEvent, error) {
	body, err := s.readFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("ICSファイルの読み込みに失敗しました: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.parse(body)
}

func (s *ICSSource) parse(body []byte) ([]domain.RawEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("ICSファイルが空です")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ICSの解析に失敗しました: %w", err)
	}

	vevents := cal.Events()
	events := make([]domain.RawEvent, 0, len(vevents))
	for _, ve := range vevents {
		event, err := s.convertToEvent(ve)
		if err != nil {
			// 不正なイベントはスキップして続行
			s.log.Warn("VEVENTの変換をスキップしました", zap.String("path", s.path), zap.Error(err))
			continue
		}
		events = append(events, event)
	}

	s.log.Debug("ICSからイベントを読み込みました", zap.String("path", s.path), zap.Int("count", len(events)))
	return events, nil
}

// convertToEvent VEVENTをイベントに変換
func (s *ICSSource) convertToEvent(ve *ical.VEvent) (domain.RawEvent, error) {
	uid := propertyValue(ve, ical.ComponentPropertyUniqueId)
	if uid == "" {
		return domain.RawEvent{}, errors.New("UIDがありません")
	}

	start, err := s.startOf(ve)
	if err != nil {
		return domain.RawEvent{}, fmt.Errorf("UID %s: %w", uid, err)
	}

	event := domain.RawEvent{
		ID:       uid,
		Title:    propertyValue(ve, ical.ComponentPropertySummary),
		Date:     start,
		Location: propertyValue(ve, ical.ComponentPropertyLocation),
	}
	if description := propertyValue(ve, ical.ComponentPropertyDescription); description != "" {
		event.Body = &description
	}
	return event, nil
}

// startOf DTSTARTを解釈する
//
// 終日 (日付のみ) とタイムゾーン指定のない日時は設定のタイムゾーンで解釈する。
func (s *ICSSource) startOf(ve *ical.VEvent) (time.Time, error) {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil || strings.TrimSpace(prop.Value) == "" {
		return time.Time{}, errors.New("DTSTARTがありません")
	}
	value := strings.TrimSpace(prop.Value)
	_, hasTZID := prop.ICalParameters["TZID"]

	switch {
	case !strings.Contains(value, "T"):
		t, err := time.ParseInLocation("20060102", value, s.location)
		if err != nil {
			return time.Time{}, fmt.Errorf("DTSTARTの解析に失敗しました: %w", err)
		}
		return t, nil
	case !hasTZID && !strings.HasSuffix(value, "Z"):
		t, err := time.ParseInLocation("20060102T150405", value, s.location)
		if err != nil {
			return time.Time{}, fmt.Errorf("DTSTARTの解析に失敗しました: %w", err)
		}
		return t, nil
	}

	t, err := ve.GetStartAt()
	if err != nil {
		return time.Time{}, fmt.Errorf("DTSTARTの解析に失敗しました: %w", err)
	}
	return t, nil
}

func propertyValue(ve *ical.VEvent, name ical.ComponentProperty) string {
	if p := ve.GetProperty(name); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}
