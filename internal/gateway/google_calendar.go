package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/k-negishi/eventboard/internal/domain"
)

const untitledEvent = "（無題）"

// EventsProvider Google Calendar APIからイベントを取得するポート
type EventsProvider interface {
	ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error)
}

// calendarServiceProvider calendar.Service を使った EventsProvider
type calendarServiceProvider struct {
	service *calendar.Service
}

// ListEvents 期間内のイベントを全ページ分取得
func (p *calendarServiceProvider) ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error) {
	var items []*calendar.Event
	err := p.service.Events.List(calendarID).
		TimeMin(timeMin).
		TimeMax(timeMax).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250).
		Pages(ctx, func(page *calendar.Events) error {
			items = append(items, page.Items...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GoogleCalendarSource Google Calendarからイベントを読み込むEventSource
type GoogleCalendarSource struct {
	provider   EventsProvider
	calendarID string
	timezone   *time.Location
	pastDays   int
	futureDays int
	clock      func() time.Time
	log        *zap.Logger
}

// GoogleCalendarOptions 取得範囲などの設定
type GoogleCalendarOptions struct {
	CalendarID string
	Timezone   *time.Location
	PastDays   int
	FutureDays int
	Clock      func() time.Time
	Log        *zap.Logger
}

// NewGoogleCalendarSource サービスアカウント認証でGoogle Calendarソースを作成
func NewGoogleCalendarSource(ctx context.Context, credentialsJSON []byte, opts GoogleCalendarOptions) (*GoogleCalendarSource, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("google認証情報の読み込みに失敗しました: %w", err)
	}

	service, err := calendar.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("google Calendar APIサービスの作成に失敗しました: %w", err)
	}

	return NewGoogleCalendarSourceWithService(service, opts), nil
}

// NewGoogleCalendarSourceWithService 作成済みのサービスからソースを作成
func NewGoogleCalendarSourceWithService(service *calendar.Service, opts GoogleCalendarOptions) *GoogleCalendarSource {
	return NewGoogleCalendarSourceWithProvider(&calendarServiceProvider{service: service}, opts)
}

// NewGoogleCalendarSourceWithProvider 任意の EventsProvider からソースを作成
func NewGoogleCalendarSourceWithProvider(provider EventsProvider, opts GoogleCalendarOptions) *GoogleCalendarSource {
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &GoogleCalendarSource{
		provider:   provider,
		calendarID: opts.CalendarID,
		timezone:   opts.Timezone,
		pastDays:   opts.PastDays,
		futureDays: opts.FutureDays,
		clock:      opts.Clock,
		log:        opts.Log,
	}
}

// FetchEvents 今日を中心に [今日-pastDays, 今日+futureDays) のイベントを取得
func (s *GoogleCalendarSource) FetchEvents(ctx context.Context) ([]domain.RawEvent, error) {
	today := domain.StartOfDay(s.clock().In(s.timezone))
	timeMin := today.AddDate(0, 0, -s.pastDays).Format(time.RFC3339)
	timeMax := today.AddDate(0, 0, s.futureDays).Format(time.RFC3339)

	items, err := s.provider.ListEvents(ctx, s.calendarID, timeMin, timeMax)
	if err != nil {
		return nil, fmt.Errorf("カレンダーイベントの取得に失敗しました: %w", err)
	}

	events := make([]domain.RawEvent, 0, len(items))
	for _, item := range items {
		if item.Status == "cancelled" {
			continue
		}
		event, err := s.convertToEvent(item)
		if err != nil {
			s.log.Warn("イベントの変換をスキップしました", zap.String("id", item.Id), zap.Error(err))
			continue
		}
		events = append(events, event)
	}

	return events, nil
}

// convertToEvent Google Calendar APIのイベントを変換
func (s *GoogleCalendarSource) convertToEvent(item *calendar.Event) (domain.RawEvent, error) {
	event := domain.RawEvent{
		ID:       item.Id,
		Title:    item.Summary,
		Location: item.Location,
	}

	// タイトルが空の場合は「（無題）」に設定
	if event.Title == "" {
		event.Title = untitledEvent
	}
	if item.Description != "" {
		description := item.Description
		event.Body = &description
	}

	switch {
	case item.Start == nil:
		return domain.RawEvent{}, fmt.Errorf("開始時刻が設定されていません")
	case item.Start.DateTime != "":
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			return domain.RawEvent{}, fmt.Errorf("開始時刻の解析に失敗しました: %w", err)
		}
		event.Date = start.In(s.timezone)
	case item.Start.Date != "":
		// 終日イベントは設定タイムゾーンの0時
		start, err := time.ParseInLocation("2006-01-02", item.Start.Date, s.timezone)
		if err != nil {
			return domain.RawEvent{}, fmt.Errorf("開始日の解析に失敗しました: %w", err)
		}
		event.Date = start
	default:
		return domain.RawEvent{}, fmt.Errorf("開始時刻が設定されていません")
	}

	return event, nil
}
