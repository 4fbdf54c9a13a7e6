package usecase

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/k-negishi/eventboard/internal/domain"
)

// EventSource イベントを読み込むポート
type EventSource interface {
	FetchEvents(ctx context.Context) ([]domain.RawEvent, error)
}

// Listing 分類済みの一覧と、その基準日
type Listing struct {
	Today       time.Time
	GeneratedAt time.Time
	Events      []domain.ProcessedEvent
}

// ListEventsUseCase イベント一覧ユースケース
type ListEventsUseCase struct {
	source EventSource
	clock  func() time.Time
	log    *zap.Logger
}

// NewListEventsUseCase ユースケースを生成
func NewListEventsUseCase(source EventSource, clock func() time.Time, log *zap.Logger) *ListEventsUseCase {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ListEventsUseCase{
		source: source,
		clock:  clock,
		log:    log,
	}
}

// Execute イベントを読み込み、今日を基準に分類・整列する
func (uc *ListEventsUseCase) Execute(ctx context.Context) (Listing, error) {
	raw, err := uc.source.FetchEvents(ctx)
	if err != nil {
		uc.log.Error("イベントの読み込みに失敗しました", zap.Error(err))
		return Listing{}, fmt.Errorf("イベントの読み込みに失敗しました: %w", err)
	}

	now := uc.clock()
	events := domain.ProcessEvents(raw, now)

	uc.log.Debug("イベント一覧を生成しました",
		zap.Int("count", len(events)),
		zap.Time("today", domain.StartOfDay(now)))

	return Listing{
		Today:       domain.StartOfDay(now),
		GeneratedAt: now,
		Events:      events,
	}, nil
}

// Filter 指定した区分のイベントだけを残す (順序は維持)
//
// 区分を指定しない場合は全件を返す。
func Filter(events []domain.ProcessedEvent, temporals ...domain.Temporal) []domain.ProcessedEvent {
	if len(temporals) == 0 {
		return events
	}
	out := make([]domain.ProcessedEvent, 0, len(events))
	for _, event := range events {
		if slices.Contains(temporals, event.Temporal) {
			out = append(out, event)
		}
	}
	return out
}

// Count 区分ごとの件数を返す
func Count(events []domain.ProcessedEvent) map[domain.Temporal]int {
	counts := map[domain.Temporal]int{
		domain.Current: 0,
		domain.Future:  0,
		domain.Past:    0,
	}
	for _, event := range events {
		counts[event.Temporal]++
	}
	return counts
}
