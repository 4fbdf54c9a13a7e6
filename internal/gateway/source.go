package gateway

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/k-negishi/eventboard/internal/config"
	"github.com/k-negishi/eventboard/internal/usecase"
)

// NewEventSource 設定の EVENT_SOURCE に応じたソースを作成
//
// clock は一覧の基準日と同じものを渡す。期間を指定して取得するソースはこの日付を中心に取得する。
func NewEventSource(ctx context.Context, cfg *config.Config, clock func() time.Time, log *zap.Logger) (usecase.EventSource, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	switch cfg.EventSource {
	case config.SourceMarkdown:
		return NewMarkdownSource(cfg.EventsDir, loc, log), nil
	case config.SourceICS:
		return NewICSSource(cfg.ICSPath, loc, log), nil
	case config.SourceGoogle:
		return NewGoogleCalendarSource(ctx, []byte(cfg.GoogleCredentials), GoogleCalendarOptions{
			CalendarID: cfg.CalendarID,
			Timezone:   loc,
			PastDays:   cfg.PastDays,
			FutureDays: cfg.FutureDays,
			Clock:      clock,
			Log:        log,
		})
	default:
		return nil, fmt.Errorf("EVENT_SOURCEの値が不正です: %s", cfg.EventSource)
	}
}
