package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/k-negishi/eventboard/internal/domain"
)

// Notifier 通知を送信するポート
//
// day は一覧の分類に使った基準日 (その日の0時)。
type Notifier interface {
	SendDigest(ctx context.Context, day time.Time, current []domain.ProcessedEvent, upcoming []domain.ProcessedEvent) error
}

// Lister 分類済みの一覧を返すポート
type Lister interface {
	Execute(ctx context.Context) (Listing, error)
}

// NotifyDigestUseCase 本日と今後の予定を通知するユースケース
type NotifyDigestUseCase struct {
	lister        Lister
	notifier      Notifier
	upcomingLimit int
	log           *zap.Logger
}

// NewNotifyDigestUseCase ユースケースを生成
func NewNotifyDigestUseCase(lister Lister, notifier Notifier, upcomingLimit int, log *zap.Logger) *NotifyDigestUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotifyDigestUseCase{
		lister:        lister,
		notifier:      notifier,
		upcomingLimit: upcomingLimit,
		log:           log,
	}
}

// Execute 一覧から本日分と直近の予定を取り出して通知する
func (uc *NotifyDigestUseCase) Execute(ctx context.Context) (skipped bool, err error) {
	listing, err := uc.lister.Execute(ctx)
	if err != nil {
		return false, err
	}

	today, upcoming := Digest(listing.Events, uc.upcomingLimit)

	// 本日も今後も予定がない場合はスキップ
	if len(today) == 0 && len(upcoming) == 0 {
		uc.log.Info("予定なしのため通知をスキップします")
		return true, nil
	}

	if err := uc.notifier.SendDigest(ctx, listing.Today, today, upcoming); err != nil {
		uc.log.Error("通知の送信に失敗しました", zap.Error(err))
		return false, err
	}

	uc.log.Info("通知を送信しました",
		zap.Int("today", len(today)),
		zap.Int("upcoming", len(upcoming)))
	return false, nil
}

// Digest 整列済みの一覧から本日分と先頭 limit 件の今後の予定を返す
//
// limit が 0 以下の場合、今後の予定は全件。
func Digest(events []domain.ProcessedEvent, limit int) (today, upcoming []domain.ProcessedEvent) {
	today = Filter(events, domain.Current)
	upcoming = Filter(events, domain.Future)
	if limit > 0 && len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return today, upcoming
}
