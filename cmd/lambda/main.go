package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/k-negishi/eventboard/internal/config"
	"github.com/k-negishi/eventboard/internal/gateway"
	"github.com/k-negishi/eventboard/internal/logger"
	"github.com/k-negishi/eventboard/internal/usecase"
)

// LambdaEvent Lambda実行時のイベント構造体
type LambdaEvent struct {
	// EventBridge Schedulerからの実行なので特に使用しない
}

// LambdaResponse Lambda実行結果のレスポンス
type LambdaResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// handler Lambda関数のメインハンドラー
func handler(ctx context.Context, _ LambdaEvent) (LambdaResponse, error) {
	cfg, err := config.Load()
	if err != nil {
		return LambdaResponse{StatusCode: 500, Message: "設定読み込みエラー"}, err
	}
	if err := cfg.ValidateNotifier(); err != nil {
		return LambdaResponse{StatusCode: 500, Message: "設定読み込みエラー"}, err
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return LambdaResponse{StatusCode: 500, Message: "ロガー初期化エラー"}, err
	}
	defer func() { _ = log.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		return LambdaResponse{StatusCode: 500, Message: "設定読み込みエラー"}, err
	}

	// 基準日は設定のタイムゾーンで判定する
	clock := func() time.Time { return time.Now().In(loc) }

	source, err := gateway.NewEventSource(ctx, cfg, clock, log)
	if err != nil {
		log.Error("イベントソースの初期化に失敗しました", zap.Error(err))
		return LambdaResponse{StatusCode: 500, Message: "イベントソース初期化エラー"}, err
	}

	lister := usecase.NewListEventsUseCase(source, clock, log)
	notifier := gateway.NewLINENotifier(cfg.LineChannelAccessToken, cfg.LineUserID, loc)

	skipped, err := usecase.NewNotifyDigestUseCase(lister, notifier, cfg.UpcomingLimit, log).Execute(ctx)
	if err != nil {
		return LambdaResponse{StatusCode: 500, Message: "通知処理エラー"}, err
	}
	if skipped {
		return LambdaResponse{StatusCode: 200, Message: "予定なしのため通知スキップ"}, nil
	}

	return LambdaResponse{StatusCode: 200, Message: "通知送信完了"}, nil
}

func main() {
	lambda.Start(handler)
}
