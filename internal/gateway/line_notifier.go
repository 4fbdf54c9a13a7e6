package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/k-negishi/eventboard/internal/domain"
)

const (
	linePushEndpoint = "https://api.line.me/v2/bot/message/push"
	digestHeader     = "eventboard"
)

// LINENotifier LINE Messaging APIを使用したNotifierの実装
type LINENotifier struct {
	channelAccessToken string
	userID             string
	httpClient         *http.Client
	endpoint           string
	timezone           *time.Location
}

// lineMessage LINE APIに送信するメッセージ構造体
type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// linePushRequest LINE Push APIのリクエスト構造体
type linePushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

// lineErrorResponse LINE APIのエラーレスポンス構造体
type lineErrorResponse struct {
	Message string `json:"message"`
	Details []struct {
		Message  string `json:"message"`
		Property string `json:"property"`
	} `json:"details"`
}

// NewLINENotifier LINE通知クライアントを作成
func NewLINENotifier(channelAccessToken, userID string, timezone *time.Location) *LINENotifier {
	if timezone == nil {
		timezone = time.UTC
	}
	return &LINENotifier{
		channelAccessToken: channelAccessToken,
		userID:             userID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		endpoint: linePushEndpoint,
		timezone: timezone,
	}
}

// SendDigest 基準日 day の予定と今後の予定をLINEで通知
func (n *LINENotifier) SendDigest(ctx context.Context, day time.Time, current, upcoming []domain.ProcessedEvent) error {
	return n.sendPushMessage(ctx, n.buildDigestMessage(day, current, upcoming))
}

// BuildDigestMessage 送信せずに通知メッセージだけを返す (dry-run 用)
func (n *LINENotifier) BuildDigestMessage(day time.Time, current, upcoming []domain.ProcessedEvent) string {
	return n.buildDigestMessage(day, current, upcoming)
}

// buildDigestMessage 予定通知用のメッセージを構築
//
// 見出しの日付は一覧の分類に使った基準日をそのまま使う。
func (n *LINENotifier) buildDigestMessage(day time.Time, current, upcoming []domain.ProcessedEvent) string {
	var b strings.Builder

	b.WriteString(digestHeader + "\n\n")

	// 本日の予定
	dow := getWeekdayJapanese(day.Weekday())
	if len(current) > 0 {
		fmt.Fprintf(&b, "本日 %s(%s) (%d件):\n", day.Format("1/2"), dow, len(current))
		for _, event := range current {
			n.appendEvent(&b, event, false)
		}
	} else {
		fmt.Fprintf(&b, "本日 %s(%s): 予定なし\n", day.Format("1/2"), dow)
	}

	b.WriteString("\n")

	// 今後の予定
	if len(upcoming) > 0 {
		fmt.Fprintf(&b, "今後の予定 (%d件):\n", len(upcoming))
		for _, event := range upcoming {
			n.appendEvent(&b, event, true)
		}
	} else {
		b.WriteString("今後の予定: 予定なし\n")
	}

	return b.String()
}

// appendEvent イベントを1行 (+場所) で追加
func (n *LINENotifier) appendEvent(b *strings.Builder, event domain.ProcessedEvent, withDate bool) {
	date := event.Date.In(n.timezone)
	if withDate {
		fmt.Fprintf(b, "🔸 %s(%s) %s %s\n", date.Format("1/2"), getWeekdayJapanese(date.Weekday()), date.Format("15:04"), event.Title)
	} else {
		fmt.Fprintf(b, "🔸 %s %s\n", date.Format("15:04"), event.Title)
	}

	// 場所情報があれば追加
	if event.Location != "" {
		fmt.Fprintf(b, "   📍 %s\n", event.Location)
	}
}

// sendPushMessage LINE Push APIでメッセージを送信
func (n *LINENotifier) sendPushMessage(ctx context.Context, message string) error {
	requestBody, err := json.Marshal(linePushRequest{
		To:       n.userID,
		Messages: []lineMessage{{Type: "text", Text: message}},
	})
	if err != nil {
		return fmt.Errorf("リクエストボディのJSON変換に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.channelAccessToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("LINE APIリクエストの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("LINE API呼び出しが失敗しました (Status: %d): %s", resp.StatusCode, describeLINEError(resp.Body))
	}
	return nil
}

// describeLINEError エラーレスポンスの本文を1行にまとめる
func describeLINEError(body io.Reader) string {
	var errorResponse lineErrorResponse
	if err := json.NewDecoder(body).Decode(&errorResponse); err != nil {
		return fmt.Sprintf("レスポンス解析不可: %v", err)
	}
	if len(errorResponse.Details) == 0 {
		return errorResponse.Message
	}

	details := make([]string, 0, len(errorResponse.Details))
	for _, d := range errorResponse.Details {
		details = append(details, d.Property+": "+d.Message)
	}
	return fmt.Sprintf("%s (詳細: %s)", errorResponse.Message, strings.Join(details, ", "))
}

// getWeekdayJapanese 曜日を日本語に変換
func getWeekdayJapanese(weekday time.Weekday) string {
	return [...]string{"日", "月", "火", "水", "木", "金", "土"}[weekday]
}
