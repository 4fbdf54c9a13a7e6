package domain

import "time"

// RawEvent コンテンツソースから読み込んだ未分類のイベント
type RawEvent struct {
	ID       string
	Title    string
	Date     time.Time
	Body     *string
	Location string
}

// ProcessedEvent 時間区分を付与した表示用イベント
type ProcessedEvent struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Temporal    Temporal  `json:"temporal"`
	Description *string   `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
}
