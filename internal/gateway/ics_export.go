package gateway

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/k-negishi/eventboard/internal/domain"
)

// TemporalProperty 出力するVEVENTに付与する時間区分のプロパティ名
const TemporalProperty ical.ComponentProperty = "X-EVENTBOARD-TEMPORAL"

// EncodeICS 分類済みの一覧をiCalendar形式で出力
func EncodeICS(events []domain.ProcessedEvent, generatedAt time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//eventboard//EN")

	for _, e := range events {
		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(generatedAt)
		ve.SetStartAt(e.Date)
		ve.SetSummary(e.Title)
		if e.Description != nil {
			ve.SetDescription(*e.Description)
		}
		if e.Location != "" {
			ve.SetLocation(e.Location)
		}
		ve.SetProperty(TemporalProperty, e.Temporal.String())
	}

	return cal.Serialize()
}
