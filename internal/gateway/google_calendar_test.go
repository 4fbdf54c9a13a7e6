package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// MockEventsProvider は EventsProvider のテスト用モック
type MockEventsProvider struct {
	mock.Mock
}

func (m *MockEventsProvider) ListEvents(ctx context.Context, calendarID, timeMin, timeMax string) ([]*calendar.Event, error) {
	args := m.Called(ctx, calendarID, timeMin, timeMax)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*calendar.Event), args.Error(1)
}

func newTestGoogleSource(provider EventsProvider) *GoogleCalendarSource {
	return NewGoogleCalendarSourceWithProvider(provider, GoogleCalendarOptions{
		CalendarID: "test-calendar",
		Timezone:   jst,
		PastDays:   7,
		FutureDays: 30,
		Clock: func() time.Time {
			return time.Date(2024, 1, 15, 9, 0, 0, 0, jst)
		},
	})
}

// --- convertToEvent テスト（純粋ロジック） ---

func TestConvertToEvent_TimedEvent(t *testing.T) {
	source := newTestGoogleSource(nil)

	event, err := source.convertToEvent(&calendar.Event{
		Id:          "1",
		Summary:     "テストイベント",
		Location:    "東京",
		Description: "説明",
		Start:       &calendar.EventDateTime{DateTime: "2024-01-15T01:00:00Z"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", event.ID)
	assert.Equal(t, "テストイベント", event.Title)
	assert.Equal(t, "東京", event.Location)
	require.NotNil(t, event.Body)
	assert.Equal(t, "説明", *event.Body)
	assert.Equal(t, 10, event.Date.Hour())
}

func TestConvertToEvent_AllDayEvent(t *testing.T) {
	source := newTestGoogleSource(nil)

	event, err := source.convertToEvent(&calendar.Event{
		Id:      "2",
		Summary: "終日イベント",
		Start:   &calendar.EventDateTime{Date: "2024-01-15"},
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, jst), event.Date)
	assert.Nil(t, event.Body)
}

func TestConvertToEvent_EmptyTitle(t *testing.T) {
	source := newTestGoogleSource(nil)

	event, err := source.convertToEvent(&calendar.Event{
		Id:    "3",
		Start: &calendar.EventDateTime{DateTime: "2024-01-15T10:00:00+09:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, "（無題）", event.Title)
}

func TestConvertToEvent_NoStartTime(t *testing.T) {
	source := newTestGoogleSource(nil)

	_, err := source.convertToEvent(&calendar.Event{Id: "4", Start: &calendar.EventDateTime{}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "開始時刻が設定されていません")

	_, err = source.convertToEvent(&calendar.Event{Id: "5"})
	assert.Error(t, err)
}

// --- FetchEvents テスト（モック使用） ---

func TestFetchEvents_Success(t *testing.T) {
	mockProvider := new(MockEventsProvider)
	source := newTestGoogleSource(mockProvider)

	items := []*calendar.Event{
		{Id: "1", Summary: "朝会", Start: &calendar.EventDateTime{DateTime: "2024-01-15T09:00:00+09:00"}},
		{Id: "2", Summary: "中止", Status: "cancelled", Start: &calendar.EventDateTime{DateTime: "2024-01-15T11:00:00+09:00"}},
		{Id: "3", Summary: "壊れた予定", Start: &calendar.EventDateTime{DateTime: "not-a-time"}},
	}

	mockProvider.On("ListEvents", mock.Anything, "test-calendar", "2024-01-08T00:00:00+09:00", "2024-02-14T00:00:00+09:00").
		Return(items, nil)

	events, err := source.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "朝会", events[0].Title)
	mockProvider.AssertExpectations(t)
}

func TestFetchEvents_WindowFollowsClock(t *testing.T) {
	mockProvider := new(MockEventsProvider)
	source := NewGoogleCalendarSourceWithProvider(mockProvider, GoogleCalendarOptions{
		CalendarID: "test-calendar",
		Timezone:   jst,
		PastDays:   30,
		FutureDays: 90,
		Clock: func() time.Time {
			return time.Date(2023, 1, 10, 0, 0, 0, 0, jst)
		},
	})

	mockProvider.On("ListEvents", mock.Anything, "test-calendar", "2022-12-11T00:00:00+09:00", "2023-04-10T00:00:00+09:00").
		Return([]*calendar.Event{
			{Id: "old", Summary: "新年会", Start: &calendar.EventDateTime{DateTime: "2023-01-10T19:00:00+09:00"}},
		}, nil)

	events, err := source.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "old", events[0].ID)
	mockProvider.AssertExpectations(t)
}

func TestFetchEvents_APIError(t *testing.T) {
	mockProvider := new(MockEventsProvider)
	source := newTestGoogleSource(mockProvider)

	mockProvider.On("ListEvents", mock.Anything, "test-calendar", mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(nil, errors.New("API error"))

	_, err := source.FetchEvents(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "カレンダーイベントの取得に失敗しました")
	mockProvider.AssertExpectations(t)
}

func TestFetchEvents_EmptyResult(t *testing.T) {
	mockProvider := new(MockEventsProvider)
	source := newTestGoogleSource(mockProvider)

	mockProvider.On("ListEvents", mock.Anything, "test-calendar", mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return([]*calendar.Event{}, nil)

	events, err := source.FetchEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

// --- calendarServiceProvider テスト（httptest 使用） ---

func TestCalendarServiceProvider_Pages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "test-calendar/events")
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))

		resp := &calendar.Events{}
		if r.URL.Query().Get("pageToken") == "" {
			resp.Items = []*calendar.Event{{Id: "event1", Summary: "Page 1", Start: &calendar.EventDateTime{Date: "2024-01-15"}}}
			resp.NextPageToken = "next"
		} else {
			resp.Items = []*calendar.Event{{Id: "event2", Summary: "Page 2", Start: &calendar.EventDateTime{DateTime: "2024-01-16T10:00:00+09:00"}}}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	svc, err := calendar.NewService(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithHTTPClient(server.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)

	source := NewGoogleCalendarSourceWithService(svc, GoogleCalendarOptions{
		CalendarID: "test-calendar",
		Timezone:   jst,
		FutureDays: 30,
	})

	events, err := source.FetchEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "event1", events[0].ID)
	assert.Equal(t, "event2", events[1].ID)
}
