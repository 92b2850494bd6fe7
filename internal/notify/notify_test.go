package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tkbcal/internal/model"
	"tkbcal/internal/timetable"
)

func classRow(weekday, code, name, period, room, timeRange string) model.RawRow {
	return model.NewRawRow(
		"Thứ", weekday,
		"Mã học phần", code,
		"Nhóm", "01",
		"Tên học phần", name,
		"Tiết", period,
		"Phòng học", room,
		"CBGD", "",
		"Thời gian học", timeRange,
	)
}

func TestNotificationID(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		code  string
		index int
		want  int64
	}{
		{name: "Should cut a long hash to nine digits", date: "01/01/2024", code: "IT001", index: 0, want: 196585829},
		{name: "Should keep a short hash whole", date: "08/01/2024", code: "IT001", index: 1, want: 2930222},
		{name: "Should hash a tiny input", date: "", code: "a", index: 0, want: 3055},
		{name: "Should hash non-ASCII code units", date: "24/11/2025", code: "Mã", index: 2, want: 152482127},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NotificationID(tt.date, tt.code, tt.index))
		})
	}
}

func TestPlan(t *testing.T) {
	res := timetable.Build([]model.RawRow{
		classRow("2", "IT001", "Algorithms", "1,2,3", "A101", "01/01/2024-15/01/2024"),
		classRow("2", "IT002", "Networks", "7,8,9", "B202", "01/01/2024-01/01/2024"),
		classRow("2", "IT003", "Seminar", "", "Hall", "01/01/2024-01/01/2024"),
	}, timetable.DefaultOptions())

	t.Run("Should plan every future entry with a known period", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

		got := Plan(res, now, PlanOptions{Location: time.UTC})

		require.Len(t, got, 3)
		assert.Equal(t, "Môn Networks", got[0].Title)
		assert.Equal(t, "12:30, B202", got[0].Body)
		assert.Equal(t, time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC), got[0].StartAt)
		assert.Equal(t, time.Date(2024, 1, 1, 12, 15, 0, 0, time.UTC), got[0].TriggerAt)
		assert.Equal(t, NotificationID("01/01/2024", "IT002", 1), got[0].ID)

		assert.Equal(t, "08/01/2024", got[1].DateKey)
		assert.Equal(t, "15/01/2024", got[2].DateKey)
	})

	t.Run("Should apply a custom lead and zone", func(t *testing.T) {
		loc := time.FixedZone("ICT", 7*3600)
		now := time.Date(2024, 1, 14, 0, 0, 0, 0, loc)

		got := Plan(res, now, PlanOptions{Lead: time.Hour, Location: loc})

		require.Len(t, got, 1)
		assert.True(t, got[0].TriggerAt.Equal(time.Date(2024, 1, 15, 6, 0, 0, 0, loc)))
	})

	t.Run("Should plan nothing for an empty result", func(t *testing.T) {
		assert.Empty(t, Plan(model.EmptyResult(), time.Now(), PlanOptions{}))
	})
}

type fakeSource struct {
	cur timetable.Current
	err error
}

func (f fakeSource) Current(context.Context) (timetable.Current, error) {
	return f.cur, f.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	got  []Reminder
	fail bool
}

func (n *recordingNotifier) Notify(_ context.Context, r Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("unreachable")
	}
	n.got = append(n.got, r)
	return nil
}

func TestDispatcher_Tick(t *testing.T) {
	ctx := context.Background()
	res := timetable.Build([]model.RawRow{
		classRow("2", "IT001", "Algorithms", "1,2,3", "A101", "08/01/2024-08/01/2024"),
	}, timetable.DefaultOptions())
	source := fakeSource{cur: timetable.Current{Result: res, Found: true}}

	t.Run("Should deliver a reminder once when its trigger passes", func(t *testing.T) {
		clock := time.Date(2024, 1, 8, 6, 45, 30, 0, time.UTC)
		rec := &recordingNotifier{}
		d := NewDispatcher(source, rec, DispatcherOptions{
			Plan: PlanOptions{Location: time.UTC},
			Now:  func() time.Time { return clock },
		})

		n, err := d.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		clock = clock.Add(time.Minute)
		n, err = d.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n, "a delivered reminder should not repeat")

		require.Len(t, rec.got, 1)
		assert.Equal(t, "Môn Algorithms", rec.got[0].Title)
	})

	t.Run("Should skip reminders before the first look-back window", func(t *testing.T) {
		clock := time.Date(2024, 1, 8, 6, 50, 0, 0, time.UTC)
		rec := &recordingNotifier{}
		d := NewDispatcher(source, rec, DispatcherOptions{
			Plan: PlanOptions{Location: time.UTC},
			Now:  func() time.Time { return clock },
		})

		n, err := d.Tick(ctx)

		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("Should do nothing without an imported timetable", func(t *testing.T) {
		rec := &recordingNotifier{}
		d := NewDispatcher(fakeSource{cur: timetable.Current{Result: model.EmptyResult()}}, rec, DispatcherOptions{})

		n, err := d.Tick(ctx)

		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Should return source errors", func(t *testing.T) {
		boom := errors.New("db closed")
		d := NewDispatcher(fakeSource{err: boom}, &recordingNotifier{}, DispatcherOptions{})

		_, err := d.Tick(ctx)

		assert.ErrorIs(t, err, boom)
	})

	t.Run("Should not count failed deliveries", func(t *testing.T) {
		clock := time.Date(2024, 1, 8, 6, 45, 0, 0, time.UTC)
		d := NewDispatcher(source, &recordingNotifier{fail: true}, DispatcherOptions{
			Plan: PlanOptions{Location: time.UTC},
			Now:  func() time.Time { return clock },
		})

		n, err := d.Tick(ctx)

		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestDispatcher_StartRejectsBadSpec(t *testing.T) {
	d := NewDispatcher(fakeSource{}, LogNotifier{}, DispatcherOptions{Spec: "not a cron"})

	assert.Error(t, d.Start())
}

func TestSlackNotifier(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := SlackNotifier{WebhookURL: srv.URL}.Notify(context.Background(), Reminder{
		Title: "Môn Algorithms",
		Body:  "7:00, A101",
	})

	require.NoError(t, err)
	assert.Contains(t, body["text"], "Môn Algorithms")
	assert.Contains(t, body["text"], "7:00, A101")
}

func TestSlackNotifier_EmptyURL(t *testing.T) {
	assert.Error(t, SlackNotifier{}.Notify(context.Background(), Reminder{}))
}

func TestMulti(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{fail: true}

	err := Multi{bad, ok}.Notify(context.Background(), Reminder{Title: "x"})

	assert.Error(t, err)
	assert.Len(t, ok.got, 1, "a failing notifier should not stop the others")
}
