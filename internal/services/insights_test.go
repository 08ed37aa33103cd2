package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giftmind/giftmind-backend/internal/models"
)

// fakeArchiveSource serves a fixed archive list.
type fakeArchiveSource struct {
	archives []models.Archive
	err      error
}

func (f *fakeArchiveSource) AllForUser(context.Context, int64) ([]models.Archive, error) {
	return f.archives, f.err
}

// fakeQuoteSource serves a fixed quote.
type fakeQuoteSource struct {
	quote *InsightCopy
	err   error
	calls int
}

func (f *fakeQuoteSource) RandomActive(context.Context) (*InsightCopy, error) {
	f.calls++
	return f.quote, f.err
}

func testInsightsService(archives []models.Archive, quotes QuoteSource, now time.Time) *InsightsService {
	svc := NewInsightsService(&fakeArchiveSource{archives: archives}, quotes)
	svc.now = func() time.Time { return now }
	return svc
}

func TestBoardPicksNearestEventInWindow(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	archives := []models.Archive{{
		ID:   4,
		Name: "妈妈",
		Events: []models.EventItem{
			{Name: "生日", Date: "03-08"},
			{Name: "纪念日", Date: "03-06"},
		},
	}}
	svc := testInsightsService(archives, &fakeQuoteSource{}, now)

	card := svc.Board(context.Background(), 7)
	require.Equal(t, BoardTypeReminder, card.Type)
	assert.Equal(t, "还有1天就是妈妈的纪念日，需要我帮你准备礼物吗？", card.Message)
	assert.Equal(t, "archives", card.Meta["source"])

	reminder, ok := card.Context.(ReminderContext)
	require.True(t, ok)
	// Event id encodes the archive row and the event's position.
	assert.Equal(t, int64(402), reminder.EventID)
	assert.Equal(t, 1, reminder.DaysLeft)
	assert.Equal(t, defaultRemindWindow, reminder.RemindBeforeDays)
	assert.True(t, reminder.InReminderWindow)
}

func TestBoardEventTodayReadsAsToday(t *testing.T) {
	now := time.Date(2026, 3, 5, 23, 30, 0, 0, time.UTC)
	archives := []models.Archive{{
		ID:     1,
		Name:   "小李",
		Events: []models.EventItem{{Name: "生日", Date: "3月5日"}},
	}}
	svc := testInsightsService(archives, &fakeQuoteSource{}, now)

	card := svc.Board(context.Background(), 7)
	require.Equal(t, BoardTypeReminder, card.Type)
	assert.Equal(t, "今天就是小李的生日，需要我帮你准备礼物吗？", card.Message)
}

func TestBoardFallsBackToQuote(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	archives := []models.Archive{{
		ID:     1,
		Name:   "小李",
		Events: []models.EventItem{{Name: "生日", Date: "04-20"}},
	}}
	quotes := &fakeQuoteSource{quote: &InsightCopy{ID: "12", Text: "每一份心意都值得被记住。", Source: "db"}}
	svc := testInsightsService(archives, quotes, now)

	card := svc.Board(context.Background(), 7)
	require.Equal(t, BoardTypeDailyQuote, card.Type)
	assert.Equal(t, "每一份心意都值得被记住。", card.Message)
	assert.Equal(t, "db", card.Meta["source"])

	quote, ok := card.Context.(QuoteContext)
	require.True(t, ok)
	assert.Equal(t, "12", quote.CopyID)
}

func TestDailyQuoteCachesAndUsesStaticFallback(t *testing.T) {
	current := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	quotes := &fakeQuoteSource{err: errors.New("db down")}
	svc := NewInsightsService(&fakeArchiveSource{}, quotes)
	svc.now = func() time.Time { return current }

	card := svc.Board(context.Background(), 7)
	require.Equal(t, BoardTypeDailyQuote, card.Type)
	assert.Equal(t, "fallback", card.Meta["source"])
	texts := map[string]bool{}
	for _, q := range fallbackQuotes {
		texts[q.Text] = true
	}
	assert.True(t, texts[card.Message])

	// Within the TTL the cached card is served, pool untouched.
	quotes.err = nil
	quotes.quote = &InsightCopy{ID: "9", Text: "新文案。", Source: "db"}
	again := svc.Board(context.Background(), 7)
	assert.Equal(t, card.Message, again.Message)
	assert.Equal(t, 1, quotes.calls)

	// Past the TTL the pool is read again.
	current = current.Add(16 * time.Minute)
	fresh := svc.Board(context.Background(), 7)
	assert.Equal(t, "新文案。", fresh.Message)
	assert.Equal(t, 2, quotes.calls)
}

func TestUpcomingEventsRollRecurringDates(t *testing.T) {
	now := time.Date(2026, 12, 30, 9, 0, 0, 0, time.UTC)
	archives := []models.Archive{{
		ID:   1,
		Name: "小李",
		Events: []models.EventItem{
			{Name: "元旦", Date: "01-01"},
			{Name: "生日", Date: "2000-01-02"},
			{Name: "周年", Date: "05-20"},
		},
	}}
	svc := testInsightsService(archives, &fakeQuoteSource{}, now)

	events := svc.UpcomingEvents(context.Background(), 7)
	require.Len(t, events, 2)

	// Year-less dates already past this year roll into next year.
	assert.Equal(t, int64(101), events[0].ID)
	assert.Equal(t, "元旦", events[0].EventName)
	assert.Equal(t, 2, events[0].DaysLeft)
	assert.True(t, events[0].InReminderWindow)

	assert.Equal(t, int64(102), events[1].ID)
	assert.Equal(t, 3, events[1].DaysLeft)
}

func TestUpcomingEventsEmptyOnErrorOrNoUser(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	svc := NewInsightsService(&fakeArchiveSource{err: errors.New("db down")}, &fakeQuoteSource{})
	svc.now = func() time.Time { return now }

	assert.Empty(t, svc.UpcomingEvents(context.Background(), 7))
	assert.Empty(t, svc.UpcomingEvents(context.Background(), 0))
}

func TestParseEventDate(t *testing.T) {
	now := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

	cases := map[string]*time.Time{
		"03-08":  timePtr(2026, 3, 8),
		"3月8日":   timePtr(2026, 3, 8),
		"3月8":    timePtr(2026, 3, 8),
		// A placeholder year marks a recurring date.
		"2000-03-08": timePtr(2026, 3, 8),
		// Recurring dates already past roll to next year.
		"2000-03-01": timePtr(2027, 3, 1),
		"03-01":      timePtr(2027, 3, 1),
		// A real year is an exact date.
		"2026-10-01": timePtr(2026, 10, 1),
		"garbage":    nil,
		"":           nil,
		"13-45":      nil,
	}
	for input, want := range cases {
		got := parseEventDate(input, now)
		if want == nil {
			assert.Nil(t, got, "input %q", input)
			continue
		}
		require.NotNil(t, got, "input %q", input)
		assert.True(t, want.Equal(*got), "input %q: want %v, got %v", input, want, got)
	}
}

func timePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCalcDaysLeftIgnoresTimeOfDay(t *testing.T) {
	from := time.Date(2026, 3, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, calcDaysLeft(from, time.Date(2026, 3, 5, 0, 30, 0, 0, time.UTC)))
	assert.Equal(t, 1, calcDaysLeft(from, time.Date(2026, 3, 6, 0, 30, 0, 0, time.UTC)))
	assert.Equal(t, -1, calcDaysLeft(from, time.Date(2026, 3, 4, 23, 59, 0, 0, time.UTC)))
}
