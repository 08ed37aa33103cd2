package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/giftmind/giftmind-backend/internal/models"
)

const (
	defaultRemindWindow   = 7
	reminderLookaheadDays = 7
	dailyQuoteCacheTTL    = 15 * time.Minute
)

const (
	BoardTypeReminder   = "reminder"
	BoardTypeDailyQuote = "dailyQuote"
)

// BoardCard is the home-board payload: a reminder for the nearest upcoming
// event when one is close enough, otherwise the quote of the day.
type BoardCard struct {
	Type    string                 `json:"type"`
	Message string                 `json:"message"`
	Context interface{}            `json:"context,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// ReminderContext carries the event behind a reminder card.
type ReminderContext struct {
	EventID          int64   `json:"eventId"`
	TargetName       string  `json:"targetName"`
	EventName        string  `json:"eventName"`
	EventDate        string  `json:"eventDate"`
	EventType        string  `json:"eventType,omitempty"`
	DaysLeft         int     `json:"daysLeft"`
	Note             *string `json:"note"`
	RemindBeforeDays int     `json:"remindBeforeDays"`
	InReminderWindow bool    `json:"inReminderWindow"`
}

// QuoteContext identifies the copy behind a daily-quote card.
type QuoteContext struct {
	CopyID string   `json:"copyId,omitempty"`
	Source string   `json:"source,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// UpcomingEvent is one entry of the reminder-lookahead list.
type UpcomingEvent struct {
	ID               int64  `json:"id"`
	TargetName       string `json:"targetName"`
	EventName        string `json:"eventName"`
	EventDate        string `json:"eventDate"`
	DaysLeft         int    `json:"daysLeft"`
	RemindBeforeDays int    `json:"remindBeforeDays"`
	InReminderWindow bool   `json:"inReminderWindow"`
}

// InsightCopy is one quote from the copy pool.
type InsightCopy struct {
	ID     string
	Text   string
	Source string
	Tags   []string
}

var fallbackQuotes = []InsightCopy{
	{ID: "fallback-1", Text: "最好的礼物，是那些用心挑选、饱含心意的瞬间。", Source: "fallback"},
	{ID: "fallback-2", Text: "记住每一个重要的日子，是心意抵达的第一步。", Source: "fallback"},
	{ID: "fallback-3", Text: "把生活中的温柔时刻，打包成一份专属礼物。", Source: "fallback"},
}

// ArchiveEventSource lists the archives the board derives events from.
type ArchiveEventSource interface {
	AllForUser(ctx context.Context, userID int64) ([]models.Archive, error)
}

// QuoteSource picks one active quote at random, (nil, nil) when the pool is
// empty.
type QuoteSource interface {
	RandomActive(ctx context.Context) (*InsightCopy, error)
}

// InsightCopyStore reads the insight_copies table.
type InsightCopyStore struct {
	db *sql.DB
}

func NewInsightCopyStore(db *sql.DB) *InsightCopyStore {
	return &InsightCopyStore{db: db}
}

func (s *InsightCopyStore) RandomActive(ctx context.Context) (*InsightCopy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, text, source, tags FROM insight_copies WHERE is_active ORDER BY random() LIMIT 1`)

	var id int64
	var c InsightCopy
	var tags pq.StringArray
	err := row.Scan(&id, &c.Text, &c.Source, &tags)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.ID = strconv.FormatInt(id, 10)
	c.Tags = []string(tags)
	return &c, nil
}

// InsightsService builds the home-board card and the upcoming-event list
// from the user's archives.
type InsightsService struct {
	archives ArchiveEventSource
	quotes   QuoteSource
	now      func() time.Time

	mu           sync.Mutex
	cachedQuote  *BoardCard
	quoteExpires time.Time
}

func NewInsightsService(archives ArchiveEventSource, quotes QuoteSource) *InsightsService {
	return &InsightsService{archives: archives, quotes: quotes, now: time.Now}
}

// boardEvent is a resolved archive event inside the lookahead.
type boardEvent struct {
	ID               int64
	TargetName       string
	EventName        string
	EventDate        time.Time
	RemindBeforeDays int
}

// Board returns the reminder card for the nearest event in its remind
// window, or the daily quote when nothing qualifies.
func (s *InsightsService) Board(ctx context.Context, userID int64) *BoardCard {
	if card := s.reminderCard(ctx, userID); card != nil {
		return card
	}
	return s.dailyQuoteCard(ctx)
}

// UpcomingEvents lists the events inside the reminder lookahead, soonest
// first. Errors degrade to an empty list.
func (s *InsightsService) UpcomingEvents(ctx context.Context, userID int64) []UpcomingEvent {
	if userID == 0 {
		return []UpcomingEvent{}
	}
	now := s.now()
	events, err := s.upcomingEvents(ctx, userID, now, 20)
	if err != nil {
		log.Printf("insights: failed to list upcoming events for user %d: %v", userID, err)
		return []UpcomingEvent{}
	}

	out := make([]UpcomingEvent, 0, len(events))
	for _, e := range events {
		daysLeft := calcDaysLeft(now, e.EventDate)
		out = append(out, UpcomingEvent{
			ID:               e.ID,
			TargetName:       e.TargetName,
			EventName:        e.EventName,
			EventDate:        e.EventDate.Format(time.RFC3339),
			DaysLeft:         daysLeft,
			RemindBeforeDays: e.RemindBeforeDays,
			InReminderWindow: daysLeft >= 0 && daysLeft <= e.RemindBeforeDays,
		})
	}
	return out
}

func (s *InsightsService) reminderCard(ctx context.Context, userID int64) *BoardCard {
	if userID == 0 {
		return nil
	}
	now := s.now()
	events, err := s.upcomingEvents(ctx, userID, now, 10)
	if err != nil {
		log.Printf("insights: failed to read reminders for user %d, falling back to daily quote: %v", userID, err)
		return nil
	}

	target := pickNearestEvent(events, now)
	if target == nil {
		return nil
	}
	daysLeft := calcDaysLeft(now, target.EventDate)
	return &BoardCard{
		Type:    BoardTypeReminder,
		Message: composeReminderMessage(target.TargetName, target.EventName, daysLeft),
		Context: ReminderContext{
			EventID:          target.ID,
			TargetName:       target.TargetName,
			EventName:        target.EventName,
			EventDate:        target.EventDate.Format(time.RFC3339),
			EventType:        "archive",
			DaysLeft:         daysLeft,
			RemindBeforeDays: target.RemindBeforeDays,
			InReminderWindow: daysLeft >= 0 && daysLeft <= target.RemindBeforeDays,
		},
		Meta: map[string]interface{}{"source": "archives"},
	}
}

// upcomingEvents resolves each archive event date against the current year
// and keeps those falling inside the lookahead, soonest first. Event ids are
// derived from the archive row and the event's position, so they stay stable
// between calls.
func (s *InsightsService) upcomingEvents(ctx context.Context, userID int64, now time.Time, take int) ([]boardEvent, error) {
	archives, err := s.archives.AllForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := startOfDay(now)
	end := startOfDay(now.Add(reminderLookaheadDays * 24 * time.Hour))

	var events []boardEvent
	for _, a := range archives {
		for i, ev := range a.Events {
			date := parseEventDate(ev.Date, now)
			if date == nil {
				continue
			}
			day := startOfDay(*date)
			if day.Before(today) || day.After(end) {
				continue
			}
			name := strings.TrimSpace(ev.Name)
			if name == "" {
				name = "特别日子"
			}
			events = append(events, boardEvent{
				ID:               a.ID*100 + int64(i+1),
				TargetName:       a.Name,
				EventName:        name,
				EventDate:        *date,
				RemindBeforeDays: defaultRemindWindow,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventDate.Before(events[j].EventDate)
	})
	if len(events) > take {
		events = events[:take]
	}
	return events, nil
}

func pickNearestEvent(events []boardEvent, now time.Time) *boardEvent {
	var candidate *boardEvent
	minDays := int(^uint(0) >> 1)
	for i := range events {
		daysLeft := calcDaysLeft(now, events[i].EventDate)
		if daysLeft < 0 || daysLeft > events[i].RemindBeforeDays {
			continue
		}
		if daysLeft < minDays {
			minDays = daysLeft
			candidate = &events[i]
		}
	}
	return candidate
}

var ymdPattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)

// parseEventDate resolves an archive event date to a concrete day. Dates
// stored without a year (MM-DD, X月X日, or YYYY-MM-DD with a placeholder year
// up to 2001) recur annually and roll to next year once passed.
func parseEventDate(raw string, now time.Time) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if m := ymdPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if year <= 2001 {
			return buildRecurringDate(month, day, now)
		}
		exact := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
		return &exact
	}
	if m := monthDayPattern.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		return buildRecurringDate(month, day, now)
	}
	if m := chineseDatePattern.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		return buildRecurringDate(month, day, now)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.In(now.Location())
		return &t
	}
	return nil
}

func buildRecurringDate(month, day int, now time.Time) *time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	candidate := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
	if candidate.Before(startOfDay(now)) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	return &candidate
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// calcDaysLeft counts whole calendar days between the two dates, time of day
// ignored.
func calcDaysLeft(from, to time.Time) int {
	return int(startOfDay(to).Sub(startOfDay(from)) / (24 * time.Hour))
}

func composeReminderMessage(targetName, eventName string, daysLeft int) string {
	prefix := fmt.Sprintf("还有%d天就是", daysLeft)
	if daysLeft <= 0 {
		prefix = "今天就是"
	}
	return fmt.Sprintf("%s%s的%s，需要我帮你准备礼物吗？", prefix, targetName, eventName)
}

// dailyQuoteCard serves the quote of the day with a short in-process cache,
// so the copy pool is not hit on every board load.
func (s *InsightsService) dailyQuoteCard(ctx context.Context) *BoardCard {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cachedQuote != nil && s.quoteExpires.After(now) {
		return s.cachedQuote
	}

	quote := s.randomQuote(ctx)
	source := quote.Source
	if source == "" {
		source = "fallback"
	}
	card := &BoardCard{
		Type:    BoardTypeDailyQuote,
		Message: quote.Text,
		Context: QuoteContext{CopyID: quote.ID, Source: quote.Source, Tags: quote.Tags},
		Meta:    map[string]interface{}{"source": source},
	}
	s.cachedQuote = card
	s.quoteExpires = now.Add(dailyQuoteCacheTTL)
	return card
}

func (s *InsightsService) randomQuote(ctx context.Context) InsightCopy {
	if s.quotes != nil {
		quote, err := s.quotes.RandomActive(ctx)
		if err != nil {
			log.Printf("insights: failed to read quote pool, using local fallback: %v", err)
		} else if quote != nil {
			return *quote
		}
	}
	return fallbackQuotes[rand.Intn(len(fallbackQuotes))]
}
