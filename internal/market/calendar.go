package market

import (
	"fmt"
	"time"
)

// Session describes a market's trading-session close schedule.
type Session struct {
	Timezone    string   `mapstructure:"timezone"`
	CloseHour   int      `mapstructure:"close_hour"`
	CloseMinute int      `mapstructure:"close_minute"`
	Holidays    []string `mapstructure:"holidays"` // YYYY-MM-DD, market-local
}

// Calendar answers trading-day and close-instant questions for a market.
type Calendar interface {
	IsTradingDay(m Market, date time.Time) bool
	CloseInstant(m Market, date time.Time) (time.Time, error)
}

// SessionCalendar is a Calendar backed by a static session table.
// Weekends are always non-trading; additional holidays come from config.
type SessionCalendar struct {
	sessions map[Market]Session
	holidays map[Market]map[string]struct{}
}

// DefaultSessions mirrors the close schedule of the covered exchanges.
func DefaultSessions() map[Market]Session {
	return map[Market]Session{
		US: {Timezone: "America/New_York", CloseHour: 16, CloseMinute: 0},
		IN: {Timezone: "Asia/Kolkata", CloseHour: 15, CloseMinute: 30},
	}
}

// NewSessionCalendar builds a calendar from a session table.
func NewSessionCalendar(sessions map[Market]Session) *SessionCalendar {
	holidays := make(map[Market]map[string]struct{}, len(sessions))
	for m, s := range sessions {
		set := make(map[string]struct{}, len(s.Holidays))
		for _, d := range s.Holidays {
			set[d] = struct{}{}
		}
		holidays[m] = set
	}
	return &SessionCalendar{sessions: sessions, holidays: holidays}
}

// IsTradingDay reports whether date (interpreted in the market's timezone)
// is a regular trading day.
func (c *SessionCalendar) IsTradingDay(m Market, date time.Time) bool {
	session, ok := c.sessions[m]
	if !ok {
		return false
	}
	loc, err := time.LoadLocation(session.Timezone)
	if err != nil {
		return false
	}
	local := date.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[m][local.Format("2006-01-02")]
	return !holiday
}

// CloseInstant returns the session close for the market on the given date.
func (c *SessionCalendar) CloseInstant(m Market, date time.Time) (time.Time, error) {
	session, ok := c.sessions[m]
	if !ok {
		return time.Time{}, fmt.Errorf("no session defined for market %s", m)
	}
	loc, err := time.LoadLocation(session.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load timezone %s: %w", session.Timezone, err)
	}
	local := date.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), session.CloseHour, session.CloseMinute, 0, 0, loc), nil
}

// TradingDaysBetween counts trading days strictly after from up to and
// including to. It is the elapsed-offset measure used by tracking.
// Cursors are pinned to UTC midday so converting them into the market
// timezone cannot shift the calendar day.
func TradingDaysBetween(c Calendar, m Market, from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	days := 0
	cursor := midday(from).AddDate(0, 0, 1)
	end := midday(to)
	for !cursor.After(end) {
		if c.IsTradingDay(m, cursor) {
			days++
		}
		cursor = cursor.AddDate(0, 0, 1)
	}
	return days
}

func midday(t time.Time) time.Time {
	y, mo, d := t.UTC().Date()
	return time.Date(y, mo, d, 12, 0, 0, 0, time.UTC)
}

var _ Calendar = (*SessionCalendar)(nil)
