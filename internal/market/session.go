// session.go is the forex session clock.
//
// Sessions are fixed UTC windows inside a trading day that runs from the
// New York close at 21:00 UTC to the next one:
//
//	OFF_SESSION  21:00 → 23:00 (the dead zone after the NY close)
//	ASIA         23:00 → 07:00
//	LONDON       07:00 → 12:00
//	NY           12:00 → 21:00
//
// The windows partition the clock, so every instant belongs to exactly one
// session and range queries never have gaps.
package market

import "time"

// Session names one of the daily liquidity windows.
type Session string

const (
	SessionAsia   Session = "ASIA"
	SessionLondon Session = "LONDON"
	SessionNY     Session = "NY"
	SessionOff    Session = "OFF_SESSION"
)

const (
	londonStartMin = 7 * 60  // 07:00 UTC
	nyStartMin     = 12 * 60 // 12:00 UTC
	nyEndMin       = 21 * 60 // 21:00 UTC, also the trading-day boundary
	asiaStartMin   = 23 * 60 // 23:00 UTC
)

// SessionAt classifies an instant into its session.
func SessionAt(t time.Time) Session {
	m := utcMinutes(t)
	switch {
	case m >= londonStartMin && m < nyStartMin:
		return SessionLondon
	case m >= nyStartMin && m < nyEndMin:
		return SessionNY
	case m >= nyEndMin && m < asiaStartMin:
		return SessionOff
	default:
		return SessionAsia
	}
}

// SessionRange returns the session containing t with its concrete bounds.
func SessionRange(t time.Time) (Session, time.Time, time.Time) {
	u := t.UTC()
	day := midnight(u)
	m := utcMinutes(u)

	switch {
	case m >= londonStartMin && m < nyStartMin:
		return SessionLondon, day.Add(time.Duration(londonStartMin) * time.Minute), day.Add(time.Duration(nyStartMin) * time.Minute)
	case m >= nyStartMin && m < nyEndMin:
		return SessionNY, day.Add(time.Duration(nyStartMin) * time.Minute), day.Add(time.Duration(nyEndMin) * time.Minute)
	case m >= nyEndMin && m < asiaStartMin:
		return SessionOff, day.Add(time.Duration(nyEndMin) * time.Minute), day.Add(time.Duration(asiaStartMin) * time.Minute)
	case m >= asiaStartMin:
		// Asia window that opened today at 23:00.
		return SessionAsia, day.Add(time.Duration(asiaStartMin) * time.Minute), day.Add(24*time.Hour + time.Duration(londonStartMin)*time.Minute)
	default:
		// Asia window that opened yesterday.
		return SessionAsia, day.Add(-24*time.Hour + time.Duration(asiaStartMin)*time.Minute), day.Add(time.Duration(londonStartMin) * time.Minute)
	}
}

// PreviousSessionRange returns the session immediately before the one
// containing t. Liquidity bootstrapping marks the prior session's extremes.
func PreviousSessionRange(t time.Time) (Session, time.Time, time.Time) {
	_, start, _ := SessionRange(t)
	return SessionRange(start.Add(-time.Minute))
}

// TradingDay returns the calendar date (midnight UTC) of the trading day
// containing t. A trading day starts at the NY close, so 21:30 UTC Monday
// already belongs to Tuesday.
func TradingDay(t time.Time) time.Time {
	return midnight(t.UTC().Add(3 * time.Hour))
}

func utcMinutes(t time.Time) int {
	u := t.UTC()
	return u.Hour()*60 + u.Minute()
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
