package market

import (
	"testing"
	"time"
)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 2, hour, min, 0, 0, time.UTC) // a Monday
}

func TestSessionAt(t *testing.T) {
	t.Parallel()
	cases := []struct {
		t    time.Time
		want Session
	}{
		{at(2, 0), SessionAsia},
		{at(6, 59), SessionAsia},
		{at(7, 0), SessionLondon},
		{at(11, 59), SessionLondon},
		{at(12, 0), SessionNY},
		{at(20, 59), SessionNY},
		{at(21, 0), SessionOff},
		{at(22, 0), SessionOff},
		{at(22, 59), SessionOff},
		{at(23, 0), SessionAsia},
		{at(23, 30), SessionAsia},
	}
	for _, tc := range cases {
		if got := SessionAt(tc.t); got != tc.want {
			t.Errorf("SessionAt(%s) = %s, want %s", tc.t.Format("15:04"), got, tc.want)
		}
	}
}

func TestSessionRangeCoversClock(t *testing.T) {
	t.Parallel()
	// Every minute of the day must fall inside its reported range.
	for m := 0; m < 24*60; m += 17 {
		now := at(m/60, m%60)
		sess, start, end := SessionRange(now)
		if now.Before(start) || !now.Before(end) {
			t.Errorf("%s: session %s range [%v, %v) does not contain instant",
				now.Format("15:04"), sess, start, end)
		}
	}
}

func TestSessionRangeAsiaWrapsMidnight(t *testing.T) {
	t.Parallel()
	_, start, end := SessionRange(at(2, 0))
	if start.Day() != 1 || start.Hour() != 23 {
		t.Errorf("asia start = %v, want previous day 23:00", start)
	}
	if end.Day() != 2 || end.Hour() != 7 {
		t.Errorf("asia end = %v, want same day 07:00", end)
	}
}

func TestPreviousSessionRange(t *testing.T) {
	t.Parallel()
	// During NY, the previous session is London.
	sess, start, end := PreviousSessionRange(at(14, 0))
	if sess != SessionLondon {
		t.Fatalf("previous session = %s, want LONDON", sess)
	}
	if start.Hour() != 7 || end.Hour() != 12 {
		t.Errorf("london range = [%v, %v)", start, end)
	}

	// During London, the previous session is the overnight Asia window.
	sess, _, _ = PreviousSessionRange(at(9, 0))
	if sess != SessionAsia {
		t.Errorf("previous session = %s, want ASIA", sess)
	}

	// The dead zone after the NY close sits between NY and Asia.
	sess, _, _ = PreviousSessionRange(at(22, 0))
	if sess != SessionNY {
		t.Errorf("previous session = %s, want NY", sess)
	}
	sess, start, end = PreviousSessionRange(at(23, 30))
	if sess != SessionOff {
		t.Errorf("previous session = %s, want OFF_SESSION", sess)
	}
	if start.Hour() != 21 || end.Hour() != 23 {
		t.Errorf("off range = [%v, %v), want [21:00, 23:00)", start, end)
	}
}

func TestTradingDayRollsAtNYClose(t *testing.T) {
	t.Parallel()
	before := TradingDay(at(20, 59))
	after := TradingDay(at(21, 0))

	if before.Day() != 2 {
		t.Errorf("trading day before close = %v, want day 2", before)
	}
	if after.Day() != 3 {
		t.Errorf("trading day after close = %v, want day 3", after)
	}
}
