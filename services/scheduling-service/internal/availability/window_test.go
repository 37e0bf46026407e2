package availability

import (
	"testing"
	"time"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

func TestResolveWindow_WeeklyOnly(t *testing.T) {
	weekly := &model.WeeklyHours{Weekday: 1, OpenMinute: 9 * 60, CloseMinute: 17 * 60}
	win, open := ResolveWindow(weekly, nil)
	if !open {
		t.Fatal("expected open day")
	}
	if win.Open != 9*60 || win.Close != 17*60 {
		t.Fatalf("unexpected window %s-%s", FormatClock(win.Open), FormatClock(win.Close))
	}
	if win.BreakStart != nil || win.BreakEnd != nil {
		t.Fatal("no break configured")
	}
}

func TestResolveWindow_OverrideReplacesOpenClose(t *testing.T) {
	bs, be := 12*60, 12*60+30
	weekly := &model.WeeklyHours{
		Weekday:          1,
		OpenMinute:       9 * 60,
		CloseMinute:      17 * 60,
		BreakStartMinute: &bs,
		BreakEndMinute:   &be,
	}
	override := &model.DateOverride{
		Day:         time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC),
		OpenMinute:  10 * 60,
		CloseMinute: 14 * 60,
	}

	win, open := ResolveWindow(weekly, override)
	if !open {
		t.Fatal("expected open day")
	}
	if win.Open != 10*60 || win.Close != 14*60 {
		t.Fatalf("override not applied: %s-%s", FormatClock(win.Open), FormatClock(win.Close))
	}
	// Break survives from the weekly row.
	if win.BreakStart == nil || *win.BreakStart != bs {
		t.Fatal("break start must come from the weekly row")
	}
}

func TestResolveWindow_OverrideWithoutWeeklyRow(t *testing.T) {
	override := &model.DateOverride{OpenMinute: 10 * 60, CloseMinute: 16 * 60}
	win, open := ResolveWindow(nil, override)
	if !open {
		t.Fatal("override alone opens the day")
	}
	if win.BreakStart != nil {
		t.Fatal("no weekly row means no break")
	}
	if win.Open != 10*60 || win.Close != 16*60 {
		t.Fatalf("unexpected window %s-%s", FormatClock(win.Open), FormatClock(win.Close))
	}
}

func TestResolveWindow_ClosedDay(t *testing.T) {
	if _, open := ResolveWindow(nil, nil); open {
		t.Fatal("no weekly row and no override means closed")
	}
}

func TestResolveWindow_DegenerateWindow(t *testing.T) {
	weekly := &model.WeeklyHours{OpenMinute: 17 * 60, CloseMinute: 9 * 60}
	if _, open := ResolveWindow(weekly, nil); open {
		t.Fatal("close before open must resolve as closed")
	}
}

func TestParseClock(t *testing.T) {
	m, err := ParseClock("09:30")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if m != 9*60+30 {
		t.Fatalf("expected 570, got %d", m)
	}
	if FormatClock(m) != "09:30" {
		t.Fatalf("round-trip failed: %s", FormatClock(m))
	}
	for _, bad := range []string{"9", "24:00", "09:60", "ab:cd", ""} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
