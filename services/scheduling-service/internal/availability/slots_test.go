package availability

import "testing"

func window(open, close int) Window {
	return Window{Open: open, Close: close}
}

func TestSlots_FullOpenDay(t *testing.T) {
	// Mon 09:00-17:00, 30 min service, 15 min step.
	slots := Slots(window(9*60, 17*60), 30, 15)
	if len(slots) != 31 {
		t.Fatalf("expected 31 slots, got %d", len(slots))
	}
	if slots[0] != 9*60 {
		t.Fatalf("expected first slot 09:00, got %s", FormatClock(slots[0]))
	}
	// Last slot ends exactly at closing time.
	if last := slots[len(slots)-1]; last != 16*60+30 {
		t.Fatalf("expected last slot 16:30, got %s", FormatClock(last))
	}
	for i := 1; i < len(slots); i++ {
		if slots[i] <= slots[i-1] {
			t.Fatalf("slots not strictly ascending at index %d", i)
		}
	}
}

func TestSlots_EveryCandidateFitsWindow(t *testing.T) {
	win := window(8*60+45, 18*60+10)
	duration := 50
	for _, s := range Slots(win, duration, 15) {
		if s < win.Open {
			t.Fatalf("slot %s starts before open", FormatClock(s))
		}
		if s+duration > win.Close {
			t.Fatalf("slot %s overruns close", FormatClock(s))
		}
	}
}

func TestSlots_BreakExcluded(t *testing.T) {
	breakFrom := 12 * 60
	breakTo := 13 * 60
	win := Window{Open: 9 * 60, Close: 17 * 60, BreakStart: &breakFrom, BreakEnd: &breakTo}

	duration := 30
	for _, s := range Slots(win, duration, 15) {
		if Overlaps(s, s+duration, breakFrom, breakTo) {
			t.Fatalf("slot %s intersects break", FormatClock(s))
		}
	}

	// 11:30 ends exactly at break start and must survive; 11:45 must not.
	slots := Slots(win, duration, 15)
	seen := map[int]bool{}
	for _, s := range slots {
		seen[s] = true
	}
	if !seen[11*60+30] {
		t.Fatal("expected 11:30 slot (ends at break start)")
	}
	if seen[11*60+45] {
		t.Fatal("11:45 slot partially overlaps the break")
	}
	if !seen[13*60] {
		t.Fatal("expected 13:00 slot (break end)")
	}
}

func TestSlots_DurationLongerThanWindow(t *testing.T) {
	if got := Slots(window(9*60, 10*60), 90, 15); got != nil {
		t.Fatalf("expected no slots, got %v", got)
	}
}

func TestSlots_NonPositiveDuration(t *testing.T) {
	if got := Slots(window(9*60, 17*60), 0, 15); got != nil {
		t.Fatalf("expected no slots for zero duration, got %v", got)
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	// [9:00,10:00) vs [10:00,11:00): touching endpoints do not conflict.
	if Overlaps(9*60, 10*60, 10*60, 11*60) {
		t.Fatal("touching intervals must not overlap")
	}
	// [9:00,10:00) vs [9:59,10:30): one shared minute conflicts.
	if !Overlaps(9*60, 10*60, 9*60+59, 10*60+30) {
		t.Fatal("expected overlap")
	}
	// Symmetry.
	if Overlaps(10*60, 11*60, 9*60, 10*60) {
		t.Fatal("overlap must be symmetric for touching intervals")
	}
	if !Overlaps(9*60+59, 10*60+30, 9*60, 10*60) {
		t.Fatal("overlap must be symmetric")
	}
}

func TestSlots_AroundExistingBooking(t *testing.T) {
	// Open 09:00-17:00, 30 min service; staff busy [10:00,10:30).
	busy := []Interval{{Start: 10 * 60, End: 10*60 + 30}}
	var free []int
	for _, s := range Slots(window(9*60, 17*60), 30, 15) {
		if !OverlapsAny(s, s+30, busy) {
			free = append(free, s)
		}
	}

	var lastBefore, firstAfter int
	firstAfter = -1
	for _, s := range free {
		if s < 10*60 {
			lastBefore = s
		} else if firstAfter == -1 {
			firstAfter = s
		}
	}
	// 09:30 ends at 10:00 (no overlap), 09:45 would end 10:15 (overlap).
	if lastBefore != 9*60+30 {
		t.Fatalf("expected last free slot before booking 09:30, got %s", FormatClock(lastBefore))
	}
	if firstAfter != 10*60+30 {
		t.Fatalf("expected first free slot after booking 10:30, got %s", FormatClock(firstAfter))
	}
}

func TestFirstAvailable_FirstFit(t *testing.T) {
	busy := map[string][]Interval{
		"staff-a": {{Start: 10 * 60, End: 11 * 60}},
		"staff-b": {},
	}

	// Both free: list order wins.
	id, ok := FirstAvailable([]string{"staff-a", "staff-b"}, busy, 9*60, 9*60+30)
	if !ok || id != "staff-a" {
		t.Fatalf("expected staff-a, got %q (ok=%v)", id, ok)
	}

	// staff-a busy at 10:00: falls through to staff-b.
	id, ok = FirstAvailable([]string{"staff-a", "staff-b"}, busy, 10*60, 10*60+30)
	if !ok || id != "staff-b" {
		t.Fatalf("expected staff-b, got %q (ok=%v)", id, ok)
	}

	// A conflict on one staff member never affects another.
	if OverlapsAny(10*60, 10*60+30, busy["staff-b"]) {
		t.Fatal("staff-b must be unaffected by staff-a's booking")
	}
}

func TestFirstAvailable_EmptyPool(t *testing.T) {
	if _, ok := FirstAvailable(nil, nil, 9*60, 10*60); ok {
		t.Fatal("empty staff pool must yield no assignment")
	}
}
