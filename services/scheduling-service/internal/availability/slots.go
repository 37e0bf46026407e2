package availability

// Interval is a half-open [Start, End) range in minutes from midnight.
type Interval struct {
	Start int
	End   int
}

// DefaultStepMinutes is the slot granularity used when a company has not
// configured its own.
const DefaultStepMinutes = 15

// Slots returns candidate start minutes within the window where a booking of
// durationMins would end by closing time. Candidates intersecting the
// window's break are excluded; the generator never splits a booking around
// a break.
func Slots(win Window, durationMins, stepMins int) []int {
	if durationMins <= 0 {
		return nil
	}
	if stepMins <= 0 {
		stepMins = DefaultStepMinutes
	}

	var slots []int
	for start := win.Open; start+durationMins <= win.Close; start += stepMins {
		if win.BreakStart != nil && win.BreakEnd != nil &&
			Overlaps(start, start+durationMins, *win.BreakStart, *win.BreakEnd) {
			continue
		}
		slots = append(slots, start)
	}
	return slots
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints (one ending exactly when the other starts) do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// OverlapsAny reports whether [start, end) intersects any busy interval.
func OverlapsAny(start, end int, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// FirstAvailable scans the staff ids in the given order and returns the
// first one whose busy intervals leave [start, end) free. First-fit by list
// order, no load balancing.
func FirstAvailable(staffIDs []string, busy map[string][]Interval, start, end int) (string, bool) {
	for _, id := range staffIDs {
		if !OverlapsAny(start, end, busy[id]) {
			return id, true
		}
	}
	return "", false
}
