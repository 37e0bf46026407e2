package availability

import "github.com/glosspoint/scheduling/services/scheduling-service/internal/model"

// Window is the contiguous open interval during which bookings may start on
// a given date. The break, when present, is carved out by the slot
// generator, not here.
type Window struct {
	Open       int
	Close      int
	BreakStart *int
	BreakEnd   *int
}

// ResolveWindow combines the weekly row for the date's weekday with an
// optional date-specific override. The override replaces open/close only;
// break times always come from the weekly row. A date with neither a weekly
// row nor an override is closed.
func ResolveWindow(weekly *model.WeeklyHours, override *model.DateOverride) (Window, bool) {
	var win Window
	switch {
	case weekly != nil:
		win = Window{
			Open:       weekly.OpenMinute,
			Close:      weekly.CloseMinute,
			BreakStart: weekly.BreakStartMinute,
			BreakEnd:   weekly.BreakEndMinute,
		}
		if override != nil {
			win.Open = override.OpenMinute
			win.Close = override.CloseMinute
		}
	case override != nil:
		win = Window{Open: override.OpenMinute, Close: override.CloseMinute}
	default:
		return Window{}, false
	}

	if win.Close <= win.Open {
		return Window{}, false
	}
	return win, true
}
