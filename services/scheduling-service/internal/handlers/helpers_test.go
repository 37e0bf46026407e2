package handlers

import (
	"testing"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/availability"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

func TestStaffDayBusy_NotWorkingBlocksWholeWindow(t *testing.T) {
	win := availability.Window{Open: 540, Close: 1020}
	hours := map[string]model.StaffHours{
		"s1": {StaffID: "s1", IsWorking: false},
	}
	busy := staffDayBusy(win, hours, []string{"s1", "s2"})

	if got := busy["s1"]; len(got) != 1 || got[0].Start != 540 || got[0].End != 1020 {
		t.Fatalf("expected s1 blocked for the whole window, got %+v", got)
	}
	if _, ok := busy["s2"]; ok {
		t.Fatal("s2 has no hours row and must follow company hours")
	}
}

func TestStaffDayBusy_NarrowerHoursBlockMargins(t *testing.T) {
	win := availability.Window{Open: 540, Close: 1020}
	hours := map[string]model.StaffHours{
		"s1": {StaffID: "s1", IsWorking: true, StartMinute: 600, EndMinute: 900},
	}
	busy := staffDayBusy(win, hours, []string{"s1"})

	got := busy["s1"]
	if len(got) != 2 {
		t.Fatalf("expected 2 margin intervals, got %+v", got)
	}
	if got[0].Start != 540 || got[0].End != 600 {
		t.Fatalf("unexpected morning margin: %+v", got[0])
	}
	if got[1].Start != 900 || got[1].End != 1020 {
		t.Fatalf("unexpected evening margin: %+v", got[1])
	}
}

func TestStaffDayBusy_HoursCoveringWindowBlockNothing(t *testing.T) {
	win := availability.Window{Open: 540, Close: 1020}
	hours := map[string]model.StaffHours{
		"s1": {StaffID: "s1", IsWorking: true, StartMinute: 480, EndMinute: 1080},
	}
	busy := staffDayBusy(win, hours, []string{"s1"})
	if len(busy["s1"]) != 0 {
		t.Fatalf("expected no busy intervals, got %+v", busy["s1"])
	}
}

func TestMergeBusy_UnionsPerStaff(t *testing.T) {
	a := map[string][]availability.Interval{
		"s1": {{Start: 540, End: 600}},
	}
	b := map[string][]availability.Interval{
		"s1": {{Start: 720, End: 780}},
		"s2": {{Start: 540, End: 570}},
	}
	merged := mergeBusy(a, b)
	if len(merged["s1"]) != 2 {
		t.Fatalf("expected 2 intervals for s1, got %+v", merged["s1"])
	}
	if len(merged["s2"]) != 1 {
		t.Fatalf("expected 1 interval for s2, got %+v", merged["s2"])
	}
}

func TestToSelections_RejectsBlankIDs(t *testing.T) {
	if _, ok := toSelections([]selectionRequest{{ServiceID: "  "}}); ok {
		t.Fatal("blank service id must be rejected")
	}
	if _, ok := toSelections([]selectionRequest{
		{ServiceID: "svc-1", Addons: []addonCountRequest{{AddonID: ""}}},
	}); ok {
		t.Fatal("blank addon id must be rejected")
	}
}

func TestToSelections_PreservesOrderAndCounts(t *testing.T) {
	sels, ok := toSelections([]selectionRequest{
		{ServiceID: "svc-2", Addons: []addonCountRequest{{AddonID: "add-1", Count: 3}}},
		{ServiceID: "svc-1"},
	})
	if !ok {
		t.Fatal("valid selections rejected")
	}
	if sels[0].ServiceID != "svc-2" || sels[1].ServiceID != "svc-1" {
		t.Fatalf("selection order not preserved: %+v", sels)
	}
	if sels[0].Addons[0].Count != 3 {
		t.Fatalf("addon count lost: %+v", sels[0].Addons)
	}
}

func TestServiceIDs_Dedupes(t *testing.T) {
	sels, _ := toSelections([]selectionRequest{
		{ServiceID: "svc-1"},
		{ServiceID: "svc-2"},
		{ServiceID: "svc-1"},
	})
	ids := serviceIDs(sels)
	if len(ids) != 2 || ids[0] != "svc-1" || ids[1] != "svc-2" {
		t.Fatalf("unexpected ids: %v", ids)
	}
}

func TestParseDay(t *testing.T) {
	day, ok := parseDay("2026-03-14")
	if !ok {
		t.Fatal("valid date rejected")
	}
	if day.Format("2006-01-02") != "2026-03-14" {
		t.Fatalf("round trip mismatch: %v", day)
	}
	if _, ok := parseDay("14/03/2026"); ok {
		t.Fatal("expected rejection of non ISO date")
	}
	if _, ok := parseDay(""); ok {
		t.Fatal("expected rejection of empty date")
	}
}
