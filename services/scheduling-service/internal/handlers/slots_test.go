package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/availability"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

type memStaffStore struct {
	staff    map[string]model.Staff
	bookable []model.Staff
}

func (s memStaffStore) Get(_ context.Context, companyID, staffID string) (model.Staff, error) {
	st, ok := s.staff[staffID]
	if !ok || st.CompanyID != companyID {
		return model.Staff{}, pgx.ErrNoRows
	}
	return st, nil
}

func (s memStaffStore) ListBookable(context.Context, string) ([]model.Staff, error) {
	return s.bookable, nil
}

type memHoursStore struct {
	weekly     *model.WeeklyHours
	override   *model.DateOverride
	staffHours map[string]model.StaffHours
	timeOff    map[string][]availability.Interval
}

func (s memHoursStore) GetWeeklyHours(context.Context, string, int) (*model.WeeklyHours, error) {
	return s.weekly, nil
}

func (s memHoursStore) GetDateOverride(context.Context, string, time.Time) (*model.DateOverride, error) {
	return s.override, nil
}

func (s memHoursStore) StaffHoursForWeekday(context.Context, string, int) (map[string]model.StaffHours, error) {
	return s.staffHours, nil
}

func (s memHoursStore) TimeOffIntervalsForDay(context.Context, string, time.Time) (map[string][]availability.Interval, error) {
	return s.timeOff, nil
}

type memBusyReader struct {
	busy map[string][]availability.Interval
}

func (s memBusyReader) BusyIntervals(context.Context, string, time.Time) (map[string][]availability.Interval, error) {
	return s.busy, nil
}

func slotsRequestFor(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/slots", strings.NewReader(body))
	req.Header.Set("X-Company-Id", "co-1")
	return req
}

func testWeekly() *model.WeeklyHours {
	return &model.WeeklyHours{CompanyID: "co-1", Weekday: 6, OpenMinute: 540, CloseMinute: 720}
}

func TestComputeUnknownStaffNotFound(t *testing.T) {
	h := NewSlotsHandler(
		memCatalog{testCatalog()},
		memStaffStore{staff: map[string]model.Staff{}},
		memHoursStore{weekly: testWeekly()},
		memBusyReader{},
		discardLogger(),
		60,
	)

	rec := httptest.NewRecorder()
	h.Compute(rec, slotsRequestFor(`{"date":"2026-03-14","selections":[{"service_id":"svc-1"}],"staff_id":"ghost"}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestComputeClosedDayAnswersEmptySlots(t *testing.T) {
	h := NewSlotsHandler(
		memCatalog{testCatalog()},
		memStaffStore{},
		memHoursStore{},
		memBusyReader{},
		discardLogger(),
		60,
	)

	rec := httptest.NewRecorder()
	h.Compute(rec, slotsRequestFor(`{"date":"2026-03-14","selections":[{"service_id":"svc-1"}]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Fatalf("closed day must have no slots, got %v", resp.Slots)
	}
}

func TestComputeSkipsBookedIntervals(t *testing.T) {
	staff := model.Staff{ID: "st-1", CompanyID: "co-1", AvailableForBooking: true}
	h := NewSlotsHandler(
		memCatalog{testCatalog()},
		memStaffStore{staff: map[string]model.Staff{"st-1": staff}, bookable: []model.Staff{staff}},
		memHoursStore{weekly: testWeekly()},
		memBusyReader{busy: map[string][]availability.Interval{
			"st-1": {{Start: 540, End: 600}},
		}},
		discardLogger(),
		60,
	)

	rec := httptest.NewRecorder()
	h.Compute(rec, slotsRequestFor(`{"date":"2026-03-14","selections":[{"service_id":"svc-1"}]}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp slotsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	want := []string{"10:00", "11:00"}
	if len(resp.Slots) != len(want) {
		t.Fatalf("got slots %v, want %v", resp.Slots, want)
	}
	for i := range want {
		if resp.Slots[i] != want[i] {
			t.Fatalf("got slots %v, want %v", resp.Slots, want)
		}
	}
}
