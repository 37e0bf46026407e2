package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/availability"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/pricing"
)

// catalogStore is the catalog read surface handlers price carts against.
// *storage.CatalogRepository satisfies it.
type catalogStore interface {
	LoadCatalog(ctx context.Context, companyID string, serviceIDs []string) (pricing.Catalog, error)
}

// companyID resolves the tenant from the X-Company-Id header, falling back
// to the company_id query parameter for browser-originated GETs.
func companyID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get("X-Company-Id"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("company_id"))
	}
	return id
}

// parseDay parses a YYYY-MM-DD business-local date. The date column stores
// it as-is; no timezone conversion happens server-side.
func parseDay(raw string) (time.Time, bool) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

type selectionRequest struct {
	ServiceID string              `json:"service_id"`
	Addons    []addonCountRequest `json:"addons,omitempty"`
}

type addonCountRequest struct {
	AddonID string `json:"addon_id"`
	Count   int    `json:"count"`
}

func toSelections(reqs []selectionRequest) ([]pricing.Selection, bool) {
	sels := make([]pricing.Selection, 0, len(reqs))
	for _, sr := range reqs {
		serviceID := strings.TrimSpace(sr.ServiceID)
		if serviceID == "" {
			return nil, false
		}
		sel := pricing.Selection{ServiceID: serviceID}
		for _, ar := range sr.Addons {
			addonID := strings.TrimSpace(ar.AddonID)
			if addonID == "" {
				return nil, false
			}
			sel.Addons = append(sel.Addons, pricing.AddonSelection{AddonID: addonID, Count: ar.Count})
		}
		sels = append(sels, sel)
	}
	return sels, true
}

func serviceIDs(sels []pricing.Selection) []string {
	ids := make([]string, 0, len(sels))
	seen := make(map[string]struct{}, len(sels))
	for _, sel := range sels {
		if _, ok := seen[sel.ServiceID]; ok {
			continue
		}
		seen[sel.ServiceID] = struct{}{}
		ids = append(ids, sel.ServiceID)
	}
	return ids
}

// staffDayBusy folds a staff member's schedule narrowing into busy
// intervals relative to the company window. A staff member marked not
// working that weekday is busy for the whole window; one with narrower
// hours is busy in the margins outside them.
func staffDayBusy(win availability.Window, hours map[string]model.StaffHours, staffIDs []string) map[string][]availability.Interval {
	out := map[string][]availability.Interval{}
	for _, id := range staffIDs {
		sh, ok := hours[id]
		if !ok {
			continue
		}
		if !sh.IsWorking {
			out[id] = append(out[id], availability.Interval{Start: win.Open, End: win.Close})
			continue
		}
		if sh.StartMinute > win.Open {
			out[id] = append(out[id], availability.Interval{Start: win.Open, End: sh.StartMinute})
		}
		if sh.EndMinute < win.Close {
			out[id] = append(out[id], availability.Interval{Start: sh.EndMinute, End: win.Close})
		}
	}
	return out
}

// mergeBusy unions per-staff interval maps; intervals are kept as-is, the
// overlap checks do not require coalescing.
func mergeBusy(maps ...map[string][]availability.Interval) map[string][]availability.Interval {
	out := map[string][]availability.Interval{}
	for _, m := range maps {
		for id, ivs := range m {
			out[id] = append(out[id], ivs...)
		}
	}
	return out
}
