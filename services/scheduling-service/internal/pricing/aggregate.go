package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

// ErrServiceNotFound aborts aggregation: a cart whose service cannot be
// resolved is meaningless. Unresolvable addons, by contrast, are dropped
// silently (deliberate leniency for stale carts).
var ErrServiceNotFound = errors.New("service not found")

// Selection binds one service to zero or more addon/count pairs.
type Selection struct {
	ServiceID string
	Addons    []AddonSelection
}

type AddonSelection struct {
	AddonID string
	Count   int
}

// CatalogEntry is a service plus the addons linked to it. An addon is only
// offerable under a service it is linked to.
type CatalogEntry struct {
	Service model.Service
	Addons  map[string]model.Addon
}

// Catalog indexes catalog entries by service id.
type Catalog map[string]CatalogEntry

type LineItem struct {
	Kind              string
	Name              string
	ParentServiceName string
	UnitPrice         decimal.Decimal
	Count             int
	DurationMins      int
}

type Quote struct {
	TotalMinutes int
	TotalPrice   decimal.Decimal
	Items        []LineItem
}

// Aggregate computes the total duration, total price, and ordered line items
// for a cart. Pure function: same input, same quote. Line items follow
// selection order, each service immediately followed by its addon items.
func Aggregate(selections []Selection, cat Catalog) (Quote, error) {
	quote := Quote{TotalPrice: decimal.Zero}

	for _, sel := range selections {
		entry, ok := cat[sel.ServiceID]
		if !ok {
			return Quote{}, fmt.Errorf("%w: %s", ErrServiceNotFound, sel.ServiceID)
		}

		quote.TotalMinutes += entry.Service.DurationMins
		quote.TotalPrice = quote.TotalPrice.Add(entry.Service.Price)
		quote.Items = append(quote.Items, LineItem{
			Kind:         model.InvoiceItemService,
			Name:         entry.Service.Name,
			UnitPrice:    entry.Service.Price,
			Count:        1,
			DurationMins: entry.Service.DurationMins,
		})

		for _, as := range sel.Addons {
			addon, ok := entry.Addons[as.AddonID]
			if !ok {
				continue
			}
			count := as.Count
			if count < 1 {
				count = 1
			}
			quote.TotalMinutes += addon.DurationMins * count
			quote.TotalPrice = quote.TotalPrice.Add(addon.Price.Mul(decimal.NewFromInt(int64(count))))
			quote.Items = append(quote.Items, LineItem{
				Kind:              model.InvoiceItemAddon,
				Name:              addon.Name,
				ParentServiceName: entry.Service.Name,
				UnitPrice:         addon.Price,
				Count:             count,
				DurationMins:      addon.DurationMins,
			})
		}
	}

	return quote, nil
}
