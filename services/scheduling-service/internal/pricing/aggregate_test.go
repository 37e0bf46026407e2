package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

func testCatalog() Catalog {
	gloss := model.Addon{ID: "addon-gloss", Name: "Gloss Finish", Price: decimal.RequireFromString("7.50"), DurationMins: 15}
	return Catalog{
		"svc-cut": {
			Service: model.Service{ID: "svc-cut", Name: "Haircut", Price: decimal.RequireFromString("30.00"), DurationMins: 30},
		},
		"svc-color": {
			Service: model.Service{ID: "svc-color", Name: "Color", Price: decimal.RequireFromString("45.00"), DurationMins: 45},
			Addons:  map[string]model.Addon{"addon-gloss": gloss},
		},
	}
}

func TestAggregate_TwoServicesWithAddon(t *testing.T) {
	sels := []Selection{
		{ServiceID: "svc-cut"},
		{ServiceID: "svc-color", Addons: []AddonSelection{{AddonID: "addon-gloss", Count: 2}}},
	}

	quote, err := Aggregate(sels, testCatalog())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if quote.TotalMinutes != 30+45+15*2 {
		t.Fatalf("expected 105 minutes, got %d", quote.TotalMinutes)
	}
	want := decimal.RequireFromString("90.00") // 30 + 45 + 7.50*2
	if !quote.TotalPrice.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, quote.TotalPrice)
	}
}

func TestAggregate_LineItemOrder(t *testing.T) {
	sels := []Selection{
		{ServiceID: "svc-color", Addons: []AddonSelection{{AddonID: "addon-gloss", Count: 1}}},
		{ServiceID: "svc-cut"},
	}

	quote, err := Aggregate(sels, testCatalog())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if len(quote.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(quote.Items))
	}
	if quote.Items[0].Kind != model.InvoiceItemService || quote.Items[0].Name != "Color" {
		t.Fatalf("item 0: %+v", quote.Items[0])
	}
	// Addon follows its parent service and carries its name for grouping.
	if quote.Items[1].Kind != model.InvoiceItemAddon || quote.Items[1].ParentServiceName != "Color" {
		t.Fatalf("item 1: %+v", quote.Items[1])
	}
	if quote.Items[2].Name != "Haircut" {
		t.Fatalf("item 2: %+v", quote.Items[2])
	}
}

func TestAggregate_UnresolvableAddonDropped(t *testing.T) {
	sels := []Selection{
		// addon-gloss is linked to svc-color, not svc-cut: stale reference.
		{ServiceID: "svc-cut", Addons: []AddonSelection{{AddonID: "addon-gloss", Count: 3}}},
	}

	quote, err := Aggregate(sels, testCatalog())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if quote.TotalMinutes != 30 {
		t.Fatalf("stale addon must contribute nothing, got %d minutes", quote.TotalMinutes)
	}
	if len(quote.Items) != 1 {
		t.Fatalf("stale addon must be dropped from output, got %d items", len(quote.Items))
	}
}

func TestAggregate_UnknownServiceFails(t *testing.T) {
	_, err := Aggregate([]Selection{{ServiceID: "svc-missing"}}, testCatalog())
	if !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestAggregate_CountClampedToOne(t *testing.T) {
	sels := []Selection{
		{ServiceID: "svc-color", Addons: []AddonSelection{{AddonID: "addon-gloss", Count: 0}}},
	}
	quote, err := Aggregate(sels, testCatalog())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if quote.Items[1].Count != 1 {
		t.Fatalf("count below 1 must clamp to 1, got %d", quote.Items[1].Count)
	}
	if quote.TotalMinutes != 45+15 {
		t.Fatalf("expected 60 minutes, got %d", quote.TotalMinutes)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	sels := []Selection{
		{ServiceID: "svc-cut"},
		{ServiceID: "svc-color", Addons: []AddonSelection{{AddonID: "addon-gloss", Count: 2}}},
	}
	cat := testCatalog()

	first, err := Aggregate(sels, cat)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	second, err := Aggregate(sels, cat)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if first.TotalMinutes != second.TotalMinutes || !first.TotalPrice.Equal(second.TotalPrice) {
		t.Fatal("totals must be identical across calls")
	}
	if len(first.Items) != len(second.Items) {
		t.Fatal("line items must be identical across calls")
	}
	for i := range first.Items {
		if first.Items[i] != second.Items[i] {
			t.Fatalf("item %d differs between calls", i)
		}
	}
}

func TestAggregate_EmptyCart(t *testing.T) {
	quote, err := Aggregate(nil, testCatalog())
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if quote.TotalMinutes != 0 || !quote.TotalPrice.IsZero() || len(quote.Items) != 0 {
		t.Fatalf("empty cart must aggregate to zero, got %+v", quote)
	}
}
