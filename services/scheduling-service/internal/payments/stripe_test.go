package payments

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBookingChargeKeyStableAcrossAttempts(t *testing.T) {
	first := BookingChargeKey("bk-1")
	retry := BookingChargeKey("bk-1")
	if first != retry {
		t.Fatalf("retry must reuse the charge key: %q vs %q", first, retry)
	}
	if BookingChargeKey("bk-2") == first {
		t.Fatalf("different bookings must not share a charge key")
	}
}

func TestAdHocChargeKeyPrefersRequestKey(t *testing.T) {
	first := AdHocChargeKey("co-1", "req-1", "inv-1")
	retry := AdHocChargeKey("co-1", "req-1", "inv-2")
	if first != retry {
		t.Fatalf("retry with a new invoice id must reuse the charge key: %q vs %q", first, retry)
	}
	if AdHocChargeKey("co-2", "req-1", "inv-1") == first {
		t.Fatalf("request keys must be scoped per company")
	}
	if AdHocChargeKey("co-1", "", "inv-1") == AdHocChargeKey("co-1", "", "inv-2") {
		t.Fatalf("without a request key the invoice id is the charge identity")
	}
}

func TestCaptureWithoutSecretKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := NewCardProcessor(logger, Config{})
	if p.Enabled() {
		t.Fatalf("processor without a secret key must report disabled")
	}
	if _, err := p.Capture(BookingChargeKey("bk-1"), decimal.NewFromInt(10), "pm_1"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
