package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

func TestBookingCreatedEvent(t *testing.T) {
	clientID := "client-1"
	b := model.Booking{
		ID:          "bk-1",
		CompanyID:   "co-1",
		StaffID:     "st-1",
		ClientID:    &clientID,
		Day:         time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		StartMinute: 540,
		EndMinute:   645,
	}
	evt, err := BookingCreated(b)
	if err != nil {
		t.Fatalf("BookingCreated failed: %v", err)
	}
	if evt.EventType != TopicBookingCreated || evt.AggregateID != "bk-1" || evt.AggregateType != "booking" {
		t.Fatalf("unexpected envelope: %+v", evt)
	}

	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload not valid json: %v", err)
	}
	if payload["day"] != "2026-03-14" {
		t.Fatalf("day not serialized as ISO date: %v", payload["day"])
	}
	if payload["start_minute"] != float64(540) || payload["end_minute"] != float64(645) {
		t.Fatalf("minutes mismatch: %v", payload)
	}
	if payload["client_id"] != "client-1" {
		t.Fatalf("client_id missing: %v", payload)
	}
}

func TestInvoiceCreatedEvent_AmountIsExactString(t *testing.T) {
	bookingID := "bk-1"
	amount, _ := decimal.NewFromString("90.00")
	inv := model.Invoice{
		ID:            "inv-1",
		CompanyID:     "co-1",
		BookingID:     &bookingID,
		Amount:        amount,
		PaymentMethod: model.PaymentMethodCash,
	}
	evt, err := InvoiceCreated(inv)
	if err != nil {
		t.Fatalf("InvoiceCreated failed: %v", err)
	}
	if evt.EventType != TopicInvoiceCreated {
		t.Fatalf("unexpected topic: %s", evt.EventType)
	}

	var payload map[string]any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("payload not valid json: %v", err)
	}
	if payload["amount"] != amount.String() {
		t.Fatalf("amount must be the decimal string %q, got %v", amount.String(), payload["amount"])
	}
	if payload["payment_method"] != "cash" {
		t.Fatalf("payment_method mismatch: %v", payload)
	}
}

func TestBookingCancelledEvent(t *testing.T) {
	at := time.Date(2026, 3, 14, 11, 30, 0, 0, time.UTC)
	evt, err := BookingCancelled("co-1", "bk-9", at)
	if err != nil {
		t.Fatalf("BookingCancelled failed: %v", err)
	}
	if evt.AggregateID != "bk-9" || evt.EventType != TopicBookingCancelled {
		t.Fatalf("unexpected envelope: %+v", evt)
	}
}
