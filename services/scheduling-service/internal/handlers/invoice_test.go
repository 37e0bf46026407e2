package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/outbox"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/payments"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/pricing"
)

type nopTx struct{ pgx.Tx }

func (nopTx) Commit(context.Context) error   { return nil }
func (nopTx) Rollback(context.Context) error { return nil }

type memBookingStore struct {
	booking model.Booking
	sels    []pricing.Selection
}

func (s *memBookingStore) Begin(context.Context) (pgx.Tx, error) { return nopTx{}, nil }

func (s *memBookingStore) GetForUpdate(_ context.Context, _ pgx.Tx, companyID, bookingID string) (model.Booking, error) {
	if companyID != s.booking.CompanyID || bookingID != s.booking.ID {
		return model.Booking{}, pgx.ErrNoRows
	}
	return s.booking, nil
}

func (s *memBookingStore) GetSelections(context.Context, pgx.Tx, string) ([]pricing.Selection, error) {
	return s.sels, nil
}

func (s *memBookingStore) ReplaceSelections(_ context.Context, _ pgx.Tx, _ string, sels []pricing.Selection) error {
	s.sels = sels
	return nil
}

func (s *memBookingStore) UpdateInterval(_ context.Context, _ pgx.Tx, _, _ string, start, end int) error {
	s.booking.StartMinute = start
	s.booking.EndMinute = end
	return nil
}

func (s *memBookingStore) SetInvoice(_ context.Context, _ pgx.Tx, _, _, invoiceID string) error {
	if s.booking.InvoiceID != nil {
		return pgx.ErrNoRows
	}
	s.booking.InvoiceID = &invoiceID
	return nil
}

type memInvoiceStore struct {
	created []model.Invoice
}

func (s *memInvoiceStore) Create(_ context.Context, _ pgx.Tx, inv *model.Invoice) (string, error) {
	s.created = append(s.created, *inv)
	return fmt.Sprintf("inv-%d", len(s.created)), nil
}

func (s *memInvoiceStore) Get(context.Context, string, string) (model.Invoice, error) {
	return model.Invoice{}, pgx.ErrNoRows
}

func (s *memInvoiceStore) ListByCompany(context.Context, string, time.Time, time.Time, int) ([]model.Invoice, error) {
	return nil, nil
}

type memCatalog struct{ cat pricing.Catalog }

func (c memCatalog) LoadCatalog(context.Context, string, []string) (pricing.Catalog, error) {
	return c.cat, nil
}

type memOutbox struct{ events []outbox.Event }

func (s *memOutbox) Insert(_ context.Context, _ pgx.Tx, evt outbox.Event) error {
	s.events = append(s.events, evt)
	return nil
}

type recordingCharger struct{ keys []string }

func (c *recordingCharger) Enabled() bool { return true }

func (c *recordingCharger) Capture(idempotencyKey string, _ decimal.Decimal, _ string) (string, error) {
	c.keys = append(c.keys, idempotencyKey)
	return "pi_test", nil
}

func testCatalog() pricing.Catalog {
	return pricing.Catalog{
		"svc-1": {
			Service: model.Service{
				ID:           "svc-1",
				CompanyID:    "co-1",
				Name:         "Haircut",
				Price:        decimal.NewFromInt(50),
				DurationMins: 60,
			},
		},
	}
}

func testBookingStore() *memBookingStore {
	return &memBookingStore{
		booking: model.Booking{
			ID:          "bk-1",
			CompanyID:   "co-1",
			StaffID:     "st-1",
			Day:         time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
			StartMinute: 540,
			EndMinute:   600,
			Status:      model.BookingStatusBooked,
		},
		sels: []pricing.Selection{{ServiceID: "svc-1"}},
	}
}

func payBookingRequestFor(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/pay", strings.NewReader(body))
	req.Header.Set("X-Company-Id", "co-1")
	return req
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPayBookingSecondAttemptConflicts(t *testing.T) {
	bookings := testBookingStore()
	invoices := &memInvoiceStore{}
	h := NewInvoiceHandler(invoices, bookings, memCatalog{testCatalog()}, &memOutbox{}, &recordingCharger{}, discardLogger())

	rec := httptest.NewRecorder()
	h.PayBooking(rec, payBookingRequestFor(`{"booking_id":"bk-1","payment_method":"cash"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("first payment: got %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if len(invoices.created) != 1 {
		t.Fatalf("first payment must create one invoice, got %d", len(invoices.created))
	}
	if bookings.booking.InvoiceID == nil {
		t.Fatalf("booking must be bound to its invoice")
	}

	rec = httptest.NewRecorder()
	h.PayBooking(rec, payBookingRequestFor(`{"booking_id":"bk-1","payment_method":"cash"}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second payment: got %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if len(invoices.created) != 1 {
		t.Fatalf("second payment must not create an invoice, got %d", len(invoices.created))
	}
}

func TestPayBookingCardChargeKeyFollowsBooking(t *testing.T) {
	bookings := testBookingStore()
	charger := &recordingCharger{}
	h := NewInvoiceHandler(&memInvoiceStore{}, bookings, memCatalog{testCatalog()}, &memOutbox{}, charger, discardLogger())

	rec := httptest.NewRecorder()
	h.PayBooking(rec, payBookingRequestFor(`{"booking_id":"bk-1","payment_method":"card","stripe_payment_method_id":"pm_1"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if len(charger.keys) != 1 {
		t.Fatalf("expected exactly one capture, got %d", len(charger.keys))
	}
	if want := payments.BookingChargeKey("bk-1"); charger.keys[0] != want {
		t.Fatalf("charge key must follow the booking, got %q want %q", charger.keys[0], want)
	}
}

func TestPayBookingUnknownBookingNotFound(t *testing.T) {
	h := NewInvoiceHandler(&memInvoiceStore{}, testBookingStore(), memCatalog{testCatalog()}, &memOutbox{}, &recordingCharger{}, discardLogger())

	rec := httptest.NewRecorder()
	h.PayBooking(rec, payBookingRequestFor(`{"booking_id":"missing","payment_method":"cash"}`))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got %d, want 404", rec.Code)
	}
}
