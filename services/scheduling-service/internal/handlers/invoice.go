package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/outbox"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/payments"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/pricing"
	"github.com/glosspoint/scheduling/services/scheduling-service/internal/storage"
)

// Narrow store interfaces so the payment flow can be driven in tests
// without a database. *storage.BookingRepository and friends satisfy them.
type invoiceBookingStore interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, companyID, bookingID string) (model.Booking, error)
	GetSelections(ctx context.Context, tx pgx.Tx, bookingID string) ([]pricing.Selection, error)
	ReplaceSelections(ctx context.Context, tx pgx.Tx, bookingID string, sels []pricing.Selection) error
	UpdateInterval(ctx context.Context, tx pgx.Tx, companyID, bookingID string, startMinute, endMinute int) error
	SetInvoice(ctx context.Context, tx pgx.Tx, companyID, bookingID, invoiceID string) error
}

type invoiceStore interface {
	Create(ctx context.Context, tx pgx.Tx, inv *model.Invoice) (string, error)
	Get(ctx context.Context, companyID, invoiceID string) (model.Invoice, error)
	ListByCompany(ctx context.Context, companyID string, from, to time.Time, limit int) ([]model.Invoice, error)
}

type eventInserter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type cardCharger interface {
	Enabled() bool
	Capture(idempotencyKey string, amount decimal.Decimal, paymentMethodID string) (string, error)
}

type InvoiceHandler struct {
	invoiceRepo invoiceStore
	bookingRepo invoiceBookingStore
	catalogRepo catalogStore
	outboxRepo  eventInserter
	cards       cardCharger
	logger      *slog.Logger
}

func NewInvoiceHandler(invoiceRepo invoiceStore, bookingRepo invoiceBookingStore, catalogRepo catalogStore, outboxRepo eventInserter, cards cardCharger, logger *slog.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceRepo: invoiceRepo,
		bookingRepo: bookingRepo,
		catalogRepo: catalogRepo,
		outboxRepo:  outboxRepo,
		cards:       cards,
		logger:      logger,
	}
}

type payBookingRequest struct {
	BookingID      string             `json:"booking_id"`
	PaymentMethod  string             `json:"payment_method"`
	Selections     []selectionRequest `json:"selections,omitempty"`
	StripeMethodID string             `json:"stripe_payment_method_id,omitempty"`
}

type invoiceResponse struct {
	InvoiceID     string            `json:"invoice_id"`
	BookingID     string            `json:"booking_id,omitempty"`
	Amount        string            `json:"amount"`
	PaymentMethod string            `json:"payment_method"`
	Items         []invoiceItemView `json:"items"`
}

type invoiceItemView struct {
	Kind              string `json:"kind"`
	Name              string `json:"name"`
	ParentServiceName string `json:"parent_service_name,omitempty"`
	UnitPrice         string `json:"unit_price"`
	Count             int    `json:"count"`
}

// PayBooking settles a booking: the final cart (edited at checkout or the
// one booked) is priced once, frozen into an invoice, and the booking is
// marked paid. Paying an already-paid booking answers 409 and changes
// nothing.
func (h *InvoiceHandler) PayBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req payBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	bookingID := strings.TrimSpace(req.BookingID)
	method := strings.TrimSpace(req.PaymentMethod)
	if bookingID == "" {
		http.Error(w, "booking_id required", http.StatusBadRequest)
		return
	}
	if method != model.PaymentMethodCash && method != model.PaymentMethodCard {
		http.Error(w, "payment_method must be cash or card", http.StatusBadRequest)
		return
	}
	if method == model.PaymentMethodCard && !h.cards.Enabled() {
		http.Error(w, "card payments not configured", http.StatusNotImplemented)
		return
	}

	ctx := r.Context()
	tx, err := h.bookingRepo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.bookingRepo.GetForUpdate(ctx, tx, cid, bookingID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load booking", http.StatusInternalServerError)
		return
	}
	if booking.InvoiceID != nil {
		http.Error(w, "booking already paid", http.StatusConflict)
		return
	}
	if booking.Status != model.BookingStatusBooked {
		http.Error(w, "cancelled booking cannot be paid", http.StatusConflict)
		return
	}

	sels, err := h.finalSelections(ctx, tx, booking.ID, req.Selections)
	if err != nil {
		http.Error(w, "invalid selections", http.StatusBadRequest)
		return
	}
	if len(sels) == 0 {
		http.Error(w, "booking has no selections", http.StatusBadRequest)
		return
	}

	quote, err := h.quote(ctx, cid, sels)
	if err != nil {
		if errors.Is(err, pricing.ErrServiceNotFound) {
			http.Error(w, "unknown service in selections", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to price selections", http.StatusInternalServerError)
		return
	}

	// A checkout edit can change the total duration; the booking keeps its
	// start and stretches or shrinks to the new end.
	newEnd := booking.StartMinute + quote.TotalMinutes
	if newEnd != booking.EndMinute {
		if err := h.bookingRepo.UpdateInterval(ctx, tx, cid, booking.ID, booking.StartMinute, newEnd); err != nil {
			if storage.IsConflict(err) {
				http.Error(w, "extended time overlaps another booking", http.StatusConflict)
				return
			}
			http.Error(w, "failed to update booking time", http.StatusInternalServerError)
			return
		}
	}

	inv := &model.Invoice{
		CompanyID:     cid,
		ClientID:      booking.ClientID,
		BookingID:     &booking.ID,
		Amount:        quote.TotalPrice,
		PaymentMethod: method,
		Items:         itemsFromQuote(quote),
	}
	invoiceID, err := h.invoiceRepo.Create(ctx, tx, inv)
	if err != nil {
		http.Error(w, "failed to create invoice", http.StatusInternalServerError)
		return
	}
	inv.ID = invoiceID

	if err := h.bookingRepo.SetInvoice(ctx, tx, cid, booking.ID, invoiceID); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "booking already paid", http.StatusConflict)
			return
		}
		http.Error(w, "failed to bind invoice", http.StatusInternalServerError)
		return
	}

	if method == model.PaymentMethodCard {
		if _, err := h.cards.Capture(payments.BookingChargeKey(booking.ID), quote.TotalPrice, strings.TrimSpace(req.StripeMethodID)); err != nil {
			http.Error(w, "card payment failed", http.StatusBadGateway)
			return
		}
	}

	evt, err := outbox.InvoiceCreated(*inv)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "extended time overlaps another booking", http.StatusConflict)
			return
		}
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceResponse(*inv))
}

// finalSelections returns the pay-time cart: the request's selections when
// present (replacing the stored tree), otherwise the booking's stored
// selections unchanged.
func (h *InvoiceHandler) finalSelections(ctx context.Context, tx pgx.Tx, bookingID string, reqs []selectionRequest) ([]pricing.Selection, error) {
	if len(reqs) == 0 {
		return h.bookingRepo.GetSelections(ctx, tx, bookingID)
	}
	sels, ok := toSelections(reqs)
	if !ok {
		return nil, errors.New("invalid selections")
	}
	if err := h.bookingRepo.ReplaceSelections(ctx, tx, bookingID, sels); err != nil {
		return nil, err
	}
	return sels, nil
}

func (h *InvoiceHandler) quote(ctx context.Context, cid string, sels []pricing.Selection) (pricing.Quote, error) {
	cat, err := h.catalogRepo.LoadCatalog(ctx, cid, serviceIDs(sels))
	if err != nil {
		return pricing.Quote{}, err
	}
	return pricing.Aggregate(sels, cat)
}

type adHocInvoiceRequest struct {
	PaymentMethod  string             `json:"payment_method"`
	Selections     []selectionRequest `json:"selections"`
	ClientID       string             `json:"client_id,omitempty"`
	StripeMethodID string             `json:"stripe_payment_method_id,omitempty"`
}

// CreateAdHoc sells catalog items without a booking (walk-in checkout).
func (h *InvoiceHandler) CreateAdHoc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}
	var req adHocInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	method := strings.TrimSpace(req.PaymentMethod)
	if method != model.PaymentMethodCash && method != model.PaymentMethodCard {
		http.Error(w, "payment_method must be cash or card", http.StatusBadRequest)
		return
	}
	if method == model.PaymentMethodCard && !h.cards.Enabled() {
		http.Error(w, "card payments not configured", http.StatusNotImplemented)
		return
	}
	if len(req.Selections) == 0 {
		http.Error(w, "at least one selection required", http.StatusBadRequest)
		return
	}
	sels, ok := toSelections(req.Selections)
	if !ok {
		http.Error(w, "invalid selections", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	quote, err := h.quote(ctx, cid, sels)
	if err != nil {
		if errors.Is(err, pricing.ErrServiceNotFound) {
			http.Error(w, "unknown service in selections", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to price selections", http.StatusInternalServerError)
		return
	}

	tx, err := h.bookingRepo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inv := &model.Invoice{
		CompanyID:     cid,
		Amount:        quote.TotalPrice,
		PaymentMethod: method,
		Items:         itemsFromQuote(quote),
	}
	if clientID := strings.TrimSpace(req.ClientID); clientID != "" {
		inv.ClientID = &clientID
	}

	invoiceID, err := h.invoiceRepo.Create(ctx, tx, inv)
	if err != nil {
		http.Error(w, "failed to create invoice", http.StatusInternalServerError)
		return
	}
	inv.ID = invoiceID

	if method == model.PaymentMethodCard {
		chargeKey := payments.AdHocChargeKey(cid, strings.TrimSpace(r.Header.Get("Idempotency-Key")), invoiceID)
		if _, err := h.cards.Capture(chargeKey, quote.TotalPrice, strings.TrimSpace(req.StripeMethodID)); err != nil {
			http.Error(w, "card payment failed", http.StatusBadGateway)
			return
		}
	}

	evt, err := outbox.InvoiceCreated(*inv)
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}
	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceResponse(*inv))
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	invoiceID := strings.TrimSpace(r.URL.Query().Get("invoice_id"))
	if cid == "" || invoiceID == "" {
		http.Error(w, "company id and invoice_id required", http.StatusBadRequest)
		return
	}

	inv, err := h.invoiceRepo.Get(r.Context(), cid, invoiceID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "invoice not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load invoice", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(inv))
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cid := companyID(r)
	if cid == "" {
		http.Error(w, "company id required", http.StatusBadRequest)
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -1, 0)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		if d, ok := parseDay(raw); ok {
			from = d
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		if d, ok := parseDay(raw); ok {
			to = d.AddDate(0, 0, 1)
		}
	}

	invs, err := h.invoiceRepo.ListByCompany(r.Context(), cid, from, to, 100)
	if err != nil {
		http.Error(w, "failed to list invoices", http.StatusInternalServerError)
		return
	}
	out := make([]invoiceResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, toInvoiceResponse(inv))
	}
	writeJSON(w, http.StatusOK, out)
}

func itemsFromQuote(q pricing.Quote) []model.InvoiceItem {
	items := make([]model.InvoiceItem, 0, len(q.Items))
	for i, li := range q.Items {
		items = append(items, model.InvoiceItem{
			Kind:              li.Kind,
			Name:              li.Name,
			ParentServiceName: li.ParentServiceName,
			UnitPrice:         li.UnitPrice,
			Count:             li.Count,
			Position:          i,
		})
	}
	return items
}

func toInvoiceResponse(inv model.Invoice) invoiceResponse {
	resp := invoiceResponse{
		InvoiceID:     inv.ID,
		Amount:        inv.Amount.String(),
		PaymentMethod: inv.PaymentMethod,
		Items:         make([]invoiceItemView, 0, len(inv.Items)),
	}
	if inv.BookingID != nil {
		resp.BookingID = *inv.BookingID
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, invoiceItemView{
			Kind:              item.Kind,
			Name:              item.Name,
			ParentServiceName: item.ParentServiceName,
			UnitPrice:         item.UnitPrice.String(),
			Count:             item.Count,
		})
	}
	return resp
}
