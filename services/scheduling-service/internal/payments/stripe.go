package payments

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

var ErrNotConfigured = errors.New("stripe payments not configured (STRIPE_SECRET_KEY missing)")

// CardProcessor captures card payments through Stripe. Cash invoices never
// reach it; the secret key is optional and card payments fail cleanly
// without it.
type CardProcessor struct {
	secretKey string
	currency  string
	logger    *slog.Logger
}

type Config struct {
	StripeSecretKey string
	Currency        string
}

func NewCardProcessor(logger *slog.Logger, cfg Config) *CardProcessor {
	currency := strings.TrimSpace(cfg.Currency)
	if currency == "" {
		currency = "usd"
	}
	return &CardProcessor{
		secretKey: strings.TrimSpace(cfg.StripeSecretKey),
		currency:  currency,
		logger:    logger,
	}
}

func (p *CardProcessor) Enabled() bool {
	return p.secretKey != ""
}

// BookingChargeKey is the Stripe idempotency key for settling a booking.
// Derived from the booking id, which is stable across retries; each retry
// mints a fresh invoice row, so the invoice id must never be the key.
func BookingChargeKey(bookingID string) string {
	return "booking:" + bookingID
}

// AdHocChargeKey keys a walk-in charge on the caller's Idempotency-Key
// when one is sent. Without it the invoice id is the only identity the
// charge has.
func AdHocChargeKey(companyID, requestKey, invoiceID string) string {
	if requestKey != "" {
		return "adhoc:" + companyID + ":" + requestKey
	}
	return "invoice:" + invoiceID
}

// Capture creates and confirms a PaymentIntent. The idempotency key must
// identify the logical payment, not the attempt: when a charge succeeds but
// the surrounding commit fails, the retry reuses the key and Stripe hands
// back the original intent instead of charging again.
func (p *CardProcessor) Capture(idempotencyKey string, amount decimal.Decimal, paymentMethodID string) (string, error) {
	if !p.Enabled() {
		return "", ErrNotConfigured
	}

	stripe.Key = p.secretKey

	cents := amount.Mul(decimal.NewFromInt(100)).IntPart()
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(cents),
		Currency:      stripe.String(p.currency),
		PaymentMethod: stripe.String(paymentMethodID),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String(string(stripe.PaymentIntentAutomaticPaymentMethodsAllowRedirectsNever)),
		},
	}
	params.IdempotencyKey = stripe.String(idempotencyKey)

	pi, err := paymentintent.New(params)
	if err != nil {
		p.logger.Error("stripe payment intent failed", "err", err, "idempotency_key", idempotencyKey)
		return "", err
	}
	return pi.ID, nil
}
