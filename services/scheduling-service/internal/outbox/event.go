package outbox

import (
	"encoding/json"
	"time"

	"github.com/glosspoint/scheduling/services/scheduling-service/internal/model"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	TopicBookingCreated   = "scheduling.booking.created.v1"
	TopicBookingCancelled = "scheduling.booking.cancelled.v1"
	TopicInvoiceCreated   = "scheduling.invoice.created.v1"
)

type bookingCreatedPayload struct {
	BookingID   string  `json:"booking_id"`
	CompanyID   string  `json:"company_id"`
	StaffID     string  `json:"staff_id"`
	ClientID    *string `json:"client_id,omitempty"`
	Day         string  `json:"day"`
	StartMinute int     `json:"start_minute"`
	EndMinute   int     `json:"end_minute"`
}

func BookingCreated(b model.Booking) (Event, error) {
	payload, err := json.Marshal(bookingCreatedPayload{
		BookingID:   b.ID,
		CompanyID:   b.CompanyID,
		StaffID:     b.StaffID,
		ClientID:    b.ClientID,
		Day:         b.Day.Format("2006-01-02"),
		StartMinute: b.StartMinute,
		EndMinute:   b.EndMinute,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     TopicBookingCreated,
		Payload:       payload,
	}, nil
}

type bookingCancelledPayload struct {
	BookingID   string    `json:"booking_id"`
	CompanyID   string    `json:"company_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

func BookingCancelled(companyID, bookingID string, cancelledAt time.Time) (Event, error) {
	payload, err := json.Marshal(bookingCancelledPayload{
		BookingID:   bookingID,
		CompanyID:   companyID,
		CancelledAt: cancelledAt,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   bookingID,
		EventType:     TopicBookingCancelled,
		Payload:       payload,
	}, nil
}

type invoiceCreatedPayload struct {
	InvoiceID     string  `json:"invoice_id"`
	CompanyID     string  `json:"company_id"`
	BookingID     *string `json:"booking_id,omitempty"`
	Amount        string  `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
}

func InvoiceCreated(inv model.Invoice) (Event, error) {
	payload, err := json.Marshal(invoiceCreatedPayload{
		InvoiceID:     inv.ID,
		CompanyID:     inv.CompanyID,
		BookingID:     inv.BookingID,
		Amount:        inv.Amount.String(),
		PaymentMethod: inv.PaymentMethod,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "invoice",
		AggregateID:   inv.ID,
		EventType:     TopicInvoiceCreated,
		Payload:       payload,
	}, nil
}
