package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Company struct {
	ID        string
	Name      string
	Slug      string
	Timezone  string
	CreatedAt time.Time
}

type Staff struct {
	ID                  string
	CompanyID           string
	FullName            string
	Role                string
	AvailableForBooking bool
	CreatedAt           time.Time
}

// PriceDisplay only affects presentation; scheduling and invoicing always
// use the numeric Price and DurationMins.
const (
	PriceDisplayFixed  = "fixed"
	PriceDisplayFree   = "free"
	PriceDisplayFrom   = "from"
	PriceDisplayHidden = "hidden"
)

type Service struct {
	ID           string
	CompanyID    string
	Name         string
	Price        decimal.Decimal
	DurationMins int
	Category     string
	PriceDisplay string
	CreatedAt    time.Time
}

type Addon struct {
	ID           string
	CompanyID    string
	Name         string
	Price        decimal.Decimal
	DurationMins int
	CreatedAt    time.Time
}

type Client struct {
	ID        string
	CompanyID string
	FirstName string
	LastName  string
	Phone     string
	Email     string
	CreatedAt time.Time
}

const (
	BookingStatusBooked    = "booked"
	BookingStatusCancelled = "cancelled"
)

// Booking times are wall-clock minutes from midnight in the company's
// timezone; [StartMinute, EndMinute) is half-open.
type Booking struct {
	ID           string
	CompanyID    string
	StaffID      string
	ClientID     *string
	Day          time.Time
	StartMinute  int
	EndMinute    int
	Status       string
	InvoiceID    *string
	InternalNote string
	ClientNote   string
	CancelledAt  *time.Time
	CreatedAt    time.Time
}

type BookingSelection struct {
	ID        string
	BookingID string
	ServiceID string
	Position  int
	Addons    []BookingAddonSelection
}

type BookingAddonSelection struct {
	ID          string
	SelectionID string
	AddonID     string
	Count       int
}

const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
)

// Invoice is an immutable snapshot; Amount and Items are computed once at
// creation and never recomputed from the catalog.
type Invoice struct {
	ID            string
	CompanyID     string
	ClientID      *string
	BookingID     *string
	Amount        decimal.Decimal
	PaymentMethod string
	Items         []InvoiceItem
	CreatedAt     time.Time
}

const (
	InvoiceItemService = "service"
	InvoiceItemAddon   = "addon"
)

type InvoiceItem struct {
	ID                string
	InvoiceID         string
	Kind              string
	Name              string
	ParentServiceName string
	UnitPrice         decimal.Decimal
	Count             int
	Position          int
}

// WeeklyHours is the recurring schedule: at most one row per
// (company, weekday). The break, when present, lies inside [Open, Close).
type WeeklyHours struct {
	CompanyID        string
	Weekday          int // 0 = Sunday
	OpenMinute       int
	CloseMinute      int
	BreakStartMinute *int
	BreakEndMinute   *int
}

// DateOverride replaces open/close for a single date. Breaks are not
// overridable and always come from the weekly row.
type DateOverride struct {
	CompanyID   string
	Day         time.Time
	OpenMinute  int
	CloseMinute int
}

// StaffHours narrows a staff member's availability below company hours.
// A staff member with no rows follows company hours unmodified.
type StaffHours struct {
	StaffID     string
	Weekday     int
	IsWorking   bool
	StartMinute int
	EndMinute   int
}

// TimeOff blocks [StartMinute, EndMinute) on every day in
// [StartDate, EndDate], inclusive.
type TimeOff struct {
	ID          string
	StaffID     string
	StartDate   time.Time
	EndDate     time.Time
	StartMinute int
	EndMinute   int
	Reason      string
	CreatedAt   time.Time
}
