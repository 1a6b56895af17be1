package store

import "time"

type EventType string

const (
	EventAddToCart        EventType = "add_to_cart"
	EventBeginCheckout    EventType = "begin_checkout"
	EventCheckoutStepView EventType = "checkout_step_view"
	EventFormError        EventType = "form_error"
	EventPaymentAttempt   EventType = "payment_attempt"
	EventOrderCompleted   EventType = "order_completed"
)

// Event is one row of the checkout funnel. Only the fields relevant to the
// event type are set.
type Event struct {
	ID         int64
	Type       EventType
	Date       string // YYYY-MM-DD
	Variant    string
	UserID     string
	SessionID  string
	CheckoutID string
	OrderID    string
	StepName   string
	StepIndex  int
	LatencyMs  int
	ErrorCode  string
	Items      int
	Method     string // payment method
	Authorized bool
	Amount     float64
	OccurredAt time.Time
}

// ArmStats counts distinct users per variant for the conversion rate.
type ArmStats struct {
	Variant  string
	Adders   int
	Orderers int
}

// PaymentStats counts payment attempts per variant.
type PaymentStats struct {
	Variant    string
	Attempts   int
	Authorized int
}
