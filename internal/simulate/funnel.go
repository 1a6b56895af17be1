package simulate

import (
	"crypto/md5"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/headline-goat/abpower/internal/store"
	"github.com/headline-goat/abpower/internal/trial"
)

// AssignmentSalt keys the hash-based variant assignment.
const AssignmentSalt = "experiment_v1"

var checkoutSteps = []string{"address", "shipping", "payment", "review"}

var stepAbandonRate = map[string]float64{
	"address":  0.20,
	"shipping": 0.15,
	"payment":  0.10,
	"review":   0.05,
}

var (
	errorCodes     = []string{"invalid", "declined", "timeout"}
	paymentMethods = []string{"card", "paypal"}
)

// Baseline funnel rates before uplift.
const (
	cartToCheckoutRate = 0.67
	formErrorRate      = 0.10
	paymentAuthRate    = 0.92
)

// AssignVariant deterministically buckets a user into control or treatment.
func AssignVariant(userID string) string {
	sum := md5.Sum([]byte(userID + ":" + AssignmentSalt))
	if sum[len(sum)-1]%2 == 0 {
		return trial.ArmTreatment
	}
	return trial.ArmControl
}

// funnel simulates checkouts for one day. All randomness, including the
// generated identifiers, comes from rng.
type funnel struct {
	rng    *rand.Rand
	uplift float64
}

func (f *funnel) newID() string {
	id, err := uuid.NewRandomFromReader(f.rng)
	if err != nil {
		// rand.Rand.Read never fails
		panic(err)
	}
	return id.String()
}

func (f *funnel) uniform(lo, hi float64) float64 {
	return lo + f.rng.Float64()*(hi-lo)
}

// user appends the events of one user's checkout journey to events.
func (f *funnel) user(events []store.Event, day time.Time, userID, variant string) []store.Event {
	date := day.Format(trial.DateLayout)
	treated := variant == trial.ArmTreatment

	upliftMultiplier, errorMultiplier, abandonMultiplier := 1.0, 1.0, 1.0
	if treated {
		upliftMultiplier = 1 + f.uplift
		errorMultiplier = 1 - f.uplift*0.4
		abandonMultiplier = 1 - f.uplift*0.3
	}

	sessionID := f.newID()
	hours := f.uniform(0, 24)
	at := func() time.Time {
		return day.Add(time.Duration(hours * float64(time.Hour)))
	}

	cartValue := float64(int(f.uniform(20, 500)*100)) / 100
	events = append(events, store.Event{
		Type:       store.EventAddToCart,
		Date:       date,
		Variant:    variant,
		UserID:     userID,
		SessionID:  sessionID,
		Items:      1 + f.rng.Intn(10),
		Amount:     cartValue,
		OccurredAt: at(),
	})

	if f.rng.Float64() > cartToCheckoutRate*upliftMultiplier {
		return events
	}

	checkoutID := f.newID()
	hours += f.uniform(0.01, 0.1)
	events = append(events, store.Event{
		Type:       store.EventBeginCheckout,
		Date:       date,
		Variant:    variant,
		UserID:     userID,
		SessionID:  sessionID,
		CheckoutID: checkoutID,
		OccurredAt: at(),
	})

	for i, step := range checkoutSteps {
		hours += f.uniform(0.005, 0.02)
		events = append(events, store.Event{
			Type:       store.EventCheckoutStepView,
			Date:       date,
			Variant:    variant,
			UserID:     userID,
			CheckoutID: checkoutID,
			StepName:   step,
			StepIndex:  i,
			LatencyMs:  200 + f.rng.Intn(1801),
			OccurredAt: at(),
		})

		if f.rng.Float64() < formErrorRate*errorMultiplier {
			hours += f.uniform(0.001, 0.005)
			events = append(events, store.Event{
				Type:       store.EventFormError,
				Date:       date,
				Variant:    variant,
				UserID:     userID,
				CheckoutID: checkoutID,
				StepName:   step,
				StepIndex:  i,
				ErrorCode:  errorCodes[f.rng.Intn(len(errorCodes))],
				OccurredAt: at(),
			})
		}

		if f.rng.Float64() < stepAbandonRate[step]*abandonMultiplier {
			return events
		}
	}

	hours += f.uniform(0.01, 0.03)
	method := paymentMethods[f.rng.Intn(len(paymentMethods))]
	authorized := f.rng.Float64() < paymentAuthRate*upliftMultiplier
	events = append(events, store.Event{
		Type:       store.EventPaymentAttempt,
		Date:       date,
		Variant:    variant,
		UserID:     userID,
		CheckoutID: checkoutID,
		Method:     method,
		Authorized: authorized,
		OccurredAt: at(),
	})

	if authorized {
		hours += f.uniform(0.001, 0.01)
		events = append(events, store.Event{
			Type:       store.EventOrderCompleted,
			Date:       date,
			Variant:    variant,
			UserID:     userID,
			CheckoutID: checkoutID,
			OrderID:    f.orderID(),
			Amount:     cartValue,
			OccurredAt: at(),
		})
	}

	return events
}

func (f *funnel) orderID() string {
	return fmt.Sprintf("ORD-%012X", f.rng.Int63n(1<<48))
}

// UserID formats the id of the i-th user simulated on day.
func UserID(day time.Time, i int) string {
	return fmt.Sprintf("user_%s_%06d", day.Format(trial.DateLayout), i)
}
