package metrics

import (
	"context"
	"fmt"

	"github.com/headline-goat/abpower/internal/store"
	"github.com/headline-goat/abpower/internal/trial"
)

// ArmGuardrails holds the secondary metrics for one variant.
type ArmGuardrails struct {
	PaymentAttempts   int
	PaymentAuthorized int
	OrderValues       []float64
	StepLatencies     []float64
}

// Guardrails loads payment authorization, order values and checkout step
// latency for control and treatment on date.
func Guardrails(ctx context.Context, s store.Store, date string) (map[string]ArmGuardrails, error) {
	payments, err := s.GetPaymentStats(ctx, date)
	if err != nil {
		return nil, err
	}

	out := make(map[string]ArmGuardrails, 2)
	for _, variant := range []string{trial.ArmControl, trial.ArmTreatment} {
		var g ArmGuardrails
		for _, p := range payments {
			if p.Variant == variant {
				g.PaymentAttempts = p.Attempts
				g.PaymentAuthorized = p.Authorized
			}
		}

		g.OrderValues, err = s.GetOrderValues(ctx, date, variant)
		if err != nil {
			return nil, fmt.Errorf("order values for %s: %w", variant, err)
		}
		g.StepLatencies, err = s.GetStepLatencies(ctx, date, variant)
		if err != nil {
			return nil, fmt.Errorf("step latencies for %s: %w", variant, err)
		}

		out[variant] = g
	}

	return out, nil
}
