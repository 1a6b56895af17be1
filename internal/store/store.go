package store

import "context"

// Store defines the analytic operations over a checkout event warehouse
type Store interface {
	// Writes
	InsertEvents(ctx context.Context, events []Event) error

	// Per-date aggregates
	GetArmStats(ctx context.Context, date string) ([]ArmStats, error)
	GetPaymentStats(ctx context.Context, date string) ([]PaymentStats, error)
	GetOrderValues(ctx context.Context, date, variant string) ([]float64, error)
	GetStepLatencies(ctx context.Context, date, variant string) ([]float64, error)
	MostRecentDate(ctx context.Context) (string, error)
	GetEvents(ctx context.Context, date string) ([]*Event, error)

	// Lifecycle
	Close() error
}
