package app

import (
	"context"
	"fmt"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// HealthChecker is implemented by adapters with a cheap liveness probe.
type HealthChecker interface{ Healthz(ctx context.Context) error }

// BuildReadinessChecks returns the db and vector index readiness checks
// consumed by the /readyz handler.
func BuildReadinessChecks(pool Pinger, index HealthChecker) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	dbCheck := func(ctx context.Context) error {
		if pool == nil {
			return fmt.Errorf("db not configured")
		}
		return pool.Ping(ctx)
	}
	indexCheck := func(ctx context.Context) error {
		if index == nil {
			return fmt.Errorf("vector index not configured")
		}
		return index.Healthz(ctx)
	}
	return dbCheck, indexCheck
}
