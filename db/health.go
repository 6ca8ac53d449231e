package db

import (
	"context"
	"time"
)

var expectedTables = []string{"categories", "transactions", "subscriptions"}

// HealthReport summarizes a connectivity probe plus a check that every
// migrated table exists. It is attached to 5xx error responses outside
// production and served from the health endpoint.
type HealthReport struct {
	Connected     bool     `json:"connected"`
	MissingTables []string `json:"missingTables,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func (q *Queries) CheckHealth(ctx context.Context) HealthReport {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	report := HealthReport{MissingTables: []string{}}

	var one int
	if err := q.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		report.Error = err.Error()
		return report
	}
	report.Connected = true

	for _, table := range expectedTables {
		var exists bool
		err := q.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`,
			table).Scan(&exists)
		if err != nil {
			report.Error = err.Error()
			return report
		}
		if !exists {
			report.MissingTables = append(report.MissingTables, table)
		}
	}
	return report
}
