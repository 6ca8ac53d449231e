// Package db holds the hand-written SQL query layer. Each entity gets
// explicit methods (create, get, list, update, delete) instead of an ORM;
// reads that need category data denormalize it with a LEFT JOIN.
package db

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}
