package repository

import (
	"context"
	"database/sql"
	"time"

	"retrolock/internal/models"
)

type EventRepo interface {
	Append(ctx context.Context, e models.ActuatorEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.ActuatorEvent, error)
}

type Repository struct {
	EventRepo EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		EventRepo: NewEventSQLite(db),
	}
}
