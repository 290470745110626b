package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client status constants.
const (
	ClientStatusActive    = "Active"
	ClientStatusCompleted = "Completed"
	ClientStatusPending   = "Pending"
)

// Client is a customer the contractor bills for work.
type Client struct {
	ID         string          `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	Email      string          `json:"email" db:"email"`
	Phone      string          `json:"phone" db:"phone"`
	Address    string          `json:"address" db:"address"`
	Status     string          `json:"status" db:"status"`
	HourlyRate decimal.Decimal `json:"hourly_rate" db:"hourly_rate"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// ClientPatch carries a partial client update. Nil fields are left unchanged.
type ClientPatch struct {
	Name       *string
	Email      *string
	Phone      *string
	Address    *string
	Status     *string
	HourlyRate *decimal.Decimal
}

// IsValidClientStatus reports whether s is one of the client status constants.
func IsValidClientStatus(s string) bool {
	switch s {
	case ClientStatusActive, ClientStatusCompleted, ClientStatusPending:
		return true
	}
	return false
}
