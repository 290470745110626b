package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Project status constants.
const (
	ProjectStatusPlanning       = "Planning"
	ProjectStatusInProgress     = "In Progress"
	ProjectStatusNearlyComplete = "Nearly Complete"
	ProjectStatusCompleted      = "Completed"
)

// Project is a job carried out for exactly one client.
type Project struct {
	ID          string          `json:"id" db:"id"`
	ClientID    string          `json:"client_id" db:"client_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Progress    int             `json:"progress" db:"progress"`
	Status      string          `json:"status" db:"status"`
	Deadline    string          `json:"deadline" db:"deadline"`
	Estimate    string          `json:"estimate" db:"estimate"`
	HourlyRate  decimal.Decimal `json:"hourly_rate" db:"hourly_rate"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// ClampProgress bounds a progress percentage to 0..100.
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// IsValidProjectStatus reports whether s is one of the project status constants.
func IsValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusInProgress,
		ProjectStatusNearlyComplete, ProjectStatusCompleted:
		return true
	}
	return false
}
