package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/sitebook/internal/model"
)

const clientColumns = "id, name, email, phone, address, status, hourly_rate, created_at"

// GetClients retrieves clients matching the filter, newest first by default.
func (s *SQLStore) GetClients(ctx context.Context, filter ClientFilter) ([]model.Client, error) {
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *filter.Status)
	}

	query := "SELECT " + clientColumns + " FROM clients" + whereClause(conditions)
	if filter.SortBy == "" {
		filter.SortDesc = true
	}
	query += orderClause(filter.SortBy, filter.SortDesc, "created_at", "created_at", "name", "status")

	var clients []model.Client
	if err := s.db.SelectContext(ctx, &clients, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying clients: %w", err)
	}
	return clients, nil
}

// GetClientByID retrieves a single client by ID.
func (s *SQLStore) GetClientByID(ctx context.Context, id string) (*model.Client, error) {
	var client model.Client
	err := s.db.GetContext(ctx, &client,
		s.db.Rebind("SELECT "+clientColumns+" FROM clients WHERE id = ?"), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting client %s: %w", id, err)
	}
	return &client, nil
}

// CreateClient inserts a new client and returns the stored row.
// Generates a UUID if ID is empty.
func (s *SQLStore) CreateClient(ctx context.Context, client model.Client) (*model.Client, error) {
	if strings.TrimSpace(client.Name) == "" {
		return nil, fmt.Errorf("client name must not be empty")
	}
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	if client.Status == "" {
		client.Status = model.ClientStatusActive
	}
	client.CreatedAt = time.Now().UTC()

	var created model.Client
	err := s.db.GetContext(ctx, &created, s.db.Rebind(`
		INSERT INTO clients (`+clientColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+clientColumns),
		client.ID, client.Name, client.Email, client.Phone, client.Address,
		client.Status, client.HourlyRate, client.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}
	return &created, nil
}

// UpdateClient applies a partial update and returns the stored row.
func (s *SQLStore) UpdateClient(ctx context.Context, id string, patch model.ClientPatch) (*model.Client, error) {
	var b updateBuilder
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, fmt.Errorf("client name must not be empty")
		}
		b.set("name", *patch.Name)
	}
	if patch.Email != nil {
		b.set("email", *patch.Email)
	}
	if patch.Phone != nil {
		b.set("phone", *patch.Phone)
	}
	if patch.Address != nil {
		b.set("address", *patch.Address)
	}
	if patch.Status != nil {
		b.set("status", *patch.Status)
	}
	if patch.HourlyRate != nil {
		b.set("hourly_rate", *patch.HourlyRate)
	}
	if b.empty() {
		return s.GetClientByID(ctx, id)
	}

	query := "UPDATE clients SET " + strings.Join(b.sets, ", ") +
		" WHERE id = ? RETURNING " + clientColumns

	var updated model.Client
	err := s.db.GetContext(ctx, &updated, s.db.Rebind(query), append(b.args, id)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("updating client %s: %w", id, err)
	}
	return &updated, nil
}

// DeleteClient removes a client. Fails while projects, entries or
// invoices still reference it.
func (s *SQLStore) DeleteClient(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM clients WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("deleting client %s: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("client %s: %w", id, ErrNotFound)
	}
	return nil
}
