package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
	"github.com/unclebandit/leadsms-backend/internal/model"
)

// ContactRepositoryInterface defines the contact queries used by services
type ContactRepositoryInterface interface {
	ListSendableByIDs(ctx context.Context, ids []string) ([]model.Contact, error)
	ListSendableByTag(ctx context.Context, tag string) ([]model.Contact, error)
	UpsertByPhone(ctx context.Context, phone string) (string, error)
	MarkOptedOut(ctx context.Context, id string) (bool, error)
	ClearOptOut(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Contact, error)
}

type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `id, COALESCE(phone, ''), first_name, last_name, email, brokerage_name, tags,
        opted_out, opted_out_at, registered, COALESCE(user_id::text, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(
		&c.ID, &c.Phone, &c.FirstName, &c.LastName, &c.Email, &c.BrokerageName, pq.Array(&c.Tags),
		&c.OptedOut, &c.OptedOutAt, &c.Registered, &c.UserID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContactRepository) listContacts(ctx context.Context, query string, args ...any) ([]model.Contact, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// ListSendableByIDs returns the listed contacts that have a phone and have not opted out.
func (r *ContactRepository) ListSendableByIDs(ctx context.Context, ids []string) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + `
        FROM contacts
        WHERE id = ANY($1::uuid[]) AND opted_out = false AND phone IS NOT NULL
        ORDER BY created_at`
	contacts, err := r.listContacts(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("list contacts by id: %w", err)
	}
	return contacts, nil
}

// ListSendableByTag returns tagged contacts that have a phone and have not opted out.
func (r *ContactRepository) ListSendableByTag(ctx context.Context, tag string) ([]model.Contact, error) {
	query := `SELECT ` + contactColumns + `
        FROM contacts
        WHERE $1 = ANY(tags) AND opted_out = false AND phone IS NOT NULL
        ORDER BY created_at`
	contacts, err := r.listContacts(ctx, query, tag)
	if err != nil {
		return nil, fmt.Errorf("list contacts by tag: %w", err)
	}
	return contacts, nil
}

// UpsertByPhone resolves phone to a contact id, creating the contact when it is new.
func (r *ContactRepository) UpsertByPhone(ctx context.Context, phone string) (string, error) {
	query := `
        INSERT INTO contacts (phone)
        VALUES ($1)
        ON CONFLICT (phone) DO UPDATE SET updated_at = NOW()
        RETURNING id
    `
	var id string
	if err := r.DB.QueryRowContext(ctx, query, phone).Scan(&id); err != nil {
		return "", fmt.Errorf("upsert contact: %w", err)
	}
	return id, nil
}

// MarkOptedOut flags the contact; it reports false when the contact was already opted out.
func (r *ContactRepository) MarkOptedOut(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE contacts SET opted_out = true, opted_out_at = NOW(), updated_at = NOW()
        WHERE id = $1 AND opted_out = false`, id)
	if err != nil {
		return false, fmt.Errorf("mark opted out: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ContactRepository) ClearOptOut(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
        UPDATE contacts SET opted_out = false, opted_out_at = NULL, updated_at = NOW()
        WHERE id = $1 AND opted_out = true`, id)
	if err != nil {
		return false, fmt.Errorf("clear opt out: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id string) (*model.Contact, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id)
	c, err := scanContact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("contact " + id + " not found")
		}
		return nil, err
	}
	return c, nil
}

// Create inserts or refreshes a contact keyed by phone. Used by seeding.
func (r *ContactRepository) Create(ctx context.Context, c *model.Contact) error {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	query := `
        INSERT INTO contacts (phone, first_name, last_name, email, brokerage_name, tags)
        VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6)
        ON CONFLICT (phone) DO UPDATE
        SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
            email = EXCLUDED.email, brokerage_name = EXCLUDED.brokerage_name,
            tags = EXCLUDED.tags, updated_at = NOW()
        RETURNING id, created_at, updated_at
    `
	return r.DB.QueryRowContext(ctx, query,
		c.Phone, c.FirstName, c.LastName, c.Email, c.BrokerageName, pq.Array(c.Tags),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}
