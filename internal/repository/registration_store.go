package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/unclebandit/leadsms-backend/internal/db"
	appErrors "github.com/unclebandit/leadsms-backend/internal/errors"
	"github.com/unclebandit/leadsms-backend/internal/model"
)

// RegistrationTx is the set of writes a registration performs inside one transaction.
type RegistrationTx interface {
	LockToken(ctx context.Context, token string) (*model.RegistrationToken, error)
	CreateAccount(ctx context.Context, a *model.Account) error
	LinkContact(ctx context.Context, contactID string, c *model.Contact) (bool, error)
	CreateRegisteredContact(ctx context.Context, c *model.Contact) error
	MarkTokenUsed(ctx context.Context, token string) error
}

// RegistrationStoreInterface runs fn in a transaction, committing when fn returns nil.
type RegistrationStoreInterface interface {
	WithTx(ctx context.Context, fn func(tx RegistrationTx) error) error
}

type RegistrationStore struct {
	DB *sql.DB
}

func (s *RegistrationStore) WithTx(ctx context.Context, fn func(tx RegistrationTx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin registration: %w", err)
	}
	if err := fn(&registrationTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit registration: %w", err)
	}
	return nil
}

type registrationTx struct {
	tx *sql.Tx
}

// LockToken reads the token row and holds its lock until the transaction ends.
func (t *registrationTx) LockToken(ctx context.Context, token string) (*model.RegistrationToken, error) {
	query := `
        SELECT token, COALESCE(contact_id::text, ''), campaign, used, used_at, created_at
        FROM registration_tokens WHERE token = $1
        FOR UPDATE
    `
	var rt model.RegistrationToken
	err := t.tx.QueryRowContext(ctx, query, token).Scan(
		&rt.Token, &rt.ContactID, &rt.Campaign, &rt.Used, &rt.UsedAt, &rt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("registration token not found")
		}
		return nil, fmt.Errorf("lock token: %w", err)
	}
	return &rt, nil
}

func (t *registrationTx) CreateAccount(ctx context.Context, a *model.Account) error {
	query := `
        INSERT INTO accounts (id, email, first_name, last_name, phone, brokerage_name, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING invited_at
    `
	err := t.tx.QueryRowContext(ctx, query,
		a.ID, a.Email, a.FirstName, a.LastName, a.Phone, a.BrokerageName, a.Status,
	).Scan(&a.InvitedAt)
	if db.IsUniqueViolation(err) {
		return appErrors.EmailRegistered(a.Email)
	}
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// LinkContact updates the invited contact in place. It reports false when the contact no longer exists.
func (t *registrationTx) LinkContact(ctx context.Context, contactID string, c *model.Contact) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
        UPDATE contacts
        SET first_name = $1, last_name = $2, email = $3, brokerage_name = $4,
            phone = COALESCE(phone, NULLIF($5, '')),
            registered = true, user_id = $6, updated_at = NOW()
        WHERE id = $7`,
		c.FirstName, c.LastName, c.Email, c.BrokerageName, c.Phone, c.UserID, contactID,
	)
	if err != nil {
		return false, fmt.Errorf("link contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.ID = contactID
	}
	return n == 1, nil
}

// CreateRegisteredContact inserts a registered contact, merging into an existing one with the same phone.
func (t *registrationTx) CreateRegisteredContact(ctx context.Context, c *model.Contact) error {
	query := `
        INSERT INTO contacts (phone, first_name, last_name, email, brokerage_name, registered, user_id)
        VALUES (NULLIF($1, ''), $2, $3, $4, $5, true, $6)
        ON CONFLICT (phone) DO UPDATE
        SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
            email = EXCLUDED.email, brokerage_name = EXCLUDED.brokerage_name,
            registered = true, user_id = EXCLUDED.user_id, updated_at = NOW()
        RETURNING id
    `
	if err := t.tx.QueryRowContext(ctx, query,
		c.Phone, c.FirstName, c.LastName, c.Email, c.BrokerageName, c.UserID,
	).Scan(&c.ID); err != nil {
		return fmt.Errorf("create registered contact: %w", err)
	}
	return nil
}

// MarkTokenUsed consumes the token inside a savepoint so a failure here
// does not abort the rest of the transaction.
func (t *registrationTx) MarkTokenUsed(ctx context.Context, token string) error {
	if _, err := t.tx.ExecContext(ctx, `SAVEPOINT mark_used`); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	err := t.markUsed(ctx, token)
	if err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT mark_used`); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		return err
	}
	_, err = t.tx.ExecContext(ctx, `RELEASE SAVEPOINT mark_used`)
	return err
}

func (t *registrationTx) markUsed(ctx context.Context, token string) error {
	res, err := t.tx.ExecContext(ctx, `
        UPDATE registration_tokens SET used = true, used_at = NOW()
        WHERE token = $1 AND used = false`, token)
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return appErrors.TokenUsed()
	}
	return nil
}
