package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/dharsanguruparan/IngestDrop/internal/model"
)

const contactColumns = `id, COALESCE(staging_id, ''), user_id, email, first_name, last_name, company, created_at`

func scanContact(row pgx.Row) (*model.Contact, error) {
	var c model.Contact
	err := row.Scan(&c.ID, &c.StagingID, &c.UserID, &c.Email, &c.FirstName, &c.LastName, &c.Company, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContacts returns the user's contacts ordered by email.
func (r *Repository) ListContacts(ctx context.Context, userID string) ([]model.Contact, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE user_id=$1 ORDER BY email`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "repository: list contacts")
	}
	defer rows.Close()
	out := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, eris.Wrap(err, "repository: scan contact")
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: list contacts")
	}
	return out, nil
}

// GetContactByEmail looks up a contact by its normalized email.
func (r *Repository) GetContactByEmail(ctx context.Context, userID, email string) (*model.Contact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE user_id=$1 AND email=$2`, userID, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "repository: contact %s", email)
		}
		return nil, eris.Wrap(err, "repository: select contact")
	}
	return c, nil
}

// ContactEmails returns the set of the user's contact emails.
func (r *Repository) ContactEmails(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `SELECT email FROM contacts WHERE user_id=$1`, userID)
	if err != nil {
		return nil, eris.Wrap(err, "repository: contact emails")
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, eris.Wrap(err, "repository: scan contact email")
		}
		out[email] = true
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "repository: contact emails")
	}
	return out, nil
}
