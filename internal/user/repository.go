package user

import (
	"context"
	"database/sql"
	"errors"
)

// Repository is the read side of the user directory. Account CRUD lives in
// the school-management API; the chat service only resolves identities.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// LookupMember returns the display name of userID when it belongs to
// institutionID. ok is false both for unknown users and for users in
// another institution, which keeps tenant boundaries opaque to callers.
func (r *Repository) LookupMember(ctx context.Context, userID, institutionID string) (string, bool, error) {
	var first, last string
	query := `
		SELECT first_name, last_name
		FROM users WHERE id = $1 AND institution_id = $2
	`
	err := r.db.QueryRowContext(ctx, query, userID, institutionID).Scan(&first, &last)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return first + " " + last, true, nil
}

// SearchInInstitution finds up to 10 users by name or email, scoped to one
// institution. Backs the recipient picker in the chat UI.
func (r *Repository) SearchInInstitution(ctx context.Context, institutionID, query string) ([]User, error) {
	q := `
		SELECT id, institution_id, email, first_name, last_name, role
		FROM users
		WHERE institution_id = $1
		  AND (first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2)
		LIMIT 10
	`
	rows, err := r.db.QueryContext(ctx, q, institutionID, "%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.InstitutionID, &u.Email, &u.FirstName, &u.LastName, &u.Role); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
