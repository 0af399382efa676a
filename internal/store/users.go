package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"meetrecap/internal/models"

	"github.com/google/uuid"
)

// UpsertUserByEmail creates the user when missing and refreshes the name.
func (s *Service) UpsertUserByEmail(ctx context.Context, email, name string) (*models.User, error) {
	email = strings.ToLower(email)
	existing, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		if name != "" && name != existing.Name {
			if _, err := s.db.ExecContext(ctx, `UPDATE users SET name = ? WHERE id = ?`, name, existing.ID); err != nil {
				return nil, fmt.Errorf("update user name: %w", err)
			}
			existing.Name = name
		}
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	u := models.User{ID: uuid.NewString(), Email: email, Name: name}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail looks a user up by (lowercased) email.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name FROM users WHERE email = ?`,
		strings.ToLower(email)).Scan(&u.ID, &u.Email, &u.Name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
