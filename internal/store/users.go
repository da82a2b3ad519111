package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

type User struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	FullName  string     `json:"full_name,omitempty"`
	Role      string     `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

func (s *Store) CreateUser(ctx context.Context, username, password, email, fullName string) (*User, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM wa_users WHERE username = $1)`, username).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	if fullName == "" {
		fullName = username
	}

	user := &User{Username: username, Email: email, FullName: fullName, Role: "user"}
	err = s.db.QueryRowContext(ctx, `INSERT INTO wa_users (username, email, full_name, password_hash)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		RETURNING id, created_at`,
		username, email, fullName, string(hash)).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) AuthenticateUser(ctx context.Context, username, password string) (*User, error) {
	var user User
	var email, fullName sql.NullString
	var lastLogin sql.NullTime
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT id, username, email, full_name, password_hash, role, created_at, last_login
		FROM wa_users WHERE username = $1`, username).
		Scan(&user.ID, &user.Username, &email, &fullName, &hash, &user.Role, &user.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	user.Email = email.String
	user.FullName = fullName.String
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}

	_, _ = s.db.ExecContext(ctx, `UPDATE wa_users SET last_login = CURRENT_TIMESTAMP WHERE id = $1`, user.ID)
	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	var user User
	var email, fullName sql.NullString
	var lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT id, username, email, full_name, role, created_at, last_login
		FROM wa_users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Username, &email, &fullName, &user.Role, &user.CreatedAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	user.Email = email.String
	user.FullName = fullName.String
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	return &user, nil
}

// CreateWebSession stores a browser session token for seven days.
func (s *Store) CreateWebSession(ctx context.Context, userID int64, token, ipAddress, userAgent string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO wa_web_sessions (token, user_id, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP + INTERVAL '7 days')`,
		token, userID, ipAddress, userAgent)
	return err
}

// ValidateWebSession resolves an unexpired token to its user, nil when the
// token is unknown or expired.
func (s *Store) ValidateWebSession(ctx context.Context, token string) (*User, error) {
	var userID int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM wa_web_sessions
		WHERE token = $1 AND expires_at > CURRENT_TIMESTAMP`, token).Scan(&userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func (s *Store) DeleteWebSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM wa_web_sessions WHERE token = $1`, token)
	return err
}

// UserSessions lists the numbers owned by a user for the dashboard.
func (s *Store) UserSessions(ctx context.Context, userID int64) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT number, user_id, device_jid, is_active, created_at, updated_at, last_connected
		FROM wa_sessions WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}
