package store

import (
	"context"
	"database/sql"
	"time"
)

// Session is the eligibility record for one number: it existing means the
// number may be restored without re-pairing, not that a live connection exists.
type Session struct {
	Number        string     `json:"number"`
	UserID        *int64     `json:"user_id,omitempty"`
	DeviceJID     string     `json:"device_jid,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
}

// UpsertSession records a number at pairing time. An existing row keeps its
// owner unless a new one is supplied.
func (s *Store) UpsertSession(ctx context.Context, number string, userID *int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO wa_sessions (number, user_id)
		VALUES ($1, $2)
		ON CONFLICT (number) DO UPDATE SET
			user_id = COALESCE(EXCLUDED.user_id, wa_sessions.user_id),
			updated_at = CURRENT_TIMESTAMP`,
		number, userID)
	return err
}

// SaveDeviceJID persists the linked device identity after a successful pair
// and flips the number active.
func (s *Store) SaveDeviceJID(ctx context.Context, number string, deviceJID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO wa_sessions (number, device_jid, is_active, last_connected)
		VALUES ($1, $2, TRUE, CURRENT_TIMESTAMP)
		ON CONFLICT (number) DO UPDATE SET
			device_jid = EXCLUDED.device_jid,
			is_active = TRUE,
			last_connected = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP`,
		number, deviceJID)
	return err
}

func (s *Store) SetActive(ctx context.Context, number string, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE wa_sessions SET
			is_active = $2,
			updated_at = CURRENT_TIMESTAMP
		WHERE number = $1`,
		number, active)
	return err
}

// TouchConnected bumps last_connected for uptime bookkeeping.
func (s *Store) TouchConnected(ctx context.Context, number string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE wa_sessions SET
			last_connected = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE number = $1`,
		number)
	return err
}

// GetSession returns nil without error when the number is unknown.
func (s *Store) GetSession(ctx context.Context, number string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT number, user_id, device_jid, is_active, created_at, updated_at, last_connected
		FROM wa_sessions WHERE number = $1`, number)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT number, user_id, device_jid, is_active, created_at, updated_at, last_connected
		FROM wa_sessions ORDER BY created_at DESC`)
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

// ListActiveNumbers feeds the reconciliation loop: every number that should
// currently hold a live connection.
func (s *Store) ListActiveNumbers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT number FROM wa_sessions WHERE is_active = TRUE ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, err
		}
		numbers = append(numbers, number)
	}
	return numbers, rows.Err()
}

// DeleteSession removes only the eligibility record. Feature configuration
// survives so a re-paired number keeps its toggles.
func (s *Store) DeleteSession(ctx context.Context, number string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM wa_sessions WHERE number = $1`, number)
	return err
}

// PurgeSessionData is the full-delete path: session, config and counters.
func (s *Store) PurgeSessionData(ctx context.Context, number string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wa_sessions WHERE number = $1`, number); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM wa_feature_configs WHERE number = $1`, number); err != nil {
		return err
	}
	s.cfgCache.Delete(number)
	_, err := s.db.ExecContext(ctx, `DELETE FROM wa_usage_stats WHERE number = $1`, number)
	return err
}

// OwnsNumber reports whether the number's session row belongs to the user.
func (s *Store) OwnsNumber(ctx context.Context, userID int64, number string) (bool, error) {
	var owner sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM wa_sessions WHERE number = $1`, number).Scan(&owner)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return owner.Valid && owner.Int64 == userID, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var userID sql.NullInt64
	var deviceJID sql.NullString
	var updatedAt, lastConnected sql.NullTime
	err := row.Scan(&sess.Number, &userID, &deviceJID, &sess.IsActive, &sess.CreatedAt, &updatedAt, &lastConnected)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		sess.UserID = &userID.Int64
	}
	if deviceJID.Valid {
		sess.DeviceJID = deviceJID.String
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		sess.UpdatedAt = &t
	}
	if lastConnected.Valid {
		t := lastConnected.Time
		sess.LastConnected = &t
	}
	return &sess, nil
}
