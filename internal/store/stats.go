package store

import (
	"context"
	"fmt"
)

const (
	StatMessagesReceived = "messages_received"
	StatMessagesSent     = "messages_sent"
	StatCommandsUsed     = "commands_used"
)

var statColumns = map[string]bool{
	StatMessagesReceived: true,
	StatMessagesSent:     true,
	StatCommandsUsed:     true,
}

// IncrementStat bumps one usage counter for today's row. The column name is
// checked against a whitelist since it is interpolated into the statement.
func (s *Store) IncrementStat(ctx context.Context, number string, column string) error {
	if !statColumns[column] {
		return fmt.Errorf("unknown stat column: %s", column)
	}
	query := fmt.Sprintf(`INSERT INTO wa_usage_stats (number, day, %s)
		VALUES ($1, CURRENT_DATE, 1)
		ON CONFLICT (number, day) DO UPDATE SET %s = wa_usage_stats.%s + 1`,
		column, column, column)
	_, err := s.db.ExecContext(ctx, query, number)
	return err
}

type UsageTotals struct {
	Number           string `json:"number,omitempty"`
	MessagesReceived int64  `json:"messages_received"`
	MessagesSent     int64  `json:"messages_sent"`
	CommandsUsed     int64  `json:"commands_used"`
}

// UsageSummary sums the counters over all days for one number.
func (s *Store) UsageSummary(ctx context.Context, number string) (UsageTotals, error) {
	totals := UsageTotals{Number: number}
	err := s.db.QueryRowContext(ctx, `SELECT
			COALESCE(SUM(messages_received), 0),
			COALESCE(SUM(messages_sent), 0),
			COALESCE(SUM(commands_used), 0)
		FROM wa_usage_stats WHERE number = $1`, number).
		Scan(&totals.MessagesReceived, &totals.MessagesSent, &totals.CommandsUsed)
	return totals, err
}

type GlobalStats struct {
	TotalSessions  int64       `json:"total_sessions"`
	ActiveSessions int64       `json:"active_sessions"`
	TotalUsers     int64       `json:"total_users"`
	Usage          UsageTotals `json:"usage"`
}

// AdminStats aggregates the dashboard counters in one round trip per table.
func (s *Store) AdminStats(ctx context.Context) (GlobalStats, error) {
	var stats GlobalStats
	err := s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			(SELECT COUNT(*) FROM wa_users)
		FROM wa_sessions`).
		Scan(&stats.TotalSessions, &stats.ActiveSessions, &stats.TotalUsers)
	if err != nil {
		return stats, err
	}
	err = s.db.QueryRowContext(ctx, `SELECT
			COALESCE(SUM(messages_received), 0),
			COALESCE(SUM(messages_sent), 0),
			COALESCE(SUM(commands_used), 0)
		FROM wa_usage_stats`).
		Scan(&stats.Usage.MessagesReceived, &stats.Usage.MessagesSent, &stats.Usage.CommandsUsed)
	return stats, err
}
