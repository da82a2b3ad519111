package session

import (
	"strings"
	"time"

	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/env"
)

// PairStatus values mirror the statuses the pairing endpoint reports.
type PairStatus string

const (
	PairStatusSuccess           PairStatus = "success"
	PairStatusAlreadyConnected  PairStatus = "already_connected"
	PairStatusPairingInProgress PairStatus = "pairing_in_progress"
	PairStatusProcessing        PairStatus = "processing"
)

// PairResult is the outcome of one pairing request.
type PairResult struct {
	Status        PairStatus `json:"status"`
	Number        string     `json:"number"`
	Code          string     `json:"code,omitempty"`
	ExpiresIn     int        `json:"expires_in_seconds,omitempty"`
	UptimeSeconds int64      `json:"uptime_seconds,omitempty"`
}

// StatusResult describes one number for the status endpoint.
type StatusResult struct {
	Number        string `json:"number"`
	Connected     bool   `json:"connected"`
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	HasSession    bool   `json:"has_session"`
}

// BotInfo is one row of the fleet listing: live registry state merged with
// the persisted eligibility record.
type BotInfo struct {
	Number        string     `json:"number"`
	Connected     bool       `json:"connected"`
	State         string     `json:"state"`
	UptimeSeconds int64      `json:"uptime_seconds,omitempty"`
	IsActive      bool       `json:"is_active"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
}

// EventSink receives the non-lifecycle events of a live connection. The
// dispatch gateway implements it; the manager never interprets chat traffic.
type EventSink interface {
	HandleEvent(handle *Handle, evt interface{})
}

// Config carries the lifecycle policy knobs.
type Config struct {
	OwnerNumber        string
	ConnectedMessage   string
	AutoFollowChannels []string
	AutoJoinGroups     []string

	PairingCodeTTL   time.Duration
	PairWaitTimeout  time.Duration
	SocketReadyDelay time.Duration
	PairPhoneTimeout time.Duration

	MaxRetries int
	RetryDelay time.Duration

	ReconcileSpacing time.Duration
}

// ConfigFromEnv loads the policy with the source system's defaults.
func ConfigFromEnv() Config {
	return Config{
		OwnerNumber:        env.GetEnvStringOrDefault("OWNER_NUMBER", ""),
		ConnectedMessage:   env.GetEnvStringOrDefault("SESSION_CONNECTED_MSG", "✅ Connected successfully. Send .ping to test."),
		AutoFollowChannels: splitList(env.GetEnvStringOrDefault("AUTO_FOLLOW_CHANNELS", "")),
		AutoJoinGroups:     splitList(env.GetEnvStringOrDefault("AUTO_JOIN_GROUPS", "")),
		PairingCodeTTL:     env.GetEnvDurationOrDefault("PAIRING_CODE_TTL", 5*time.Minute),
		PairWaitTimeout:    env.GetEnvDurationOrDefault("PAIR_WAIT_TIMEOUT", 10*time.Second),
		SocketReadyDelay:   env.GetEnvDurationOrDefault("SOCKET_READY_DELAY", 5*time.Second),
		PairPhoneTimeout:   env.GetEnvDurationOrDefault("PAIR_PHONE_TIMEOUT", 90*time.Second),
		MaxRetries:         env.GetEnvIntOrDefault("RECONNECT_MAX_RETRIES", 3),
		RetryDelay:         env.GetEnvDurationOrDefault("RECONNECT_RETRY_DELAY", 10*time.Second),
		ReconcileSpacing:   env.GetEnvDurationOrDefault("RECONCILE_SPACING", 5*time.Second),
	}
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
