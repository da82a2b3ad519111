package store

import (
	"context"
	"database/sql"
	"encoding/json"
)

// FeatureConfig holds the per-number behavior toggles. JSON keys keep the
// SCREAMING_CASE names the dashboard and chat commands already use.
type FeatureConfig struct {
	AutoTyping      bool     `json:"AUTO_TYPING"`
	AutoRecording   bool     `json:"AUTO_RECORDING"`
	ReadMessage     bool     `json:"READ_MESSAGE"`
	AntiCall        bool     `json:"ANTI_CALL"`
	RejectMsg       string   `json:"REJECT_MSG"`
	AutoViewStatus  bool     `json:"AUTO_VIEW_STATUS"`
	AutoLikeStatus  bool     `json:"AUTO_LIKE_STATUS"`
	AutoStatusReply bool     `json:"AUTO_STATUS_REPLY"`
	AutoStatusMsg   string   `json:"AUTO_STATUS_MSG"`
	AutoLikeEmoji   []string `json:"AUTO_LIKE_EMOJI"`
	ChatbotEnabled  bool     `json:"CHATBOT_ENABLED"`
	WelcomeEnabled  bool     `json:"WELCOME_ENABLED"`
	GoodbyeEnabled  bool     `json:"GOODBYE_ENABLED"`
	WelcomeMsg      string   `json:"WELCOME_MSG"`
	GoodbyeMsg      string   `json:"GOODBYE_MSG"`
	Prefix          string   `json:"PREFIX"`
	WorkType        string   `json:"WORK_TYPE"`
}

// DefaultFeatureConfig is applied lazily the first time a number's config is
// read.
func DefaultFeatureConfig() FeatureConfig {
	return FeatureConfig{
		AutoTyping:      false,
		AutoRecording:   false,
		ReadMessage:     false,
		AntiCall:        false,
		RejectMsg:       "📵 Sorry, calls are not allowed on this number.",
		AutoViewStatus:  true,
		AutoLikeStatus:  true,
		AutoStatusReply: false,
		AutoStatusMsg:   "Your status has been viewed automatically.",
		AutoLikeEmoji:   []string{"💚", "❤️", "🔥", "😍", "💜"},
		ChatbotEnabled:  false,
		WelcomeEnabled:  false,
		GoodbyeEnabled:  false,
		WelcomeMsg:      "👋 Welcome @user to @group!",
		GoodbyeMsg:      "😔 Goodbye @user, we will miss you in @group.",
		Prefix:          ".",
		WorkType:        "public",
	}
}

// GetFeatureConfig returns the stored config, defaulting and persisting it on
// first read. Reads are fronted by a short TTL cache since the dispatcher
// consults the config on every inbound event.
func (s *Store) GetFeatureConfig(ctx context.Context, number string) (FeatureConfig, error) {
	if cached, ok := s.cfgCache.Get(number); ok {
		if cfg, ok := cached.(FeatureConfig); ok {
			return cfg, nil
		}
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT config FROM wa_feature_configs WHERE number = $1`, number).Scan(&raw)
	if err == sql.ErrNoRows {
		cfg := DefaultFeatureConfig()
		if err := s.SaveFeatureConfig(ctx, number, cfg); err != nil {
			return cfg, err
		}
		return cfg, nil
	}
	if err != nil {
		return DefaultFeatureConfig(), err
	}

	cfg := DefaultFeatureConfig()
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return DefaultFeatureConfig(), err
	}
	s.cfgCache.SetDefault(number, cfg)
	return cfg, nil
}

func (s *Store) SaveFeatureConfig(ctx context.Context, number string, cfg FeatureConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO wa_feature_configs (number, config)
		VALUES ($1, $2)
		ON CONFLICT (number) DO UPDATE SET
			config = EXCLUDED.config,
			updated_at = CURRENT_TIMESTAMP`,
		number, raw)
	if err != nil {
		return err
	}
	s.cfgCache.SetDefault(number, cfg)
	return nil
}
