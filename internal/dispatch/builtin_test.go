package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
)

func TestApplySetting(t *testing.T) {
	cfg := store.DefaultFeatureConfig()

	require.NoError(t, applySetting(&cfg, "ANTI_CALL", "true", []string{"true"}))
	assert.True(t, cfg.AntiCall)

	require.NoError(t, applySetting(&cfg, "ANTI_CALL", "false", []string{"false"}))
	assert.False(t, cfg.AntiCall)

	require.NoError(t, applySetting(&cfg, "WELCOME_MSG", "Hi @user!", []string{"Hi", "@user!"}))
	assert.Equal(t, "Hi @user!", cfg.WelcomeMsg)

	require.NoError(t, applySetting(&cfg, "PREFIX", "!", []string{"!"}))
	assert.Equal(t, "!", cfg.Prefix)

	require.NoError(t, applySetting(&cfg, "WORK_TYPE", "PRIVATE", []string{"PRIVATE"}))
	assert.Equal(t, "private", cfg.WorkType)

	require.NoError(t, applySetting(&cfg, "AUTO_LIKE_EMOJI", "🔥 💚", []string{"🔥", "💚"}))
	assert.Equal(t, []string{"🔥", "💚"}, cfg.AutoLikeEmoji)
}

func TestApplySettingRejectsBadValues(t *testing.T) {
	cfg := store.DefaultFeatureConfig()

	assert.Error(t, applySetting(&cfg, "ANTI_CALL", "maybe", []string{"maybe"}))
	assert.Error(t, applySetting(&cfg, "PREFIX", "!!", []string{"!!"}))
	assert.Error(t, applySetting(&cfg, "WORK_TYPE", "hidden", []string{"hidden"}))
	assert.Error(t, applySetting(&cfg, "AUTO_LIKE_EMOJI", "notemoji", []string{"notemoji"}))
	assert.Error(t, applySetting(&cfg, "NO_SUCH_KEY", "true", []string{"true"}))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "3m 5s", formatDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "2h 0m 9s", formatDuration(2*time.Hour+9*time.Second))
}
