package dispatch

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/whatsapp"
)

// BuiltinPlugins returns the gateway's own command set. External feature
// packs append to this slice before the registry is built.
func BuiltinPlugins() []*Plugin {
	return []*Plugin{
		{
			Name:        "ping",
			Aliases:     []string{"speed"},
			Description: "Measure the reply round trip",
			Run: func(pc *Context) error {
				started := time.Now()
				if err := pc.React("⚡"); err != nil {
					return err
				}
				return pc.Reply(fmt.Sprintf("🏓 Pong! %d ms", time.Since(started).Milliseconds()))
			},
		},
		{
			Name:        "uptime",
			Aliases:     []string{"runtime"},
			Description: "Show how long this number has been connected",
			Run: func(pc *Context) error {
				return pc.Reply("⏱ Connected for " + formatDuration(pc.Handle.Age()))
			},
		},
		{
			Name:        "menu",
			Aliases:     []string{"help", "commands"},
			Description: "List available commands",
			Run: func(pc *Context) error {
				var b strings.Builder
				b.WriteString("📋 Commands:\n")
				for _, plugin := range pc.Registry.List() {
					b.WriteString(pc.Config.Prefix + plugin.Name)
					if plugin.Description != "" {
						b.WriteString(" — " + plugin.Description)
					}
					b.WriteString("\n")
				}
				return pc.Reply(b.String())
			},
		},
		{
			Name:        "settings",
			Aliases:     []string{"config"},
			Description: "Show this number's feature toggles",
			OwnerOnly:   true,
			Run: func(pc *Context) error {
				cfg := pc.Config
				var b strings.Builder
				b.WriteString("⚙️ Settings:\n")
				b.WriteString(settingLine("AUTO_TYPING", cfg.AutoTyping))
				b.WriteString(settingLine("AUTO_RECORDING", cfg.AutoRecording))
				b.WriteString(settingLine("READ_MESSAGE", cfg.ReadMessage))
				b.WriteString(settingLine("ANTI_CALL", cfg.AntiCall))
				b.WriteString(settingLine("AUTO_VIEW_STATUS", cfg.AutoViewStatus))
				b.WriteString(settingLine("AUTO_LIKE_STATUS", cfg.AutoLikeStatus))
				b.WriteString(settingLine("AUTO_STATUS_REPLY", cfg.AutoStatusReply))
				b.WriteString(settingLine("CHATBOT_ENABLED", cfg.ChatbotEnabled))
				b.WriteString(settingLine("WELCOME_ENABLED", cfg.WelcomeEnabled))
				b.WriteString(settingLine("GOODBYE_ENABLED", cfg.GoodbyeEnabled))
				b.WriteString("• WORK_TYPE: " + cfg.WorkType + "\n")
				b.WriteString("• PREFIX: " + cfg.Prefix + "\n")
				return pc.Reply(b.String())
			},
		},
		{
			Name:        "set",
			Aliases:     []string{"setconfig"},
			Description: "Change a feature toggle, e.g. .set ANTI_CALL true",
			OwnerOnly:   true,
			Run: func(pc *Context) error {
				if len(pc.Args) < 2 {
					return pc.Reply("Usage: " + pc.Config.Prefix + "set <KEY> <value>")
				}
				cfg := pc.Config
				key := strings.ToUpper(pc.Args[0])
				value := strings.Join(pc.Args[1:], " ")
				if err := applySetting(&cfg, key, value, pc.Args[1:]); err != nil {
					return pc.Reply("❌ " + err.Error())
				}
				if err := pc.Store.SaveFeatureConfig(pc.Ctx, pc.Number, cfg); err != nil {
					return err
				}
				return pc.Reply("✅ " + key + " updated")
			},
		},
		{
			Name:        "react",
			Description: "React to your message, e.g. .react 🔥",
			Run: func(pc *Context) error {
				if len(pc.Args) == 0 {
					return pc.Reply("Usage: " + pc.Config.Prefix + "react <emoji>")
				}
				if err := whatsapp.ValidateEmoji(pc.Args[0]); err != nil {
					return pc.Reply("❌ " + err.Error())
				}
				return pc.React(pc.Args[0])
			},
		},
		{
			Name:        "owner",
			Description: "Show the owner contact",
			Run: func(pc *Context) error {
				owner := pc.Owner
				if owner == "" {
					return pc.Reply("No owner configured.")
				}
				return pc.Reply("👑 Owner: wa.me/" + owner)
			},
		},
	}
}

func settingLine(key string, value bool) string {
	return "• " + key + ": " + strconv.FormatBool(value) + "\n"
}

func applySetting(cfg *store.FeatureConfig, key string, value string, parts []string) error {
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return false, fmt.Errorf("%s expects true or false", key)
		}
		return b, nil
	}

	switch key {
	case "AUTO_TYPING":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.AutoTyping = b
	case "AUTO_RECORDING":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.AutoRecording = b
	case "READ_MESSAGE":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.ReadMessage = b
	case "ANTI_CALL":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.AntiCall = b
	case "AUTO_VIEW_STATUS":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.AutoViewStatus = b
	case "AUTO_LIKE_STATUS":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.AutoLikeStatus = b
	case "AUTO_STATUS_REPLY":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.AutoStatusReply = b
	case "CHATBOT_ENABLED":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.ChatbotEnabled = b
	case "WELCOME_ENABLED":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.WelcomeEnabled = b
	case "GOODBYE_ENABLED":
		b, err := parseBool()
		if err != nil {
			return err
		}
		cfg.GoodbyeEnabled = b
	case "REJECT_MSG":
		cfg.RejectMsg = value
	case "AUTO_STATUS_MSG":
		cfg.AutoStatusMsg = value
	case "WELCOME_MSG":
		cfg.WelcomeMsg = value
	case "GOODBYE_MSG":
		cfg.GoodbyeMsg = value
	case "AUTO_LIKE_EMOJI":
		for _, emoji := range parts {
			if err := whatsapp.ValidateEmoji(emoji); err != nil {
				return fmt.Errorf("%q is not a single emoji", emoji)
			}
		}
		cfg.AutoLikeEmoji = parts
	case "PREFIX":
		if len([]rune(value)) != 1 {
			return fmt.Errorf("PREFIX expects a single character")
		}
		cfg.Prefix = value
	case "WORK_TYPE":
		lower := strings.ToLower(value)
		if lower != "public" && lower != "private" {
			return fmt.Errorf("WORK_TYPE expects public or private")
		}
		cfg.WorkType = lower
	default:
		return fmt.Errorf("unknown setting %s", key)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
