package dispatch

import (
	"context"
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/session"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/whatsapp"
)

// Plugin is one chat command. Plugins are registered explicitly at startup;
// there is no import-side-effect registration.
type Plugin struct {
	Name        string
	Aliases     []string
	Description string
	OwnerOnly   bool
	Run         func(pc *Context) error
}

// Context is the bundle passed to every plugin invocation.
type Context struct {
	Ctx      context.Context
	Client   *whatsmeow.Client
	Handle   *session.Handle
	Store    Storage
	Registry *PluginRegistry
	Owner    string

	Number    string
	Chat      types.JID
	Sender    types.JID
	PushName  string
	MessageID string
	IsGroup   bool
	IsOwner   bool

	Command string
	Args    []string
	Query   string
	Config  store.FeatureConfig
}

// Reply sends text back into the originating chat.
func (pc *Context) Reply(text string) error {
	_, err := whatsapp.SendText(pc.Ctx, pc.Client, pc.Chat, text)
	return err
}

// React reacts to the invoking message.
func (pc *Context) React(emoji string) error {
	return whatsapp.SendReaction(pc.Ctx, pc.Client, pc.Chat, pc.Sender, pc.MessageID, emoji)
}

// PluginRegistry is the immutable lookup table over primary names and
// aliases, built once at startup.
type PluginRegistry struct {
	lookup  map[string]*Plugin
	ordered []*Plugin
}

// NewPluginRegistry validates that every name and alias is unique before any
// dispatch happens; a collision is a startup error, not a silent first-match.
func NewPluginRegistry(plugins ...*Plugin) (*PluginRegistry, error) {
	registry := &PluginRegistry{lookup: make(map[string]*Plugin)}
	for _, plugin := range plugins {
		if strings.TrimSpace(plugin.Name) == "" {
			return nil, fmt.Errorf("plugin with empty name")
		}
		if plugin.Run == nil {
			return nil, fmt.Errorf("plugin %q has no run function", plugin.Name)
		}
		words := append([]string{plugin.Name}, plugin.Aliases...)
		for _, word := range words {
			key := strings.ToLower(strings.TrimSpace(word))
			if existing, ok := registry.lookup[key]; ok {
				return nil, fmt.Errorf("command alias %q registered by both %q and %q", key, existing.Name, plugin.Name)
			}
			registry.lookup[key] = plugin
		}
		registry.ordered = append(registry.ordered, plugin)
	}
	return registry, nil
}

// Resolve matches a command word against names and aliases.
func (r *PluginRegistry) Resolve(word string) *Plugin {
	return r.lookup[strings.ToLower(word)]
}

// List returns the plugins in registration order, for the menu command.
func (r *PluginRegistry) List() []*Plugin {
	return r.ordered
}
