package dispatch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/session"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/whatsapp"
)

const eventTimeout = 45 * time.Second

// Storage is the slice of the persistence layer the gateway and its plugins
// touch. *store.Store implements it.
type Storage interface {
	GetFeatureConfig(ctx context.Context, number string) (store.FeatureConfig, error)
	SaveFeatureConfig(ctx context.Context, number string, cfg store.FeatureConfig) error
	IncrementStat(ctx context.Context, number string, column string) error
}

// Gateway routes every non-lifecycle event of a live connection: chat
// commands, the status side channel, calls and group membership changes.
// It implements session.EventSink.
type Gateway struct {
	store   Storage
	plugins *PluginRegistry
	chatbot *Chatbot
	owner   string
}

func NewGateway(st Storage, plugins *PluginRegistry, chatbot *Chatbot, ownerNumber string) *Gateway {
	return &Gateway{
		store:   st,
		plugins: plugins,
		chatbot: chatbot,
		owner:   ownerNumber,
	}
}

func (g *Gateway) HandleEvent(handle *session.Handle, raw interface{}) {
	switch evt := raw.(type) {
	case *events.Message:
		g.handleMessage(handle, evt)
	case *events.CallOffer:
		g.handleCall(handle, evt)
	case *events.GroupInfo:
		g.handleGroupChange(handle, evt)
	}
}

func (g *Gateway) isOwner(handle *session.Handle, info types.MessageInfo) bool {
	if info.IsFromMe {
		return true
	}
	sender := info.Sender.User
	return sender == handle.Number || (g.owner != "" && sender == g.owner)
}

func (g *Gateway) config(ctx context.Context, number string) store.FeatureConfig {
	cfg, err := g.store.GetFeatureConfig(ctx, number)
	if err != nil {
		log.Dispatch(number, "config").WithError(err).Warn("Falling back to default feature config")
		return store.DefaultFeatureConfig()
	}
	return cfg
}

func (g *Gateway) handleMessage(handle *session.Handle, evt *events.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	cfg := g.config(ctx, handle.Number)
	msg := Unwrap(evt.Message)

	if evt.Info.Chat == types.StatusBroadcastJID {
		g.handleStatus(ctx, handle, evt, msg, cfg)
		return
	}

	if err := g.store.IncrementStat(ctx, handle.Number, store.StatMessagesReceived); err != nil {
		log.Dispatch(handle.Number, "message").WithError(err).Debug("Stats increment failed")
	}

	if cfg.ReadMessage && !evt.Info.IsFromMe {
		if err := whatsapp.MarkRead(ctx, handle.Client, evt.Info.Chat, evt.Info.Sender, []types.MessageID{evt.Info.ID}); err != nil {
			log.Dispatch(handle.Number, "message").WithError(err).Debug("Mark read failed")
		}
	}

	content := Extract(msg)
	text := strings.TrimSpace(content.Text)
	if text == "" {
		return
	}

	if cfg.AutoTyping || cfg.AutoRecording {
		_ = whatsapp.ChatPresence(ctx, handle.Client, evt.Info.Chat, true, cfg.AutoRecording)
		defer func() {
			_ = whatsapp.ChatPresence(ctx, handle.Client, evt.Info.Chat, false, cfg.AutoRecording)
		}()
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "."
	}

	isCommand, word, args := ParseCommand(text, prefix)
	if isCommand {
		g.invokeCommand(ctx, handle, evt, cfg, word, args, text)
		return
	}

	if cfg.ChatbotEnabled && g.chatbot != nil && !evt.Info.IsFromMe {
		g.relayChatbot(ctx, handle, evt, text)
	}
}

func (g *Gateway) invokeCommand(ctx context.Context, handle *session.Handle, evt *events.Message, cfg store.FeatureConfig, word string, args []string, text string) {
	plugin := g.plugins.Resolve(word)
	if plugin == nil {
		return
	}

	owner := g.isOwner(handle, evt.Info)
	if cfg.WorkType == "private" && !owner {
		return
	}
	if plugin.OwnerOnly && !owner {
		return
	}

	if err := g.store.IncrementStat(ctx, handle.Number, store.StatCommandsUsed); err != nil {
		log.Dispatch(handle.Number, "command").WithError(err).Debug("Stats increment failed")
	}

	pc := &Context{
		Ctx:       ctx,
		Client:    handle.Client,
		Handle:    handle,
		Store:     g.store,
		Registry:  g.plugins,
		Owner:     g.owner,
		Number:    handle.Number,
		Chat:      evt.Info.Chat,
		Sender:    evt.Info.Sender,
		PushName:  evt.Info.PushName,
		MessageID: evt.Info.ID,
		IsGroup:   evt.Info.IsGroup,
		IsOwner:   owner,
		Command:   word,
		Args:      args,
		Query:     strings.Join(args, " "),
		Config:    cfg,
	}

	// A failing plugin answers the sender and never takes the connection down.
	defer func() {
		if rec := recover(); rec != nil {
			log.Dispatch(handle.Number, "command").
				WithField("command", word).
				Error(fmt.Sprintf("Plugin panicked: %v", rec))
			_ = pc.Reply("❌ Command failed unexpectedly.")
		}
	}()

	if err := plugin.Run(pc); err != nil {
		log.Dispatch(handle.Number, "command").
			WithField("command", word).
			WithError(err).
			Error("Plugin returned an error")
		_ = pc.Reply("❌ " + err.Error())
	}
}

func (g *Gateway) relayChatbot(ctx context.Context, handle *session.Handle, evt *events.Message, text string) {
	answer, err := g.chatbot.Ask(ctx, text)
	if err != nil {
		log.Dispatch(handle.Number, "chatbot").WithError(err).Warn("Responder call failed")
		return
	}
	if answer == "" {
		return
	}
	if _, err := whatsapp.SendText(ctx, handle.Client, evt.Info.Chat, answer); err != nil {
		log.Dispatch(handle.Number, "chatbot").WithError(err).Warn("Failed to relay answer")
		return
	}
	_ = g.store.IncrementStat(ctx, handle.Number, store.StatMessagesSent)
}

// handleStatus applies the status side effects; status events never reach the
// command dispatcher.
func (g *Gateway) handleStatus(ctx context.Context, handle *session.Handle, evt *events.Message, msg *waE2E.Message, cfg store.FeatureConfig) {
	if evt.Info.IsFromMe {
		return
	}

	if cfg.AutoViewStatus {
		if err := whatsapp.MarkRead(ctx, handle.Client, evt.Info.Chat, evt.Info.Sender, []types.MessageID{evt.Info.ID}); err != nil {
			log.Dispatch(handle.Number, "status").WithError(err).Debug("Status view failed")
		}
	}

	if cfg.AutoLikeStatus && len(cfg.AutoLikeEmoji) > 0 {
		emoji := cfg.AutoLikeEmoji[rand.IntN(len(cfg.AutoLikeEmoji))]
		if err := whatsapp.SendReaction(ctx, handle.Client, evt.Info.Chat, evt.Info.Sender, evt.Info.ID, emoji); err != nil {
			log.Dispatch(handle.Number, "status").WithError(err).Debug("Status reaction failed")
		}
	}

	if cfg.AutoStatusReply && cfg.AutoStatusMsg != "" {
		replyTo := types.NewJID(evt.Info.Sender.User, types.DefaultUserServer)
		if _, err := whatsapp.SendText(ctx, handle.Client, replyTo, cfg.AutoStatusMsg); err != nil {
			log.Dispatch(handle.Number, "status").WithError(err).Debug("Status reply failed")
		}
	}
}

func (g *Gateway) handleCall(handle *session.Handle, evt *events.CallOffer) {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	cfg := g.config(ctx, handle.Number)
	if !cfg.AntiCall {
		return
	}

	caller := evt.CallCreator
	if caller.IsEmpty() {
		caller = evt.From
	}

	if err := whatsapp.RejectCall(ctx, handle.Client, caller, evt.CallID); err != nil {
		log.Dispatch(handle.Number, "call").WithError(err).Warn("Failed to reject call")
		return
	}
	log.Dispatch(handle.Number, "call").
		WithField("caller", whatsapp.MaskJID(caller.String())).
		Info("Call rejected")

	if cfg.RejectMsg != "" {
		replyTo := types.NewJID(caller.User, types.DefaultUserServer)
		if _, err := whatsapp.SendText(ctx, handle.Client, replyTo, cfg.RejectMsg); err != nil {
			log.Dispatch(handle.Number, "call").WithError(err).Warn("Failed to send rejection message")
		}
	}
}

func (g *Gateway) handleGroupChange(handle *session.Handle, evt *events.GroupInfo) {
	if len(evt.Join) == 0 && len(evt.Leave) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	cfg := g.config(ctx, handle.Number)
	if !cfg.WelcomeEnabled && !cfg.GoodbyeEnabled {
		return
	}

	groupName, err := whatsapp.GroupName(ctx, handle.Client, evt.JID)
	if err != nil {
		log.Dispatch(handle.Number, "group").WithError(err).Debug("Group name lookup failed")
	}

	if cfg.WelcomeEnabled && cfg.WelcomeMsg != "" {
		for _, member := range evt.Join {
			message := RenderTemplate(cfg.WelcomeMsg, "@"+member.User, groupName)
			if _, err := whatsapp.SendText(ctx, handle.Client, evt.JID, message); err != nil {
				log.Dispatch(handle.Number, "group").WithError(err).Warn("Failed to send welcome")
			}
		}
	}
	if cfg.GoodbyeEnabled && cfg.GoodbyeMsg != "" {
		for _, member := range evt.Leave {
			message := RenderTemplate(cfg.GoodbyeMsg, "@"+member.User, groupName)
			if _, err := whatsapp.SendText(ctx, handle.Client, evt.JID, message); err != nil {
				log.Dispatch(handle.Number, "group").WithError(err).Warn("Failed to send goodbye")
			}
		}
	}
}
