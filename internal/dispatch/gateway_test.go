package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/session"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
)

// fakeStorage serves a fixed feature config and counts stat increments.
type fakeStorage struct {
	mu    sync.Mutex
	cfg   store.FeatureConfig
	stats map[string]int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		// Every side-effect toggle off; routing decisions only.
		cfg:   store.FeatureConfig{Prefix: ".", WorkType: "public"},
		stats: make(map[string]int),
	}
}

func (f *fakeStorage) GetFeatureConfig(ctx context.Context, number string) (store.FeatureConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg, nil
}

func (f *fakeStorage) SaveFeatureConfig(ctx context.Context, number string, cfg store.FeatureConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	return nil
}

func (f *fakeStorage) IncrementStat(ctx context.Context, number string, column string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats[column]++
	return nil
}

func (f *fakeStorage) stat(column string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats[column]
}

type gatewayFixture struct {
	gateway *Gateway
	storage *fakeStorage
	handle  *session.Handle
	runs    *int
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	runs := 0
	registry, err := NewPluginRegistry(&Plugin{
		Name: "ping",
		Run: func(pc *Context) error {
			runs++
			return nil
		},
	})
	require.NoError(t, err)

	storage := newFakeStorage()
	return &gatewayFixture{
		gateway: NewGateway(storage, registry, nil, ""),
		storage: storage,
		handle:  &session.Handle{Number: "628123456789", CreatedAt: time.Now()},
		runs:    &runs,
	}
}

func inboundText(chat types.JID, text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:   chat,
				Sender: types.NewJID("628987654321", types.DefaultUserServer),
			},
			ID: "3EB0TESTMSG",
		},
		Message: &waE2E.Message{Conversation: proto.String(text)},
	}
}

func TestGatewayInvokesPluginExactlyOnce(t *testing.T) {
	f := newGatewayFixture(t)
	chat := types.NewJID("628987654321", types.DefaultUserServer)

	f.gateway.handleMessage(f.handle, inboundText(chat, ".ping"))

	assert.Equal(t, 1, *f.runs)
	assert.Equal(t, 1, f.storage.stat(store.StatCommandsUsed))
	assert.Equal(t, 1, f.storage.stat(store.StatMessagesReceived))
}

func TestGatewayIgnoresUnknownCommand(t *testing.T) {
	f := newGatewayFixture(t)
	chat := types.NewJID("628987654321", types.DefaultUserServer)

	f.gateway.handleMessage(f.handle, inboundText(chat, ".nosuchcmd"))

	assert.Equal(t, 0, *f.runs)
	assert.Equal(t, 0, f.storage.stat(store.StatCommandsUsed))
	assert.Equal(t, 1, f.storage.stat(store.StatMessagesReceived))
}

func TestGatewayStatusNeverReachesPlugins(t *testing.T) {
	f := newGatewayFixture(t)

	// Command-shaped text in the status side channel must not dispatch, and
	// status traffic never counts as an inbound message.
	f.gateway.handleMessage(f.handle, inboundText(types.StatusBroadcastJID, ".ping"))

	assert.Equal(t, 0, *f.runs)
	assert.Equal(t, 0, f.storage.stat(store.StatCommandsUsed))
	assert.Equal(t, 0, f.storage.stat(store.StatMessagesReceived))
}

func TestGatewayPlainTextWithoutResponder(t *testing.T) {
	f := newGatewayFixture(t)
	chat := types.NewJID("628987654321", types.DefaultUserServer)

	f.gateway.handleMessage(f.handle, inboundText(chat, "hello there"))

	assert.Equal(t, 0, *f.runs)
	assert.Equal(t, 1, f.storage.stat(store.StatMessagesReceived))
	assert.Equal(t, 0, f.storage.stat(store.StatMessagesSent))
}

func TestGatewayPrivateModeDropsNonOwner(t *testing.T) {
	f := newGatewayFixture(t)
	f.storage.cfg.WorkType = "private"
	chat := types.NewJID("628987654321", types.DefaultUserServer)

	f.gateway.handleMessage(f.handle, inboundText(chat, ".ping"))

	assert.Equal(t, 0, *f.runs)
}
