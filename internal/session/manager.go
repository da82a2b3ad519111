package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	wstore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/whatsapp"
)

var (
	ErrPairingInProgress = errors.New("pairing already in progress for this number")
	ErrAlreadyConnected  = errors.New("number already has a live connection")
	ErrNotConnected      = errors.New("number has no live connection")
)

// Manager owns the connection registry, the per-number pairing locks, the
// pairing tickets and the lifecycle policy. All shared mutable state lives in
// its private fields; controllers and loops hold a reference, never globals.
type Manager struct {
	cfg       Config
	store     *store.Store
	container *sqlstore.Container
	registry  *Registry
	sink      EventSink

	pairingMu sync.Mutex
	pairing   map[string]bool

	tickets *cache.Cache

	waitersMu sync.Mutex
	waiters   map[string][]chan string

	limiter *rate.Limiter
}

func NewManager(cfg Config, st *store.Store, container *sqlstore.Container) *Manager {
	spacing := cfg.ReconcileSpacing
	if spacing <= 0 {
		spacing = 5 * time.Second
	}
	return &Manager{
		cfg:       cfg,
		store:     st,
		container: container,
		registry:  NewRegistry(),
		pairing:   make(map[string]bool),
		tickets:   cache.New(cfg.PairingCodeTTL, time.Minute),
		waiters:   make(map[string][]chan string),
		limiter:   rate.NewLimiter(rate.Every(spacing), 1),
	}
}

// SetSink wires the dispatch gateway in after construction; the gateway needs
// the manager's handles, so the two are linked at startup.
func (m *Manager) SetSink(sink EventSink) {
	m.sink = sink
}

func (m *Manager) Registry() *Registry {
	return m.registry
}

func (m *Manager) OwnerNumber() string {
	return m.cfg.OwnerNumber
}

// =============================================================================
// Pairing
// =============================================================================

// Pair implements the pairing entry point: idempotent against live
// connections, exclusive per number, and bounded in how long the caller waits
// for a code before being told the request is still processing.
func (m *Manager) Pair(ctx context.Context, number string, userID *int64) *PairResult {
	result := &PairResult{Number: number}

	if handle := m.registry.Get(number); handle != nil {
		if handle.LoggedIn() {
			result.Status = PairStatusAlreadyConnected
			result.UptimeSeconds = int64(handle.Age().Seconds())
			return result
		}
		result.Status = PairStatusPairingInProgress
		result.UptimeSeconds = int64(handle.Age().Seconds())
		if code, ok := m.tickets.Get(number); ok {
			result.Code, _ = code.(string)
			result.ExpiresIn = int(m.cfg.PairingCodeTTL.Seconds())
		}
		return result
	}

	if !m.tryLock(number) {
		result.Status = PairStatusPairingInProgress
		// The lock holder may have registered its handle by now; report its
		// age so pollers can tell a stalled pairing from a fresh one.
		if handle := m.registry.Get(number); handle != nil {
			if handle.LoggedIn() {
				result.Status = PairStatusAlreadyConnected
			}
			result.UptimeSeconds = int64(handle.Age().Seconds())
		}
		if code, ok := m.tickets.Get(number); ok {
			result.Code, _ = code.(string)
			result.ExpiresIn = int(m.cfg.PairingCodeTTL.Seconds())
		}
		return result
	}

	waiter := m.addWaiter(number)

	go func() {
		defer m.unlock(number)
		if err := m.connect(context.Background(), number, userID, 0); err != nil {
			log.Session(number, "Pair").WithError(err).Error("Failed to establish connection")
			m.failWaiters(number)
		}
	}()

	select {
	case code, ok := <-waiter:
		if !ok || code == "" {
			result.Status = PairStatusProcessing
			return result
		}
		result.Status = PairStatusSuccess
		result.Code = code
		result.ExpiresIn = int(m.cfg.PairingCodeTTL.Seconds())
		return result
	case <-time.After(m.cfg.PairWaitTimeout):
		result.Status = PairStatusProcessing
		return result
	case <-ctx.Done():
		result.Status = PairStatusProcessing
		return result
	}
}

// PairQR is the QR alternative to the pairing-code flow: same registry and
// lock discipline, but the caller receives a scannable PNG instead of a code.
func (m *Manager) PairQR(ctx context.Context, number string, userID *int64) (string, int, error) {
	if handle := m.registry.Get(number); handle != nil {
		if handle.LoggedIn() {
			return "", 0, ErrAlreadyConnected
		}
		return "", 0, ErrPairingInProgress
	}
	if !m.tryLock(number) {
		return "", 0, ErrPairingInProgress
	}
	defer m.unlock(number)

	if err := whatsapp.DeleteDeviceForNumber(ctx, m.container, number); err != nil {
		return "", 0, err
	}

	device := m.container.NewDevice()
	client := whatsapp.NewClient(device)

	handle := &Handle{Number: number, Client: client, CreatedAt: time.Now()}
	handle.fresh.Store(true)
	handle.handlerID = client.AddEventHandler(m.eventHandler(handle))

	qrCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	qrChan, err := client.GetQRChannel(qrCtx)
	if err != nil {
		handle.teardown()
		return "", 0, err
	}

	m.registry.Put(number, handle)
	if err := m.store.UpsertSession(ctx, number, userID); err != nil {
		log.Session(number, "PairQR").WithError(err).Warn("Failed to record session row")
	}

	if err := client.Connect(); err != nil {
		m.dropHandle(number, handle)
		return "", 0, err
	}

	qrImage, timeout, err := whatsapp.GenerateQR(qrCtx, qrChan)
	if err != nil {
		// Same cleanup as a failed Connect; a dead QR attempt must not leave
		// a ghost "connecting" entry blocking later pair calls.
		m.dropHandle(number, handle)
		return "", 0, err
	}
	return "data:image/png;base64," + qrImage, timeout, nil
}

// connect is the shared path for fresh pairing, supervisor retries and
// reconciliation. The caller must hold the number's pairing lock. retries
// carries the supervisor's attempt count across reconnects of the same
// failure episode.
func (m *Manager) connect(ctx context.Context, number string, userID *int64, retries int32) error {
	if m.registry.Has(number) {
		return nil
	}

	entry := log.Session(number, "Connect")

	sess, err := m.store.GetSession(ctx, number)
	if err != nil {
		// Degraded mode: keep operating from in-memory state.
		entry.WithError(err).Warn("Credential store read failed, treating number as fresh")
	}

	var device *wstore.Device
	if sess == nil {
		// No eligibility record: purge any stale working copy before pairing.
		if err := whatsapp.DeleteDeviceForNumber(ctx, m.container, number); err != nil {
			return err
		}
		device = m.container.NewDevice()
	} else {
		restored, err := whatsapp.DeviceForNumber(ctx, m.container, number)
		if err != nil {
			return err
		}
		if restored != nil {
			device = restored
		} else {
			entry.Warn("Session row exists but device credentials are gone, re-pairing required")
			device = m.container.NewDevice()
		}
	}

	client := whatsapp.NewClient(device)
	handle := &Handle{Number: number, Client: client, CreatedAt: time.Now()}
	handle.retries.Store(retries)
	handle.handlerID = client.AddEventHandler(m.eventHandler(handle))

	// Registered before the pairing code exists: the registry reflects
	// "connecting", closing the race with concurrent pairing calls.
	m.registry.Put(number, handle)

	if err := m.store.UpsertSession(ctx, number, userID); err != nil {
		entry.WithError(err).Warn("Failed to record session row")
	}

	if err := client.Connect(); err != nil {
		m.dropHandle(number, handle)
		return err
	}

	m.afterConnect(handle)

	entry.Info("Connection attempt registered")
	return nil
}

// afterConnect decides whether this connection needs a pairing code. Restored
// credentials never issue one, so any callers waiting on a code are released
// right away instead of running out the pair wait window.
func (m *Manager) afterConnect(handle *Handle) {
	if handle.Client.Store.ID == nil {
		handle.fresh.Store(true)
		go m.requestPairingCode(handle)
		return
	}
	m.failWaiters(handle.Number)
}

// dropHandle undoes a registry insertion after a failed attempt.
func (m *Manager) dropHandle(number string, handle *Handle) {
	m.registry.Remove(number, handle)
	handle.teardown()
}

// requestPairingCode waits for the socket's ready sub-state, asks the
// transport for a code and publishes it as a ticket. Failure here is
// non-fatal to the registered connection attempt.
func (m *Manager) requestPairingCode(handle *Handle) {
	time.Sleep(m.cfg.SocketReadyDelay)
	if handle.closed.Load() {
		m.failWaiters(handle.Number)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.PairPhoneTimeout)
	defer cancel()

	code, err := whatsapp.RequestPairingCode(ctx, handle.Client, handle.Number)
	if err != nil {
		log.Session(handle.Number, "PairingCode").WithError(err).Error("Failed to request pairing code")
		m.failWaiters(handle.Number)
		return
	}

	m.tickets.SetDefault(handle.Number, code)
	m.resolveWaiters(handle.Number, code)
	log.Session(handle.Number, "PairingCode").Info("Pairing code issued")

	m.notifyOwner(handle.Number, code)
}

// notifyOwner forwards a fresh pairing code through the owner's own live
// connection when one exists.
func (m *Manager) notifyOwner(number string, code string) {
	if m.cfg.OwnerNumber == "" || m.cfg.OwnerNumber == number {
		return
	}
	owner := m.registry.Get(m.cfg.OwnerNumber)
	if owner == nil || !owner.LoggedIn() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err := whatsapp.SendText(ctx, owner.Client, whatsapp.ComposeJID(number), "🔑 Pairing code: "+code)
	if err != nil {
		log.Session(number, "PairingCode").WithError(err).Warn("Failed to notify owner")
	}
}

// =============================================================================
// Pairing locks and one-shot code waiters
// =============================================================================

func (m *Manager) tryLock(number string) bool {
	m.pairingMu.Lock()
	defer m.pairingMu.Unlock()
	if m.pairing[number] {
		return false
	}
	m.pairing[number] = true
	return true
}

func (m *Manager) unlock(number string) {
	m.pairingMu.Lock()
	defer m.pairingMu.Unlock()
	delete(m.pairing, number)
}

func (m *Manager) addWaiter(number string) chan string {
	waiter := make(chan string, 1)
	m.waitersMu.Lock()
	m.waiters[number] = append(m.waiters[number], waiter)
	m.waitersMu.Unlock()
	return waiter
}

func (m *Manager) resolveWaiters(number string, code string) {
	m.waitersMu.Lock()
	waiters := m.waiters[number]
	delete(m.waiters, number)
	m.waitersMu.Unlock()
	for _, waiter := range waiters {
		waiter <- code
		close(waiter)
	}
}

func (m *Manager) failWaiters(number string) {
	m.waitersMu.Lock()
	waiters := m.waiters[number]
	delete(m.waiters, number)
	m.waitersMu.Unlock()
	for _, waiter := range waiters {
		close(waiter)
	}
}

// =============================================================================
// Teardown surfaces
// =============================================================================

// Disconnect drops the live connection but keeps credentials, so the number
// can be restored later. Idempotent when no connection exists.
func (m *Manager) Disconnect(ctx context.Context, number string) error {
	handle := m.registry.Get(number)
	if handle != nil {
		m.registry.Remove(number, handle)
		handle.teardown()
	}
	if err := m.store.SetActive(ctx, number, false); err != nil {
		log.Session(number, "Disconnect").WithError(err).Warn("Failed to clear active flag")
	}
	log.Session(number, "Disconnect").Info("Connection torn down, credentials kept")
	return nil
}

// DeleteSession is the full purge for one number: live teardown, server-side
// unlink when possible, credential and counter deletion. Feature configuration
// is removed here and only here.
func (m *Manager) DeleteSession(ctx context.Context, number string) error {
	handle := m.registry.Get(number)
	if handle != nil {
		m.registry.Remove(number, handle)
		if handle.LoggedIn() {
			logoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := handle.Client.Logout(logoutCtx); err != nil {
				log.Session(number, "DeleteSession").WithError(err).Warn("Server-side logout failed")
			}
			cancel()
		}
		handle.teardown()
	}

	m.tickets.Delete(number)

	if err := whatsapp.DeleteDeviceForNumber(ctx, m.container, number); err != nil {
		log.Session(number, "DeleteSession").WithError(err).Warn("Failed to delete device credentials")
	}
	if err := m.store.PurgeSessionData(ctx, number); err != nil {
		return err
	}

	log.Session(number, "DeleteSession").Info("Session fully removed")
	return nil
}

// PurgeAll deletes every known session, live or persisted. Admin-only.
func (m *Manager) PurgeAll(ctx context.Context) (int, error) {
	numbers := make(map[string]bool)

	m.registry.Range(func(number string, _ *Handle) {
		numbers[number] = true
	})
	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	for _, sess := range sessions {
		numbers[sess.Number] = true
	}

	count := 0
	for number := range numbers {
		if err := m.DeleteSession(ctx, number); err != nil {
			log.Session(number, "PurgeAll").WithError(err).Error("Failed to delete session")
			continue
		}
		count++
	}
	return count, nil
}

// CloseAll disconnects every live handle in parallel; used on SIGINT.
func (m *Manager) CloseAll(ctx context.Context) error {
	group, _ := errgroup.WithContext(ctx)
	m.registry.Range(func(number string, handle *Handle) {
		group.Go(func() error {
			m.registry.Remove(number, handle)
			handle.teardown()
			log.Session(number, "Shutdown").Info("Connection closed")
			return nil
		})
	})
	return group.Wait()
}

// =============================================================================
// Introspection
// =============================================================================

func (m *Manager) Status(ctx context.Context, number string) (*StatusResult, error) {
	result := &StatusResult{Number: number, State: "disconnected"}

	if handle := m.registry.Get(number); handle != nil {
		result.Connected = handle.LoggedIn()
		result.State = handle.State()
		result.UptimeSeconds = int64(handle.Age().Seconds())
	}

	sess, err := m.store.GetSession(ctx, number)
	if err != nil {
		return result, err
	}
	result.HasSession = sess != nil
	return result, nil
}

// Snapshot merges persisted sessions with live registry state.
func (m *Manager) Snapshot(ctx context.Context) ([]BotInfo, error) {
	infos := make(map[string]*BotInfo)

	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		infos[sess.Number] = &BotInfo{
			Number:        sess.Number,
			State:         "disconnected",
			IsActive:      sess.IsActive,
			LastConnected: sess.LastConnected,
		}
	}

	m.registry.Range(func(number string, handle *Handle) {
		info, ok := infos[number]
		if !ok {
			info = &BotInfo{Number: number}
			infos[number] = info
		}
		info.Connected = handle.LoggedIn()
		info.State = handle.State()
		info.UptimeSeconds = int64(handle.Age().Seconds())
	})

	result := make([]BotInfo, 0, len(infos))
	for _, info := range infos {
		result = append(result, *info)
	}
	return result, nil
}
