package session

import (
	"context"

	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
)

// Reconcile compares the persisted "should be active" set against the live
// registry and restores every missing connection, spaced by the rate limiter
// to avoid a thundering herd against the transport.
func (m *Manager) Reconcile(ctx context.Context) {
	numbers, err := m.store.ListActiveNumbers(ctx)
	if err != nil {
		log.Session("", "Reconcile").WithError(err).Error("Failed to list active numbers")
		return
	}

	restored := 0
	for _, number := range numbers {
		if m.registry.Has(number) {
			continue
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return
		}
		if !m.tryLock(number) {
			continue
		}
		err := m.connect(ctx, number, nil, 0)
		m.unlock(number)
		if err != nil {
			log.Session(number, "Reconcile").WithError(err).Error("Failed to restore connection")
			continue
		}
		restored++
	}

	if restored > 0 {
		log.Session("", "Reconcile").
			WithField("restored", restored).
			WithField("total_active", len(numbers)).
			Info("Reconciliation pass complete")
	}
}
