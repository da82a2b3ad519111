package internal

import (
	"context"
	"time"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/session"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/env"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
)

// Startup schedules the boot-time restore pass. The delay lets the HTTP
// server come up first so health checks answer while connections are still
// being re-established.
func Startup(manager *session.Manager, st *store.Store) {
	delay := env.GetEnvDurationOrDefault("RECONCILE_STARTUP_DELAY", 10*time.Second)

	go func() {
		ctx := context.Background()

		numbers, err := st.ListActiveNumbers(ctx)
		if err != nil {
			log.Print(nil).WithError(err).Error("Startup scan of persisted sessions failed")
		} else {
			log.Print(nil).
				WithField("persisted_active", len(numbers)).
				Info("Startup restore scheduled")
		}

		time.Sleep(delay)
		manager.Reconcile(ctx)
	}()
}
