package internal

import (
	"context"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/session"
	"github.com/gdbrns/go-whatsapp-automation-gateway/internal/store"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/env"
	"github.com/gdbrns/go-whatsapp-automation-gateway/pkg/log"
)

// Routines registers the periodic jobs: the reconciliation loop that restores
// dropped connections and a health beat that reports fleet state.
func Routines(c *cron.Cron, manager *session.Manager, st *store.Store) {
	if !env.GetEnvBoolOrDefault("CRON_ENABLED", true) {
		log.Print(nil).Warn("Cron routines disabled by configuration")
		return
	}

	reconcileSpec := env.GetEnvStringOrDefault("CRON_RECONCILE_SPEC", "0 */30 * * * *")
	if _, err := c.AddFunc(reconcileSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		manager.Reconcile(ctx)
	}); err != nil {
		log.Print(nil).WithError(err).Fatal("Failed to register reconcile routine")
	}

	healthSpec := env.GetEnvStringOrDefault("CRON_HEALTH_SPEC", "0 */5 * * * *")
	if _, err := c.AddFunc(healthSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		entry := log.Print(nil).WithField("connections", manager.Registry().Len())
		if err := st.Ping(ctx); err != nil {
			entry.WithError(err).Error("Health beat: database unreachable")
			return
		}
		entry.Debug("Health beat")
	}); err != nil {
		log.Print(nil).WithError(err).Fatal("Failed to register health routine")
	}

	c.Start()
	log.Print(nil).Info("Cron routines started")
}
