package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/calebreyes/driveshare-backend/api/responses"
	"github.com/calebreyes/driveshare-backend/pkg/config"
	pkgerrors "github.com/calebreyes/driveshare-backend/pkg/errors"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

type pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DriveShare-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the hard dependencies before reporting ready.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis pinger) http.HandlerFunc {
	deps := []struct {
		name string
		dep  pinger
	}{
		{"database", db},
		{"redis", redis},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-DriveShare-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for _, d := range deps {
			if d.dep == nil {
				continue
			}
			if err := d.dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, d.name+" unavailable"))
				return
			}
		}

		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
