package payments

import (
	"fmt"
	"strings"

	"github.com/calebreyes/driveshare-backend/pkg/config"
	"github.com/calebreyes/driveshare-backend/pkg/logger"
	"github.com/calebreyes/driveshare-backend/pkg/square"
	pkgstripe "github.com/calebreyes/driveshare-backend/pkg/stripe"
)

// ProviderDeps carries the initialized processor clients. Only the client for
// the configured provider needs to be non-nil.
type ProviderDeps struct {
	Stripe *pkgstripe.Client
	Square *square.Client
}

// NewProvider selects the payment adapter named by configuration.
func NewProvider(cfg config.PaymentsConfig, squareCfg config.SquareConfig, deps ProviderDeps, logg *logger.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "stripe":
		return NewStripeProvider(NewStripeIntentClient(deps.Stripe), cfg.Timeout, logg)
	case "square":
		if deps.Square == nil {
			return nil, fmt.Errorf("square client is required for provider %q", cfg.Provider)
		}
		return NewSquareProvider(deps.Square, squareCfg.LocationID, cfg.Timeout, logg)
	default:
		return nil, fmt.Errorf("unsupported payments provider %q", cfg.Provider)
	}
}
