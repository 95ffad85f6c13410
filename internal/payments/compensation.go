package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/calebreyes/driveshare-backend/pkg/logger"
)

// Compensator releases payment holds that lost their purpose, such as an
// authorization whose booking lost the availability race or a session that
// swapped vehicles after authorizing. Release failures are logged for manual
// follow-up and never surface to the caller; the primary outcome already
// happened and must govern the response.
type Compensator struct {
	provider Provider
	logg     *logger.Logger
}

func NewCompensator(provider Provider, logg *logger.Logger) (*Compensator, error) {
	if provider == nil {
		return nil, errors.New("payment provider is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Compensator{provider: provider, logg: logg}, nil
}

// Release voids the hold behind authorizationID. Returns true when the hold
// was released (or already gone), false when the cancel failed.
func (c *Compensator) Release(ctx context.Context, authorizationID, reason string) bool {
	if strings.TrimSpace(authorizationID) == "" {
		return true
	}

	ctx = c.logg.WithFields(ctx, map[string]any{
		"authorization_id": authorizationID,
		"release_reason":   reason,
		"provider":         c.provider.Name(),
	})

	if err := c.provider.Cancel(ctx, authorizationID); err != nil {
		c.logg.Error(ctx, "payment hold release failed", err)
		return false
	}

	c.logg.Info(ctx, "payment hold released")
	return true
}
