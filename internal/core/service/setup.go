package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"
)

var (
	ErrCannotConnect = errors.New("cannot connect")
	ErrInvalidAuth   = errors.New("invalid auth")
)

// ValidateTablet checks the tablet answers /api/status and reports itself
// online. Any failure is a domain.ErrNotReady.
func ValidateTablet(ctx context.Context, client multitek.Client) error {
	status, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("%w: cannot connect to tablet at %s: %w", domain.ErrNotReady, client.BaseURL(), err)
	}
	if !status.Online {
		return fmt.Errorf("%w: tablet server at %s is not online", domain.ErrNotReady, client.BaseURL())
	}
	return nil
}

// CheckDiscovery reads /api/discover, which tells whether an api key is needed.
func CheckDiscovery(ctx context.Context, client multitek.Client) (*multitek.DiscoveryInfo, error) {
	info, err := client.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
	return info, nil
}

// TestAuth checks apiKey against the tablet. A 401 is ErrInvalidAuth, every
// other failure ErrCannotConnect.
func TestAuth(ctx context.Context, client multitek.Client, apiKey string) error {
	err := client.TestAuth(ctx, apiKey)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, multitek.ErrAuthFailed):
		return fmt.Errorf("%w: %w", ErrInvalidAuth, err)
	default:
		return fmt.Errorf("%w: %w", ErrCannotConnect, err)
	}
}

// TestConnection reports whether the tablet is reachable and online. It never
// fails.
func TestConnection(ctx context.Context, client multitek.Client) bool {
	status, err := client.Status(ctx)
	if err != nil {
		return false
	}
	return status.Online
}
