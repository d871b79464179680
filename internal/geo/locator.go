// Package geo resolves requester IPs to rough locations and patches them
// onto redirect log rows in the background.
package geo

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/darkodi/whatsapp-redirect/internal/model"
)

var (
	// ErrSkipped marks addresses that are never sent to a provider
	ErrSkipped = errors.New("geo: address not eligible for lookup")
	// ErrNotResolved means the provider answered without a usable location
	ErrNotResolved = errors.New("geo: location not resolved")
)

// Locator resolves an IP address to a location
type Locator interface {
	Locate(ctx context.Context, ip string) (model.Location, error)
}

// Eligible reports whether ip is a public address worth looking up.
// Loopback, private, link-local, unspecified and unparseable addresses are not.
func Eligible(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return !(addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsMulticast())
}

// Chain tries each locator in order and returns the first success
type Chain []Locator

func (c Chain) Locate(ctx context.Context, ip string) (model.Location, error) {
	if !Eligible(ip) {
		return model.Location{}, ErrSkipped
	}

	var errs []error
	for _, l := range c {
		loc, err := l.Locate(ctx, ip)
		if err == nil {
			return loc, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return model.Location{}, ErrNotResolved
	}
	return model.Location{}, fmt.Errorf("all providers failed for %s: %w", ip, errors.Join(errs...))
}
