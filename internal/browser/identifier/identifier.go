// Package identifier extracts numeric record identifiers from page addresses.
package identifier

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds ExtractIdentifier when the caller passes no timeout.
	DefaultTimeout = 10 * time.Second
	// DefaultPollInterval is the cadence at which the page address is re-read.
	DefaultPollInterval = 100 * time.Millisecond

	// maxSafeInteger is the largest integer every consumer can represent exactly (2^53 - 1).
	maxSafeInteger = 1<<53 - 1
)

var (
	ErrEmpty     = errors.New("identifier: empty identifier")
	ErrMalformed = errors.New("identifier: malformed identifier")
	ErrTimeout   = errors.New("identifier: timed out waiting for an identifier in the page address")
)

// Identifier is a validated, non-empty token.
type Identifier struct {
	raw string
}

// New wraps raw. It fails with ErrEmpty on the empty string.
func New(raw string) (Identifier, error) {
	if raw == "" {
		return Identifier{}, ErrEmpty
	}
	return Identifier{raw: raw}, nil
}

// String returns the raw token.
func (id Identifier) String() string { return id.raw }

// AsInt converts the token to an integer. Only optionally signed base-10 digits within the safe
// integer range are accepted.
func (id Identifier) AsInt() (int64, error) {
	s := id.raw
	digits := s
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		digits = s[1:]
	}
	if digits == "" || !isDigits(digits) {
		return 0, fmt.Errorf("%w: %q is not a base-10 integer", ErrMalformed, s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n > maxSafeInteger || n < -maxSafeInteger {
		return 0, fmt.Errorf("%w: %q is outside the safe integer range", ErrMalformed, s)
	}
	return n, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FromAddress returns the first path segment of address made only of digits.
func FromAddress(address string) (Identifier, bool) {
	path := address
	if u, err := url.Parse(address); err == nil {
		path = u.EscapedPath()
	}
	for _, segment := range strings.Split(path, "/") {
		if segment != "" && isDigits(segment) {
			return Identifier{raw: segment}, true
		}
	}
	return Identifier{}, false
}

// AddressReader reports the current page address.
type AddressReader interface {
	URL(ctx context.Context) (string, error)
}

// Extractor polls a page address for an identifier.
type Extractor struct {
	page     AddressReader
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewExtractor returns an Extractor. Non-positive interval or timeout use the defaults.
func NewExtractor(p AddressReader, interval, timeout time.Duration, logger *zap.Logger) *Extractor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{page: p, interval: interval, timeout: timeout, logger: logger.Named("identifier")}
}

// ExtractIdentifier re-reads the page address until a purely numeric path segment appears or
// timeout elapses. A zero timeout uses the extractor's default. The timeout error includes the
// last address seen.
func (e *Extractor) ExtractIdentifier(ctx context.Context, timeout time.Duration) (Identifier, error) {
	if timeout <= 0 {
		timeout = e.timeout
	}
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(e.interval), 1)
	var last string
	for {
		if err := limiter.Wait(pollCtx); err != nil {
			// Wait refuses as soon as the next token would land past the deadline, so sit out the
			// rest of the bound and read the address one last time.
			<-pollCtx.Done()
			if ctx.Err() != nil {
				return Identifier{}, ctx.Err()
			}
			if address, err := e.page.URL(ctx); err == nil {
				last = address
				if id, ok := FromAddress(address); ok {
					return id, nil
				}
			}
			return Identifier{}, fmt.Errorf("%w after %v (last address %q)", ErrTimeout, timeout, last)
		}

		address, err := e.page.URL(pollCtx)
		if err != nil {
			if ctx.Err() != nil {
				return Identifier{}, ctx.Err()
			}
			if pollCtx.Err() == nil {
				e.logger.Debug("Failed to read page address; retrying.", zap.Error(err))
			}
			continue
		}
		last = address
		if id, ok := FromAddress(address); ok {
			return id, nil
		}
	}
}

// ExtractIdentifierAsNumber extracts the identifier and converts it with AsInt.
func (e *Extractor) ExtractIdentifierAsNumber(ctx context.Context, timeout time.Duration) (int64, error) {
	id, err := e.ExtractIdentifier(ctx, timeout)
	if err != nil {
		return 0, err
	}
	return id.AsInt()
}
