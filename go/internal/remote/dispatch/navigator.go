package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultSiteURL is the site navigation paths are resolved against
const DefaultSiteURL = "https://tarkov.dev"

// Navigator moves the display to a page
type Navigator interface {
	NavigateTo(ctx context.Context, path string) error
}

// Path derives the page path for a command: /{type}/{value}
func Path(targetType, targetValue string) string {
	return "/" + url.PathEscape(targetType) + "/" + url.PathEscape(targetValue)
}

// NavigateHandler adapts a Navigator into a command Handler
func NavigateHandler(nav Navigator) Handler {
	return func(ctx context.Context, targetType, targetValue string) {
		path := Path(targetType, targetValue)
		if err := nav.NavigateTo(ctx, path); err != nil {
			log.Error().Err(err).Str("path", path).Msg("navigation failed")
		}
	}
}

// LogNavigator only logs navigation targets
type LogNavigator struct{}

func (LogNavigator) NavigateTo(_ context.Context, path string) error {
	log.Info().Str("path", path).Msg("navigate")
	return nil
}

// URLNavigator resolves paths against the site base URL and remembers the current page
type URLNavigator struct {
	base *url.URL

	mu      sync.RWMutex
	current string
}

func NewURLNavigator(base string) (*URLNavigator, error) {
	if base == "" {
		base = DefaultSiteURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse site url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("site url %q must be absolute", base)
	}
	return &URLNavigator{base: u}, nil
}

func (n *URLNavigator) NavigateTo(_ context.Context, path string) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse path %q: %w", path, err)
	}
	target := n.base.ResolveReference(ref).String()

	n.mu.Lock()
	n.current = target
	n.mu.Unlock()

	log.Info().Str("url", target).Msg("navigate")
	return nil
}

// Current returns the last page navigated to, empty before the first navigation
func (n *URLNavigator) Current() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.current
}

// MultiNavigator forwards each navigation to every navigator in order
type MultiNavigator []Navigator

func (m MultiNavigator) NavigateTo(ctx context.Context, path string) error {
	var errs []error
	for _, nav := range m {
		if err := nav.NavigateTo(ctx, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
