package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// PairingQueryParam is the locator query parameter that carries a pairing token
const PairingQueryParam = "connection"

// ErrInvalidID is returned when an id is too short to be used as a routing key
var ErrInvalidID = errors.New("invalid session id")

// Identity derives and persists the local session id and the optional paired control id.
// Values are cached after the first load or write, so only the first read of each key
// reaches the store. When the store is unavailable values live only in the cache for
// the lifetime of the process.
type Identity struct {
	store    Store
	idLength int

	mu    sync.Mutex
	cache map[string]string
}

// NewIdentity creates an identity backed by store
func NewIdentity(store Store) *Identity {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Identity{
		store:    store,
		idLength: DefaultIDLength,
		cache:    make(map[string]string),
	}
}

// GetOrCreateSessionID returns the persisted session id, generating and persisting a new one
// when none is stored or the stored one is invalid.
func (i *Identity) GetOrCreateSessionID(ctx context.Context) ID {
	i.mu.Lock()
	defer i.mu.Unlock()

	if id := ID(i.load(ctx, KeySessionID)); id.Valid() {
		return id
	}

	id := NewID(i.idLength)
	i.save(ctx, KeySessionID, string(id))

	log.Info().Str("session_id", id.String()).Msg("generated new session id")
	return id
}

// AdoptPairingToken overwrites the persisted session id with token so that two clients
// loaded independently converge on the same session. An empty token is a no-op.
func (i *Identity) AdoptPairingToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}

	id := ID(token)
	if !id.Valid() {
		return fmt.Errorf("%w: pairing token %q shorter than %d", ErrInvalidID, token, MinIDLength)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.save(ctx, KeySessionID, string(id))

	log.Info().Str("session_id", id.String()).Msg("adopted pairing token")
	return nil
}

// PairingToken reads the pairing token from a locator, empty when absent
func PairingToken(u *url.URL) string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(PairingQueryParam))
}

// ControlID returns the session id of the paired display, empty when this client is not a controller
func (i *Identity) ControlID(ctx context.Context) ID {
	i.mu.Lock()
	defer i.mu.Unlock()

	id := ID(i.load(ctx, KeyControlID))
	if !id.Valid() {
		return ""
	}
	return id
}

// SetControlID pairs this client with the display identified by id
func (i *Identity) SetControlID(ctx context.Context, id ID) error {
	id = ID(strings.TrimSpace(string(id)))
	if !id.Valid() {
		return fmt.Errorf("%w: control id %q shorter than %d", ErrInvalidID, id, MinIDLength)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.save(ctx, KeyControlID, string(id))

	log.Info().Str("control_id", id.String()).Msg("paired with display")
	return nil
}

// ClearControlID stops acting as a controller
func (i *Identity) ClearControlID(ctx context.Context) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.save(ctx, KeyControlID, "")
}

// load must be called with i.mu held
func (i *Identity) load(ctx context.Context, key string) string {
	if value, ok := i.cache[key]; ok {
		return value
	}

	value, err := i.store.Get(ctx, key)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		value = ""
	default:
		// Not cached so the next read tries the store again
		log.Warn().Err(err).Str("key", key).Msg("session store unavailable, using in-memory value")
		return ""
	}
	i.cache[key] = value
	return value
}

// save must be called with i.mu held
func (i *Identity) save(ctx context.Context, key, value string) {
	i.cache[key] = value
	if err := i.store.Set(ctx, key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("session store unavailable, value will not persist")
	}
}
