package relay

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"screenrelay/internal/coord"
)

// ErrBadSecret rejects a registration whose token does not match the
// shared secret.
var ErrBadSecret = errors.New("bad secret")

// Registrar owns the single host-binding slot. All reads and writes go
// through the coordination store so independently running workers agree on
// who is bound.
type Registrar struct {
	secret string
	store  coord.Store
	log    zerolog.Logger
}

func NewRegistrar(secret string, store coord.Store, log zerolog.Logger) *Registrar {
	return &Registrar{secret: secret, store: store, log: log}
}

// Register binds connID as the host. Returns the evicted prior id ("" if
// none) so the caller can signal it to disconnect.
func (r *Registrar) Register(ctx context.Context, connID, token string) (string, error) {
	if token != r.secret {
		return "", ErrBadSecret
	}
	prev, err := r.store.Bind(ctx, connID)
	if err != nil {
		return "", err
	}
	if prev == connID {
		prev = ""
	}
	return prev, nil
}

// Bound returns the currently bound id with a fresh store read. A store
// failure fails closed: the deployment is treated as having no bound host
// until a later read succeeds.
func (r *Registrar) Bound(ctx context.Context) string {
	id, err := r.store.Bound(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("coordination store read failed; treating as unbound")
		return ""
	}
	return id
}

// Unbind clears the binding if connID still holds it.
func (r *Registrar) Unbind(ctx context.Context, connID string) bool {
	cleared, err := r.store.Clear(ctx, connID)
	if err != nil {
		r.log.Error().Err(err).Str("conn", connID).Msg("coordination store clear failed")
		return false
	}
	return cleared
}
