package upload

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/errs"
	"gamepub/internal/ports"
)

const (
	sessionCachePrefix = "upload_session:"
	mirrorTimeout      = 2 * time.Second
)

func SessionCacheKey(id string) string {
	return sessionCachePrefix + id
}

type session struct {
	owner       string
	manager     *Manager
	unsubscribe func()
}

// Registry owns the live upload sessions of a process, keyed by a random id.
// The latest snapshot of each session is mirrored to the cache when one is set.
type Registry struct {
	blobs    ports.BlobStore
	metadata MetadataStore
	cache    ports.Cache
	cacheTTL time.Duration
	opts     Options

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewRegistry(blobs ports.BlobStore, metadata MetadataStore, cache ports.Cache, cacheTTL time.Duration, opts Options) *Registry {
	return &Registry{
		blobs:    blobs,
		metadata: metadata,
		cache:    cache,
		cacheTTL: cacheTTL,
		opts:     opts,
		sessions: make(map[string]*session),
	}
}

// Create starts a session for actor and returns its id.
func (r *Registry) Create(ctx context.Context, actor ports.Actor) (string, *Manager, error) {
	if ctx == nil {
		return "", nil, errors.New("context is required")
	}
	if !actor.Valid() {
		return "", nil, ports.ErrUnauthenticated
	}

	id := uuid.NewString()
	m := NewManager(r.blobs, r.metadata, actor, r.opts)
	sctx := logging.WithAttrs(context.WithoutCancel(ctx),
		slog.String("component", "upload.registry"),
		slog.String("session_id", id),
	)
	unsubscribe := m.Subscribe(func(s State) {
		r.mirror(sctx, id, s)
	})

	r.mu.Lock()
	r.sessions[id] = &session{owner: actor.UserID, manager: m, unsubscribe: unsubscribe}
	r.mu.Unlock()

	r.mirror(sctx, id, m.State())
	logging.Info(sctx, "upload session created", slog.String("user_id", actor.UserID))
	return id, m, nil
}

// Get returns the session manager if actor may use it. Admins can reach any session.
func (r *Registry) Get(id string, actor ports.Actor) (*Manager, error) {
	r.mu.RLock()
	s, ok := r.sessions[strings.TrimSpace(id)]
	r.mu.RUnlock()
	if !ok || (s.owner != actor.UserID && !actor.IsAdmin()) {
		return nil, ErrSessionMissing
	}
	return s.manager, nil
}

// Remove resets and forgets a session, dropping its cached snapshot.
func (r *Registry) Remove(ctx context.Context, id string, actor ports.Actor) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	id = strings.TrimSpace(id)

	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || (s.owner != actor.UserID && !actor.IsAdmin()) {
		r.mu.Unlock()
		return ErrSessionMissing
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	s.unsubscribe()
	s.manager.Reset()
	if r.cache != nil {
		if err := r.cache.Delete(ctx, SessionCacheKey(id)); err != nil {
			logging.Warn(ctx, "drop cached upload session failed",
				slog.String("session_id", id),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Cached returns the last mirrored snapshot of a session, live or not.
func (r *Registry) Cached(ctx context.Context, id string) (State, bool, error) {
	if r.cache == nil {
		return State{}, false, nil
	}
	raw, found, err := r.cache.Get(ctx, SessionCacheKey(strings.TrimSpace(id)))
	if err != nil || !found {
		return State{}, false, err
	}
	var s State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return State{}, false, errs.Wrap(err, "decode cached upload session")
	}
	return s, true, nil
}

func (r *Registry) mirror(ctx context.Context, id string, s State) {
	if r.cache == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		logging.Warn(ctx, "encode upload session failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	if err := r.cache.Set(ctx, SessionCacheKey(id), string(raw), r.cacheTTL); err != nil {
		logging.Warn(ctx, "mirror upload session failed", slog.Any("err", errs.Loggable(err)))
	}
}
