package filestore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koustreak/bucketlens/internal/errs"
	"github.com/koustreak/bucketlens/internal/logger"
)

// Session pairs a configuration with the store built from it. A caller that
// holds a Session sees that pair for as long as it keeps it, whatever
// Reconfigure does meanwhile.
type Session struct {
	Config Config
	Store  Store
}

// ListObjects lists through the session's store.
func (s *Session) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	if s.Store == nil {
		return nil, errs.New(errs.ErrKindRemoteList, "storage is not configured")
	}
	return s.Store.ListObjects(ctx, bucket, prefix)
}

// PresignGetURL signs through the session's store.
func (s *Session) PresignGetURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if s.Store == nil {
		return "", errs.New(errs.ErrKindSigning, "storage is not configured")
	}
	return s.Store.PresignGetURL(ctx, bucket, key, ttl)
}

// Gateway is the single point of contact with the remote store. It holds the
// active Session behind an atomic pointer: readers never lock, and
// Reconfigure replaces the whole Session in one store.
type Gateway struct {
	factory Factory
	log     *logger.Logger

	mu      sync.Mutex // serializes Reconfigure
	current atomic.Pointer[Session]
}

// NewGateway builds the first Session from cfg.
func NewGateway(factory Factory, cfg Config, log *logger.Logger) (*Gateway, error) {
	if log == nil {
		log = logger.Nop()
	}
	g := &Gateway{factory: factory, log: log}
	if err := g.Reconfigure(cfg); err != nil {
		return nil, err
	}
	return g, nil
}

// Acquire returns the active Session. Callers should acquire once per request
// and use the result throughout.
func (g *Gateway) Acquire() *Session {
	return g.current.Load()
}

// Reconfigure makes cfg the active configuration. When only Bucket or Prefix
// changed the existing store is kept; otherwise a new store is built and the
// old one is dropped. The previous Session is never mutated.
func (g *Gateway) Reconfigure(cfg Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.current.Load()
	if prev != nil && prev.Store != nil && prev.Config.SameConnection(cfg) {
		g.current.Store(&Session{Config: cfg, Store: prev.Store})
		g.log.InfoWith("storage defaults updated", map[string]interface{}{
			"bucket": cfg.Bucket,
			"prefix": cfg.Prefix,
		})
		return nil
	}

	store, err := g.factory(cfg)
	if err != nil {
		return err
	}

	g.current.Store(&Session{Config: cfg, Store: store})
	g.log.InfoWith("storage client reconfigured", map[string]interface{}{
		"endpoint":    cfg.Endpoint,
		"region":      cfg.RegionOrDefault(),
		"bucket":      cfg.Bucket,
		"credentials": cfg.HasCredentials(),
	})
	return nil
}
