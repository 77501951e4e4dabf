package override

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/lot-map/internal/broadcast"
	"github.com/iliyamo/lot-map/internal/model"
	"github.com/iliyamo/lot-map/internal/normalize"
)

// Session is one holder of the override map.  It keeps an in-memory
// snapshot hydrated from the Store and reloads it whenever a sibling
// session signals a change.  Concurrent writers are last-write-wins: the
// whole map is persisted on every write and nothing is merged.
type Session struct {
	id    string
	store Store
	audit AuditLog
	bus   broadcast.Broadcaster
	log   *zap.Logger
	now   func() time.Time

	mu    sync.RWMutex
	snap  Map
	hooks []func(context.Context)

	wg sync.WaitGroup
}

// NewSession hydrates a session from store.  audit and bus may be nil.
func NewSession(ctx context.Context, store Store, audit AuditLog, bus broadcast.Broadcaster, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		id:    uuid.NewString(),
		store: store,
		audit: audit,
		bus:   bus,
		log:   log,
		now:   time.Now,
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// OnChange registers h to run after the visible override map changed:
// after a successful Set or Clear and after a reload caused by a sibling
// session.
func (s *Session) OnChange(h func(context.Context)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

// ID identifies the session in the signals it publishes.
func (s *Session) ID() string { return s.id }

// Reload replaces the snapshot with the persisted map.
func (s *Session) Reload(ctx context.Context) error {
	m, err := s.store.Get(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.snap = m
	s.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current override map.
func (s *Session) Snapshot() Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// Merge applies the current overrides to canonical lots.
func (s *Session) Merge(lots []model.Lot) []model.Lot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Apply(lots, s.snap)
}

// Set merges p into the override for id, persists the map, records an
// audit line and tells sibling sessions to reload.  It returns the
// resulting override for id.
func (s *Session) Set(ctx context.Context, id string, p Patch) (Patch, error) {
	id = normalize.NormalizeID(id)
	if id == "" {
		return Patch{}, fmt.Errorf("overrides: empty lot id")
	}
	p = clean(p)

	s.mu.Lock()
	next := s.snap.Clone()
	merged := next[id].Merge(p)
	if merged.Empty() {
		delete(next, id)
	} else {
		next[id] = merged
	}
	if err := s.store.Set(ctx, next); err != nil {
		s.mu.Unlock()
		return Patch{}, err
	}
	s.snap = next
	s.mu.Unlock()

	raw, _ := json.Marshal(p)
	s.record(ctx, id, string(raw))
	s.changed(ctx)
	s.notify(ctx)
	return merged, nil
}

// Clear drops the override for id.  Clearing an id without override is
// not an error.
func (s *Session) Clear(ctx context.Context, id string) error {
	id = normalize.NormalizeID(id)

	s.mu.Lock()
	if _, ok := s.snap[id]; !ok {
		s.mu.Unlock()
		return nil
	}
	next := s.snap.Clone()
	delete(next, id)
	if err := s.store.Set(ctx, next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.snap = next
	s.mu.Unlock()

	s.record(ctx, id, "null")
	s.changed(ctx)
	s.notify(ctx)
	return nil
}

// Audit returns the retained audit lines, newest first.
func (s *Session) Audit(ctx context.Context) ([]string, error) {
	if s.audit == nil {
		return []string{}, nil
	}
	return s.audit.Entries(ctx)
}

// Start subscribes to the broadcaster and reloads the snapshot on every
// sync signal from another session until ctx is cancelled.  Use Wait to
// block until the listener has exited.
func (s *Session) Start(ctx context.Context) error {
	if s.bus == nil {
		return nil
	}
	signals, err := s.bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for sig := range signals {
			if sig.Kind != broadcast.KindSync || sig.Origin == s.id {
				continue
			}
			if err := s.Reload(ctx); err != nil {
				if ctx.Err() == nil {
					s.log.Warn("overrides: reload failed", zap.Error(err))
				}
				continue
			}
			s.changed(ctx)
		}
	}()
	return nil
}

// Wait blocks until the listener started by Start has returned.
func (s *Session) Wait() { s.wg.Wait() }

func (s *Session) record(ctx context.Context, id, patch string) {
	if s.audit == nil {
		return
	}
	line := fmt.Sprintf("%s %s %s", s.now().Format(time.RFC3339), id, patch)
	if err := s.audit.Append(ctx, line); err != nil {
		s.log.Warn("overrides: audit append failed", zap.String("lot_id", id), zap.Error(err))
	}
}

func (s *Session) changed(ctx context.Context) {
	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	for _, h := range hooks {
		h(ctx)
	}
}

func (s *Session) notify(ctx context.Context) {
	if s.bus == nil {
		return
	}
	sig := broadcast.Sync()
	sig.Origin = s.id
	if err := s.bus.Publish(ctx, sig); err != nil {
		s.log.Warn("overrides: sync publish failed", zap.Error(err))
	}
}

func clean(p Patch) Patch {
	var out Patch
	out.Price = normalize.Price(p.Price)
	if p.Condicion != nil {
		st := normalize.NormalizeStatus(string(*p.Condicion))
		out.Condicion = &st
	}
	if p.Cliente != nil {
		out.Cliente = model.String(normalize.NormalizeText(*p.Cliente))
	}
	return out
}
