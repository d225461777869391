package dataset

import (
	"context"
	"sync/atomic"

	"healthmap/core-go/internal/domain"
)

// Store holds the current dataset snapshot. Readers get an immutable
// *domain.Dataset; writers swap in a whole new one.
type Store struct {
	cur atomic.Pointer[domain.Dataset]
}

func NewStore(initial *domain.Dataset) *Store {
	s := &Store{}
	if initial != nil {
		s.cur.Store(initial)
	}
	return s
}

// LoadStore loads from p and wraps the result in a Store.
func LoadStore(ctx context.Context, p Provider) (*Store, error) {
	d, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	return NewStore(d), nil
}

func (s *Store) Snapshot() *domain.Dataset {
	if s == nil {
		return nil
	}
	return s.cur.Load()
}

func (s *Store) Replace(d *domain.Dataset) {
	s.cur.Store(d)
}

// Reload fetches a fresh dataset from p. The current snapshot is kept when
// the load fails.
func (s *Store) Reload(ctx context.Context, p Provider) error {
	d, err := p.Load(ctx)
	if err != nil {
		return err
	}
	s.Replace(d)
	return nil
}

// ApplyPositions swaps in a copy of the current snapshot with the given
// telemetry applied.
func (s *Store) ApplyPositions(updates []domain.TransportPosition) {
	if len(updates) == 0 {
		return
	}
	for {
		old := s.cur.Load()
		if old == nil {
			return
		}
		if s.cur.CompareAndSwap(old, old.WithTransportPositions(updates)) {
			return
		}
	}
}
