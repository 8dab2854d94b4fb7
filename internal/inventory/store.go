package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Backend --dir=. --output=./mocks --outpkg=mocks

// Backend persists the serialized inventory document as a single unit.
// Read returns nil, nil when nothing has been written yet. Write must replace
// the previous document entirely or not at all.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, doc []byte) error
	Ping(ctx context.Context) error
	Close() error
}

type StoreOptions struct {
	// Lenient resets a malformed document to an empty collection instead of
	// failing the read.
	Lenient bool
	Now     func() time.Time
	Log     *zap.Logger
}

// Store owns the inventory collection. Each mutation is a full
// load, mutate, save cycle under mu, so writers in one process are
// serialized. Separate processes sharing a backend still race and the last
// write wins for the whole collection.
type Store struct {
	backend Backend
	lenient bool
	now     func() time.Time
	log     *zap.Logger

	mu sync.Mutex
}

func NewStore(b Backend, opts StoreOptions) *Store {
	s := &Store{
		backend: b,
		lenient: opts.Lenient,
		now:     opts.Now,
		log:     opts.Log,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *Store) Load(ctx context.Context) (Collection, error) {
	doc, err := s.backend.Read(ctx)
	if err != nil {
		return Collection{}, fmt.Errorf("read inventory: %w", err)
	}

	c, err := decodeCollection(doc)
	if err == nil {
		return c, nil
	}
	if !s.lenient || !errors.Is(err, ErrCorruptState) {
		return Collection{}, err
	}

	if errors.Is(err, errInconsistentDocument) {
		s.log.Warn("repairing inconsistent inventory document", zap.Error(err))
		return c.repair(), nil
	}

	s.log.Warn("discarding malformed inventory document",
		zap.Error(err),
		zap.Int("bytes", len(doc)),
	)
	return Collection{Products: []ProductRecord{}}, nil
}

func (s *Store) Save(ctx context.Context, c Collection) error {
	doc, err := encodeCollection(c)
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}
	if err := s.backend.Write(ctx, doc); err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}
	return nil
}

// Upsert expects an already validated code and amount.
func (s *Store) Upsert(ctx context.Context, code, name string, action Action, amount int) (Collection, ProductRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.Load(ctx)
	if err != nil {
		return Collection{}, ProductRecord{}, err
	}

	c, p, err := c.Upsert(code, name, action, amount, s.now().UTC())
	if err != nil {
		return Collection{}, ProductRecord{}, err
	}
	if err := s.Save(ctx, c); err != nil {
		return Collection{}, ProductRecord{}, err
	}
	return c, p, nil
}

func (s *Store) DeleteByCode(ctx context.Context, code string) (Collection, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.Load(ctx)
	if err != nil {
		return Collection{}, false, err
	}

	c, removed := c.DeleteByCode(code)
	if !removed {
		return c, false, nil
	}
	if err := s.Save(ctx, c); err != nil {
		return Collection{}, false, err
	}
	return c, true, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.backend.Ping(ctx) }

func (s *Store) Close() error { return s.backend.Close() }
