package service

import (
	"context"
	"fmt"

	"github.com/yndnr/plonemetrics-go/internal/core/domain"
)

// DefaultMaxObjectSize bounds the state accepted by Put.
const DefaultMaxObjectSize = 1 << 20

// ObjectStore defines the storage interface for object operations.
type ObjectStore interface {
	Load(ctx context.Context, oid domain.OID) ([]byte, error)
	Store(ctx context.Context, oid domain.OID, state []byte) error
}

// ObjectService reads and writes objects of the hosted object database.
// Every call goes through its own pooled connection, so it also drives the
// load and store activity the metrics report on.
type ObjectService struct {
	store   ObjectStore
	maxSize int
}

// NewObjectService creates an ObjectService. maxSize <= 0 selects
// DefaultMaxObjectSize.
func NewObjectService(store ObjectStore, maxSize int) *ObjectService {
	if maxSize <= 0 {
		maxSize = DefaultMaxObjectSize
	}
	return &ObjectService{store: store, maxSize: maxSize}
}

// MaxSize returns the largest accepted object state in bytes.
func (s *ObjectService) MaxSize() int {
	return s.maxSize
}

// Get returns the state of oid.
func (s *ObjectService) Get(ctx context.Context, oid domain.OID) ([]byte, error) {
	state, err := s.store.Load(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", oid, err)
	}
	return state, nil
}

// Put replaces the state of oid.
func (s *ObjectService) Put(ctx context.Context, oid domain.OID, state []byte) error {
	if len(state) > s.maxSize {
		return domain.ErrObjectTooLarge.WithDetails(
			fmt.Sprintf("%d bytes, limit %d", len(state), s.maxSize))
	}
	if err := s.store.Store(ctx, oid, state); err != nil {
		return fmt.Errorf("put object %s: %w", oid, err)
	}
	return nil
}
