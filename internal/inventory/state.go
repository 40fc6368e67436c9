package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/kb"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

var (
	// ErrObjectNotFound indicates a referenced object does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrObjectExists indicates an object with the same class and id exists.
	ErrObjectExists = errors.New("object already exists")
	// ErrObjectInvalid indicates an object failed validation.
	ErrObjectInvalid = errors.New("invalid object")
	// ErrObjectInUse indicates an object still has children or relationships.
	ErrObjectInUse = errors.New("object is referenced by other objects")
	// ErrRelationshipExists indicates a unique relationship is already taken.
	ErrRelationshipExists = errors.New("relationship already exists")
	// ErrRelationshipNotFound indicates a requested relationship was not found.
	ErrRelationshipNotFound = errors.New("relationship not found")
	// ErrReadOnly is returned by mutating calls made inside View.
	ErrReadOnly = errors.New("inventory transaction is read-only")
	// ErrClassNotFound is re-exported so callers can depend on inventory.*.
	ErrClassNotFound = kb.ErrClassNotFound
)

// DefaultMaxRouteHops bounds route searches when no limit is configured.
const DefaultMaxRouteHops = 8

// MetricsRecorder receives count updates for inventory entities.
type MetricsRecorder interface {
	SetInventoryCounts(transportLinks, containerLinks, tributaryLinks, services int)
}

// State holds the inventory: business objects, their containment and the
// special relationships between them. All access goes through View and
// Update so multi-step reads and writes observe one consistent snapshot.
type State struct {
	mu sync.RWMutex

	classes *kb.KnowledgeBase

	objects       map[string]*model.BusinessObject
	relationships map[string]*model.Relationship
	// byObject indexes relationship ids by object key.
	byObject map[string]map[string]struct{}
	// children indexes contained object keys by parent key.
	children map[string]map[string]struct{}

	journal Journal
	log     logging.Logger
	metrics MetricsRecorder
	newID   func() string
}

// Option customises State construction.
type Option func(*State)

// WithJournal persists every committed changeset before it becomes visible.
func WithJournal(j Journal) Option {
	return func(s *State) {
		s.journal = j
	}
}

// WithMetricsRecorder attaches an optional metrics recorder for entity counts.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *State) {
		s.metrics = m
	}
}

// WithIDGenerator replaces the random UUID generator, mostly for tests.
func WithIDGenerator(fn func() string) Option {
	return func(s *State) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewState builds an empty inventory over the given class metadata.
func NewState(classes *kb.KnowledgeBase, log logging.Logger, opts ...Option) *State {
	if log == nil {
		log = logging.Noop()
	}
	if classes == nil {
		classes = kb.NewSDHKnowledgeBase()
	}
	s := &State{
		classes:       classes,
		objects:       make(map[string]*model.BusinessObject),
		relationships: make(map[string]*model.Relationship),
		byObject:      make(map[string]map[string]struct{}),
		children:      make(map[string]map[string]struct{}),
		log:           log,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.updateMetricsLocked()
	return s
}

// Classes exposes the class metadata the inventory validates against.
func (s *State) Classes() *kb.KnowledgeBase {
	return s.classes
}

// View runs fn under the read lock. Mutating Txn calls fail with
// ErrReadOnly. fn must not call back into State.
func (s *State) View(fn func(tx *Txn) error) error {
	if fn == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Txn{s: s})
}

// Update runs fn under the write lock. Changes made by fn are visible to fn
// immediately; they are persisted through the journal and kept only if fn
// and the journal both succeed, otherwise every change is undone.
func (s *State) Update(ctx context.Context, fn func(tx *Txn) error) error {
	if fn == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Txn{s: s, writable: true}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	if tx.changes.Empty() {
		return nil
	}
	if s.journal != nil {
		if err := s.journal.Apply(ctx, tx.changes); err != nil {
			tx.rollback()
			s.log.Error(ctx, "inventory journal rejected changeset",
				logging.Err(err),
				logging.Int("created_objects", len(tx.changes.CreatedObjects)),
				logging.Int("deleted_objects", len(tx.changes.DeletedObjects)),
			)
			return fmt.Errorf("persist inventory changes: %w", err)
		}
	}

	s.log.Debug(ctx, "inventory changeset committed",
		logging.Int("created_objects", len(tx.changes.CreatedObjects)),
		logging.Int("created_relationships", len(tx.changes.CreatedRelationships)),
		logging.Int("deleted_relationships", len(tx.changes.DeletedRelationships)),
		logging.Int("deleted_objects", len(tx.changes.DeletedObjects)),
	)
	s.updateMetricsLocked()
	return nil
}

// Restore loads previously persisted objects and relationships into an
// empty inventory without going through the journal.
func (s *State) Restore(objects []model.BusinessObject, relationships []model.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.objects) != 0 {
		return fmt.Errorf("%w: restore into non-empty inventory", ErrObjectInvalid)
	}
	for i := range objects {
		obj := objects[i]
		if _, err := s.classes.GetClass(obj.ClassName); err != nil {
			s.resetLocked()
			return fmt.Errorf("restore %s: %w", obj.Ref(), err)
		}
		s.objects[obj.Ref().Key()] = &obj
	}
	for _, obj := range s.objects {
		if obj.Parent.IsZero() {
			continue
		}
		if _, ok := s.objects[obj.Parent.Key()]; !ok {
			ref := obj.Ref()
			s.resetLocked()
			return fmt.Errorf("%w: parent %s of %s", ErrObjectNotFound, obj.Parent, ref)
		}
		s.indexChildLocked(obj.Parent.Key(), obj.Ref().Key())
	}
	for i := range relationships {
		rel := relationships[i]
		if _, ok := s.objects[rel.A.Key()]; !ok {
			s.resetLocked()
			return fmt.Errorf("%w: %s in relationship %s", ErrObjectNotFound, rel.A, rel.ID)
		}
		if _, ok := s.objects[rel.B.Key()]; !ok {
			s.resetLocked()
			return fmt.Errorf("%w: %s in relationship %s", ErrObjectNotFound, rel.B, rel.ID)
		}
		s.insertRelationshipLocked(&rel)
	}
	s.updateMetricsLocked()
	return nil
}

// Counts reports the number of SDH links and services in the inventory.
type Counts struct {
	TransportLinks int
	ContainerLinks int
	TributaryLinks int
	Services       int
}

// Counts returns the current entity counts.
func (s *State) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countsLocked()
}

func (s *State) countsLocked() Counts {
	var c Counts
	for _, obj := range s.objects {
		switch {
		case s.isSubclass(obj.ClassName, core.ClassGenericSDHTransportLink):
			c.TransportLinks++
		case s.isSubclass(obj.ClassName, core.ClassGenericSDHContainerLink):
			c.ContainerLinks++
		case s.isSubclass(obj.ClassName, core.ClassGenericSDHTributaryLink):
			c.TributaryLinks++
		case s.isSubclass(obj.ClassName, core.ClassGenericService):
			c.Services++
		}
	}
	return c
}

func (s *State) isSubclass(className, parent string) bool {
	ok, err := s.classes.IsSubclassOf(className, parent)
	return err == nil && ok
}

func (s *State) updateMetricsLocked() {
	if s == nil || s.metrics == nil {
		return
	}
	c := s.countsLocked()
	s.metrics.SetInventoryCounts(c.TransportLinks, c.ContainerLinks, c.TributaryLinks, c.Services)
}

func (s *State) resetLocked() {
	s.objects = make(map[string]*model.BusinessObject)
	s.relationships = make(map[string]*model.Relationship)
	s.byObject = make(map[string]map[string]struct{})
	s.children = make(map[string]map[string]struct{})
}

func (s *State) insertRelationshipLocked(rel *model.Relationship) {
	s.relationships[rel.ID] = rel
	for _, key := range []string{rel.A.Key(), rel.B.Key()} {
		if s.byObject[key] == nil {
			s.byObject[key] = make(map[string]struct{})
		}
		s.byObject[key][rel.ID] = struct{}{}
	}
}

func (s *State) removeRelationshipLocked(rel *model.Relationship) {
	delete(s.relationships, rel.ID)
	for _, key := range []string{rel.A.Key(), rel.B.Key()} {
		delete(s.byObject[key], rel.ID)
		if len(s.byObject[key]) == 0 {
			delete(s.byObject, key)
		}
	}
}

func (s *State) indexChildLocked(parentKey, childKey string) {
	if s.children[parentKey] == nil {
		s.children[parentKey] = make(map[string]struct{})
	}
	s.children[parentKey][childKey] = struct{}{}
}

func (s *State) unindexChildLocked(parentKey, childKey string) {
	delete(s.children[parentKey], childKey)
	if len(s.children[parentKey]) == 0 {
		delete(s.children, parentKey)
	}
}
