package inventory

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

// Txn is a view of the inventory bound to one View or Update call. It must
// not be retained after the callback returns.
type Txn struct {
	s        *State
	writable bool
	changes  Changeset
	undo     []func()
}

func (tx *Txn) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.changes = Changeset{}
}

//
// ---------- Reads ----------
//

// Object returns a copy of the referenced object.
func (tx *Txn) Object(ref core.ObjectRef) (model.BusinessObject, error) {
	obj, ok := tx.s.objects[ref.Key()]
	if !ok {
		return model.BusinessObject{}, fmt.Errorf("%w: %s", ErrObjectNotFound, ref.Key())
	}
	out := *obj
	out.Attributes = maps.Clone(obj.Attributes)
	return out, nil
}

// Resolve returns ref with its Name filled from the stored object.
func (tx *Txn) Resolve(ref core.ObjectRef) (core.ObjectRef, error) {
	obj, ok := tx.s.objects[ref.Key()]
	if !ok {
		return core.ObjectRef{}, fmt.Errorf("%w: %s", ErrObjectNotFound, ref.Key())
	}
	return obj.Ref(), nil
}

// IsSubclassOf answers from the class metadata.
func (tx *Txn) IsSubclassOf(className, allegedParent string) (bool, error) {
	return tx.s.classes.IsSubclassOf(className, allegedParent)
}

// ObjectsOfClass returns every object whose class is className or one of
// its subclasses, sorted by name then id.
func (tx *Txn) ObjectsOfClass(className string) ([]core.ObjectRef, error) {
	if _, err := tx.s.classes.GetClass(className); err != nil {
		return nil, err
	}
	var res []core.ObjectRef
	for _, obj := range tx.s.objects {
		if tx.s.isSubclass(obj.ClassName, className) {
			res = append(res, obj.Ref())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

// FirstParentOfClass walks up the containment tree of ref and returns the
// closest ancestor that is a className. ok is false when there is none.
func (tx *Txn) FirstParentOfClass(ref core.ObjectRef, className string) (parent core.ObjectRef, ok bool, err error) {
	obj, found := tx.s.objects[ref.Key()]
	if !found {
		return core.ObjectRef{}, false, fmt.Errorf("%w: %s", ErrObjectNotFound, ref.Key())
	}
	for !obj.Parent.IsZero() {
		obj, found = tx.s.objects[obj.Parent.Key()]
		if !found {
			return core.ObjectRef{}, false, fmt.Errorf("%w: ancestor of %s", ErrObjectNotFound, ref.Key())
		}
		isA, err := tx.s.classes.IsSubclassOf(obj.ClassName, className)
		if err != nil {
			return core.ObjectRef{}, false, err
		}
		if isA {
			return obj.Ref(), true, nil
		}
	}
	return core.ObjectRef{}, false, nil
}

// Relationships returns every relationship ref takes part in, sorted by
// name then id.
func (tx *Txn) Relationships(ref core.ObjectRef) []model.Relationship {
	ids := tx.s.byObject[ref.Key()]
	res := make([]model.Relationship, 0, len(ids))
	for id := range ids {
		rel := *tx.s.relationships[id]
		rel.Properties = maps.Clone(rel.Properties)
		res = append(res, rel)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name != res[j].Name {
			return res[i].Name < res[j].Name
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// AnnotatedSpecialAttribute returns the objects related to ref through
// relationships called name, with each relationship's properties, sorted by
// object name then id.
func (tx *Txn) AnnotatedSpecialAttribute(ref core.ObjectRef, name string) ([]model.AnnotatedObject, error) {
	if _, ok := tx.s.objects[ref.Key()]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref.Key())
	}
	var res []model.AnnotatedObject
	for id := range tx.s.byObject[ref.Key()] {
		rel := tx.s.relationships[id]
		if rel.Name != name {
			continue
		}
		other := tx.s.objects[rel.Other(ref).Key()]
		res = append(res, model.AnnotatedObject{
			Object:         other.Ref(),
			RelationshipID: rel.ID,
			Properties:     maps.Clone(rel.Properties),
			Outgoing:       rel.A.Same(ref),
		})
	}
	sort.Slice(res, func(i, j int) bool {
		a, b := res[i].Object, res[j].Object
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return res[i].RelationshipID < res[j].RelationshipID
	})
	return res, nil
}

// SpecialAttribute is AnnotatedSpecialAttribute without the properties.
func (tx *Txn) SpecialAttribute(ref core.ObjectRef, name string) ([]core.ObjectRef, error) {
	annotated, err := tx.AnnotatedSpecialAttribute(ref, name)
	if err != nil {
		return nil, err
	}
	res := make([]core.ObjectRef, len(annotated))
	for i, a := range annotated {
		res[i] = a.Object
	}
	return res, nil
}

// HasSpecialAttribute reports whether ref takes part in any relationship
// called name.
func (tx *Txn) HasSpecialAttribute(ref core.ObjectRef, name string) bool {
	for id := range tx.s.byObject[ref.Key()] {
		if tx.s.relationships[id].Name == name {
			return true
		}
	}
	return false
}

//
// ---------- Writes ----------
//

// CreateObject inserts obj. An empty ID is replaced by a generated one.
func (tx *Txn) CreateObject(obj model.BusinessObject) (core.ObjectRef, error) {
	if !tx.writable {
		return core.ObjectRef{}, ErrReadOnly
	}
	if strings.TrimSpace(obj.Name) == "" {
		return core.ObjectRef{}, fmt.Errorf("%w: %s has no name", ErrObjectInvalid, obj.ClassName)
	}
	class, err := tx.s.classes.GetClass(obj.ClassName)
	if err != nil {
		return core.ObjectRef{}, err
	}
	if class.Abstract {
		return core.ObjectRef{}, fmt.Errorf("%w: class %q is abstract", ErrObjectInvalid, obj.ClassName)
	}
	if obj.ID == "" {
		obj.ID = tx.s.newID()
	}
	key := obj.Ref().Key()
	if _, exists := tx.s.objects[key]; exists {
		return core.ObjectRef{}, fmt.Errorf("%w: %s", ErrObjectExists, key)
	}
	if !obj.Parent.IsZero() {
		if _, ok := tx.s.objects[obj.Parent.Key()]; !ok {
			return core.ObjectRef{}, fmt.Errorf("%w: parent %s", ErrObjectNotFound, obj.Parent.Key())
		}
	}

	obj.Attributes = maps.Clone(obj.Attributes)
	stored := obj
	tx.s.objects[key] = &stored
	if !obj.Parent.IsZero() {
		tx.s.indexChildLocked(obj.Parent.Key(), key)
	}
	tx.undo = append(tx.undo, func() {
		delete(tx.s.objects, key)
		if !obj.Parent.IsZero() {
			tx.s.unindexChildLocked(obj.Parent.Key(), key)
		}
	})
	tx.changes.CreatedObjects = append(tx.changes.CreatedObjects, obj)
	return obj.Ref(), nil
}

// CreateSpecialRelationship relates a and b under name. A unique
// relationship may be held at most once by each of its sides.
func (tx *Txn) CreateSpecialRelationship(name string, a, b core.ObjectRef, properties map[string]string, unique bool) (string, error) {
	if !tx.writable {
		return "", ErrReadOnly
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty relationship name", ErrObjectInvalid)
	}
	if a.Same(b) {
		return "", fmt.Errorf("%w: %q relates %s to itself", ErrObjectInvalid, name, a.Key())
	}
	objA, ok := tx.s.objects[a.Key()]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, a.Key())
	}
	objB, ok := tx.s.objects[b.Key()]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, b.Key())
	}
	if unique {
		for _, side := range []core.ObjectRef{a, b} {
			if tx.HasSpecialAttribute(side, name) {
				return "", fmt.Errorf("%w: %s already has %q", ErrRelationshipExists, side.Key(), name)
			}
		}
	}

	rel := &model.Relationship{
		ID:         tx.s.newID(),
		Name:       name,
		A:          objA.Ref(),
		B:          objB.Ref(),
		Properties: maps.Clone(properties),
	}
	tx.s.insertRelationshipLocked(rel)
	tx.undo = append(tx.undo, func() { tx.s.removeRelationshipLocked(rel) })
	tx.changes.CreatedRelationships = append(tx.changes.CreatedRelationships, *rel)
	return rel.ID, nil
}

// ReleaseRelationship removes a relationship by id.
func (tx *Txn) ReleaseRelationship(id string) error {
	if !tx.writable {
		return ErrReadOnly
	}
	rel, ok := tx.s.relationships[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRelationshipNotFound, id)
	}
	tx.s.removeRelationshipLocked(rel)
	tx.undo = append(tx.undo, func() { tx.s.insertRelationshipLocked(rel) })
	tx.changes.DeletedRelationships = append(tx.changes.DeletedRelationships, id)
	return nil
}

// DeleteObject removes an object without children. Its relationships are
// released when releaseRelationships is set, otherwise their presence is an
// ErrObjectInUse.
func (tx *Txn) DeleteObject(ref core.ObjectRef, releaseRelationships bool) error {
	if !tx.writable {
		return ErrReadOnly
	}
	key := ref.Key()
	obj, ok := tx.s.objects[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	if len(tx.s.children[key]) > 0 {
		return fmt.Errorf("%w: %s contains %d objects", ErrObjectInUse, key, len(tx.s.children[key]))
	}
	rels := tx.Relationships(ref)
	if len(rels) > 0 && !releaseRelationships {
		return fmt.Errorf("%w: %s has %d relationships", ErrObjectInUse, key, len(rels))
	}
	for _, rel := range rels {
		if err := tx.ReleaseRelationship(rel.ID); err != nil {
			return err
		}
	}

	delete(tx.s.objects, key)
	if !obj.Parent.IsZero() {
		tx.s.unindexChildLocked(obj.Parent.Key(), key)
	}
	tx.undo = append(tx.undo, func() {
		tx.s.objects[key] = obj
		if !obj.Parent.IsZero() {
			tx.s.indexChildLocked(obj.Parent.Key(), key)
		}
	})
	tx.changes.DeletedObjects = append(tx.changes.DeletedObjects, obj.Ref())
	return nil
}
