package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/sdh-provisioner/model"
)

var (
	ErrClassNotFound = errors.New("class not found")
	ErrClassExists   = errors.New("class already exists")
	ErrClassBadInput = errors.New("invalid class")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventClassAdded EventType = iota
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type  EventType
	Class model.ClassMetadata
}

// KnowledgeBase is an in-memory, thread-safe store of class metadata.
type KnowledgeBase struct {
	mu sync.RWMutex

	classes  map[string]*model.ClassMetadata
	children map[string][]string

	subs []func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		classes:  make(map[string]*model.ClassMetadata),
		children: make(map[string][]string),
	}
}

// NewSDHKnowledgeBase returns a KB preloaded with DefaultSDHClasses.
func NewSDHKnowledgeBase() *KnowledgeBase {
	kb := NewKnowledgeBase()
	for _, c := range DefaultSDHClasses() {
		// The default hierarchy is ordered parents first.
		if err := kb.AddClass(c); err != nil {
			panic(err)
		}
	}
	return kb
}

// AddClass registers a class. The parent, when set, must already exist.
func (kb *KnowledgeBase) AddClass(c model.ClassMetadata) error {
	if c.Name == "" {
		return fmt.Errorf("%w: empty class name", ErrClassBadInput)
	}

	kb.mu.Lock()
	if _, exists := kb.classes[c.Name]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrClassExists, c.Name)
	}
	if c.Parent != "" {
		if _, ok := kb.classes[c.Parent]; !ok {
			kb.mu.Unlock()
			return fmt.Errorf("%w: parent %q of %q", ErrClassNotFound, c.Parent, c.Name)
		}
	}
	cp := c
	kb.classes[c.Name] = &cp
	if c.Parent != "" {
		kb.children[c.Parent] = append(kb.children[c.Parent], c.Name)
	}
	subs := append([]func(Event){}, kb.subs...)
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(Event{Type: EventClassAdded, Class: cp})
	}
	return nil
}

// GetClass returns a copy of the class metadata.
func (kb *KnowledgeBase) GetClass(name string) (model.ClassMetadata, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	c, ok := kb.classes[name]
	if !ok {
		return model.ClassMetadata{}, fmt.Errorf("%w: %q", ErrClassNotFound, name)
	}
	return *c, nil
}

// IsSubclassOf reports whether className is allegedParent or inherits from
// it. Unknown classes are an error, not a negative answer.
func (kb *KnowledgeBase) IsSubclassOf(className, allegedParent string) (bool, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	c, ok := kb.classes[className]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrClassNotFound, className)
	}
	for c != nil {
		if c.Name == allegedParent {
			return true, nil
		}
		c = kb.classes[c.Parent]
	}
	return false, nil
}

// SubClassesLight lists the subclasses of parent at any depth, sorted by
// name.
func (kb *KnowledgeBase) SubClassesLight(parent string, includeAbstract, includeSelf bool) ([]model.ClassInfoLight, error) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	root, ok := kb.classes[parent]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrClassNotFound, parent)
	}

	var res []model.ClassInfoLight
	if includeSelf && (includeAbstract || !root.Abstract) {
		res = append(res, root.Light())
	}
	queue := append([]string(nil), kb.children[parent]...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		c := kb.classes[name]
		if includeAbstract || !c.Abstract {
			res = append(res, c.Light())
		}
		queue = append(queue, kb.children[name]...)
	}

	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res, nil
}

// ListClasses returns a snapshot slice of all classes, sorted by name.
func (kb *KnowledgeBase) ListClasses() []model.ClassMetadata {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.ClassMetadata, 0, len(kb.classes))
	for _, c := range kb.classes {
		res = append(res, *c)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.subs = append(kb.subs, fn)
	idx := len(kb.subs) - 1

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		if idx < 0 || idx >= len(kb.subs) {
			return
		}
		kb.subs = append(kb.subs[:idx], kb.subs[idx+1:]...)
		idx = -1
	}
}
