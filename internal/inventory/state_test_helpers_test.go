package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/kb"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

// newStateForTest returns an inventory with sequential ids (id-1, id-2, ...).
func newStateForTest(t *testing.T, opts ...Option) *State {
	t.Helper()
	n := 0
	opts = append([]Option{WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})}, opts...)
	return NewState(kb.NewSDHKnowledgeBase(), nil, opts...)
}

func mustCreate(t *testing.T, s *State, obj model.BusinessObject) core.ObjectRef {
	t.Helper()
	var ref core.ObjectRef
	err := s.Update(context.Background(), func(tx *Txn) error {
		var err error
		ref, err = tx.CreateObject(obj)
		return err
	})
	if err != nil {
		t.Fatalf("CreateObject(%s) error: %v", obj.Ref().Key(), err)
	}
	return ref
}

func mustRelate(t *testing.T, s *State, name string, a, b core.ObjectRef) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Txn) error {
		_, err := tx.CreateSpecialRelationship(name, a, b, nil, false)
		return err
	})
	if err != nil {
		t.Fatalf("CreateSpecialRelationship(%s) error: %v", name, err)
	}
}

type recordingJournal struct {
	applied []Changeset
	fail    error
}

func (j *recordingJournal) Apply(_ context.Context, cs Changeset) error {
	if j.fail != nil {
		return j.fail
	}
	j.applied = append(j.applied, cs)
	return nil
}

type fakeMetrics struct {
	transport, container, tributary, services int
	calls                                     int
}

func (m *fakeMetrics) SetInventoryCounts(transport, container, tributary, services int) {
	m.transport, m.container, m.tributary, m.services = transport, container, tributary, services
	m.calls++
}
