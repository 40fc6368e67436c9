package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/inventory"
	"github.com/signalsfoundry/sdh-provisioner/kb"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventory.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)

		var version int
		require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
		require.Equal(t, currentSchemaVersion, version)
		require.NoError(t, s.Close())
	}
}

func TestApplyAndLoadRoundTripThroughInventory(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	st := inventory.NewState(kb.NewSDHKnowledgeBase(), nil, inventory.WithJournal(s))
	var router, port, link core.ObjectRef
	err := st.Update(ctx, func(tx *inventory.Txn) error {
		var err error
		if router, err = tx.CreateObject(model.BusinessObject{ClassName: "ADM", ID: "adm-1", Name: "ADM 1"}); err != nil {
			return err
		}
		if port, err = tx.CreateObject(model.BusinessObject{ClassName: "OpticalPort", ID: "p-1", Name: "1/1", Parent: router,
			Attributes: map[string]string{"rate": "STM16"}}); err != nil {
			return err
		}
		if link, err = tx.CreateObject(model.BusinessObject{ClassName: "STM16", ID: "tl-1", Name: "A-B"}); err != nil {
			return err
		}
		_, err = tx.CreateSpecialRelationship("sdhTLEndpointA", link, port, map[string]string{"note": "x"}, true)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, st.Update(ctx, func(tx *inventory.Txn) error {
		_, err := tx.CreateObject(model.BusinessObject{ClassName: "VC4", ID: "c-1", Name: "container"})
		return err
	}))
	require.NoError(t, st.Update(ctx, func(tx *inventory.Txn) error {
		return tx.DeleteObject(core.NewObjectRef("VC4", "c-1", ""), true)
	}))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	objects, rels, err := reopened.Load(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 3)
	require.Equal(t, "adm-1", objects[0].ID, "objects come back in creation order")
	require.Equal(t, "adm-1", objects[1].Parent.ID)
	require.Equal(t, "STM16", objects[1].Attributes["rate"])
	require.Len(t, rels, 1)
	require.Equal(t, "sdhTLEndpointA", rels[0].Name)
	require.Equal(t, "x", rels[0].Properties["note"])

	restored := inventory.NewState(kb.NewSDHKnowledgeBase(), nil)
	n, err := reopened.Restore(ctx, restored)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, 1, restored.Counts().TransportLinks)
}

func TestApplyIsAtomic(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	obj := model.BusinessObject{ClassName: "ADM", ID: "adm-1", Name: "ADM 1"}
	require.NoError(t, s.Apply(ctx, inventory.Changeset{CreatedObjects: []model.BusinessObject{obj}}))

	// The second object collides, so the first one of the batch must not stick.
	err := s.Apply(ctx, inventory.Changeset{CreatedObjects: []model.BusinessObject{
		{ClassName: "ADM", ID: "adm-2", Name: "ADM 2"},
		obj,
	}})
	require.Error(t, err)

	objects, _, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 1)
}

func TestRelationshipsFollowDeletedObjects(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	a := model.BusinessObject{ClassName: "ADM", ID: "a", Name: "A"}
	l := model.BusinessObject{ClassName: "STM1", ID: "l", Name: "L"}
	require.NoError(t, s.Apply(ctx, inventory.Changeset{
		CreatedObjects:       []model.BusinessObject{a, l},
		CreatedRelationships: []model.Relationship{{ID: "r1", Name: "sdhTransportLink", A: a.Ref(), B: l.Ref()}},
	}))
	require.NoError(t, s.Apply(ctx, inventory.Changeset{DeletedObjects: []core.ObjectRef{l.Ref()}}))

	_, rels, err := s.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, rels)

	err = s.Apply(ctx, inventory.Changeset{
		CreatedRelationships: []model.Relationship{{ID: "r2", Name: "x", A: a.Ref(), B: l.Ref()}},
	})
	require.Error(t, err, "foreign keys must reject dangling relationships")
}
