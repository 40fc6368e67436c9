package inventory

import (
	"context"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

// Changeset lists everything one Update did, in the order a journal must
// replay it: created objects, created relationships, released
// relationships, deleted objects.
type Changeset struct {
	CreatedObjects       []model.BusinessObject
	CreatedRelationships []model.Relationship
	DeletedRelationships []string
	DeletedObjects       []core.ObjectRef
}

// Empty reports whether the changeset carries no change.
func (c Changeset) Empty() bool {
	return len(c.CreatedObjects) == 0 &&
		len(c.CreatedRelationships) == 0 &&
		len(c.DeletedRelationships) == 0 &&
		len(c.DeletedObjects) == 0
}

// Journal persists changesets. Apply must be all-or-nothing: when it
// returns an error nothing of cs may remain persisted.
type Journal interface {
	Apply(ctx context.Context, cs Changeset) error
}
