package sdh

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/inventory"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

// DeleteSDHTransportLink removes a transport link. A link still carrying
// containers is ErrLinkInUse unless force is set, in which case every
// container it carries is deleted with it, along with whatever those
// containers carry or deliver.
func (s *Service) DeleteSDHTransportLink(ctx context.Context, link core.ObjectRef, force bool) error {
	ctx, span := s.startSpan(ctx, "sdh.DeleteTransportLink",
		attribute.String("link", link.Key()),
		attribute.Bool("force", force),
	)
	var deleted int
	err := s.state.Update(ctx, func(tx *inventory.Txn) error {
		if _, err := tx.Resolve(link); err != nil {
			return err
		}
		if err := requireSubclass(tx, link.ClassName, core.ClassGenericSDHTransportLink); err != nil {
			return err
		}
		carried, err := outgoing(tx, link, RelTransports)
		if err != nil {
			return err
		}
		if len(carried) > 0 && !force {
			return fmt.Errorf("%w: %s carries %d containers", ErrLinkInUse, link.Key(), len(carried))
		}
		for _, c := range carried {
			n, err := deleteContainer(tx, c)
			if err != nil {
				return err
			}
			deleted += n
		}
		if err := tx.DeleteObject(link, true); err != nil {
			return err
		}
		deleted++
		return nil
	})
	endSpan(span, err)
	s.logDelete(ctx, "transport link", link, deleted, err)
	return err
}

// DeleteSDHContainerLink removes a container link. A structured container
// with children is ErrLinkInUse unless force is set. A tributary the
// container delivers is always deleted with it.
func (s *Service) DeleteSDHContainerLink(ctx context.Context, link core.ObjectRef, force bool) error {
	ctx, span := s.startSpan(ctx, "sdh.DeleteContainerLink",
		attribute.String("link", link.Key()),
		attribute.Bool("force", force),
	)
	var deleted int
	err := s.state.Update(ctx, func(tx *inventory.Txn) error {
		if _, err := tx.Resolve(link); err != nil {
			return err
		}
		if err := requireSubclass(tx, link.ClassName, core.ClassGenericSDHContainerLink); err != nil {
			return err
		}
		children, err := outgoing(tx, link, RelContains)
		if err != nil {
			return err
		}
		if len(children) > 0 && !force {
			return fmt.Errorf("%w: %s contains %d containers", ErrLinkInUse, link.Key(), len(children))
		}
		deleted, err = deleteContainer(tx, link)
		return err
	})
	endSpan(span, err)
	s.logDelete(ctx, "container link", link, deleted, err)
	return err
}

// DeleteSDHTributaryLink removes a tributary link and the containers
// delivering it.
func (s *Service) DeleteSDHTributaryLink(ctx context.Context, link core.ObjectRef) error {
	ctx, span := s.startSpan(ctx, "sdh.DeleteTributaryLink", attribute.String("link", link.Key()))
	var deleted int
	err := s.state.Update(ctx, func(tx *inventory.Txn) error {
		if _, err := tx.Resolve(link); err != nil {
			return err
		}
		if err := requireSubclass(tx, link.ClassName, core.ClassGenericSDHTributaryLink); err != nil {
			return err
		}
		var err error
		deleted, err = deleteTributary(tx, link)
		return err
	})
	endSpan(span, err)
	s.logDelete(ctx, "tributary link", link, deleted, err)
	return err
}

func (s *Service) logDelete(ctx context.Context, what string, link core.ObjectRef, deleted int, err error) {
	if err != nil {
		s.log.Warn(ctx, what+" not deleted", logging.String("link", link.Key()), logging.Err(err))
		return
	}
	s.log.Info(ctx, what+" deleted", logging.String("link", link.Key()), logging.Int("deleted_objects", deleted))
}

// deleteContainer removes container after its children and the tributary
// it delivers. Objects already removed earlier in the same cascade are
// skipped.
func deleteContainer(tx *inventory.Txn, container core.ObjectRef) (int, error) {
	if _, err := tx.Resolve(container); err != nil {
		if errors.Is(err, inventory.ErrObjectNotFound) {
			return 0, nil
		}
		return 0, err
	}
	deleted := 0
	children, err := outgoing(tx, container, RelContains)
	if err != nil {
		return 0, err
	}
	for _, c := range children {
		n, err := deleteContainer(tx, c)
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	delivered, err := outgoing(tx, container, RelDelivers)
	if err != nil {
		return deleted, err
	}
	for _, t := range delivered {
		if err := tx.DeleteObject(t, true); err != nil {
			return deleted, err
		}
		deleted++
	}
	if err := tx.DeleteObject(container, true); err != nil {
		return deleted, err
	}
	return deleted + 1, nil
}

func deleteTributary(tx *inventory.Txn, tributary core.ObjectRef) (int, error) {
	related, err := tx.AnnotatedSpecialAttribute(tributary, RelDelivers)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, r := range related {
		if r.Outgoing {
			continue
		}
		n, err := deleteContainer(tx, r.Object)
		if err != nil {
			return deleted, err
		}
		deleted += n
	}
	if _, err := tx.Resolve(tributary); err != nil {
		if errors.Is(err, inventory.ErrObjectNotFound) {
			return deleted, nil
		}
		return deleted, err
	}
	if err := tx.DeleteObject(tributary, true); err != nil {
		return deleted, err
	}
	return deleted + 1, nil
}

// outgoing returns the objects on side B of the rel relationships where ref
// is side A.
func outgoing(tx *inventory.Txn, ref core.ObjectRef, rel string) ([]core.ObjectRef, error) {
	related, err := tx.AnnotatedSpecialAttribute(ref, rel)
	if err != nil {
		return nil, err
	}
	var res []core.ObjectRef
	for _, r := range related {
		if r.Outgoing {
			res = append(res, r.Object)
		}
	}
	return res, nil
}

// SeedTransportLinks creates the transport links of a seed file that are
// not in the inventory yet. A link is considered present when its id
// exists or, for links without an id, when its A port already terminates
// a transport link.
func (s *Service) SeedTransportLinks(ctx context.Context, links []inventory.SeedTransportLink) (int, error) {
	created := 0
	for i, l := range links {
		portA, err := core.ParseObjectRef(l.PortA)
		if err != nil {
			return created, fmt.Errorf("transport_links/%d: %w", i, err)
		}
		portB, err := core.ParseObjectRef(l.PortB)
		if err != nil {
			return created, fmt.Errorf("transport_links/%d: %w", i, err)
		}

		var present bool
		err = s.state.View(func(tx *inventory.Txn) error {
			if l.ID != "" {
				_, err := tx.Resolve(core.NewObjectRef(l.Class, l.ID, l.Name))
				present = err == nil
				return nil
			}
			present = tx.HasSpecialAttribute(portA, RelTransportLinkEndpointA) ||
				tx.HasSpecialAttribute(portA, RelTransportLinkEndpointB)
			return nil
		})
		if err != nil {
			return created, err
		}
		if present {
			continue
		}

		_, err = s.CreateSDHTransportLink(ctx, model.TransportLinkRequest{
			ID:        l.ID,
			PortA:     portA,
			PortB:     portB,
			ClassName: l.Class,
			Name:      l.Name,
		})
		if err != nil {
			return created, fmt.Errorf("seed transport link %q: %w", l.Name, err)
		}
		created++
	}
	return created, nil
}
