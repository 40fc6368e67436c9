package sdh

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/inventory"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

// CreateSDHTransportLink creates an STM link between two ports and relates
// it to the equipment holding them, so routes can be found equipment to
// equipment.
func (s *Service) CreateSDHTransportLink(ctx context.Context, req model.TransportLinkRequest) (string, error) {
	ctx, span := s.startSpan(ctx, "sdh.CreateTransportLink",
		attribute.String("link.class", req.ClassName),
		attribute.String("port.a", req.PortA.Key()),
		attribute.String("port.b", req.PortB.Key()),
	)
	log := s.log.With(logging.String("operation", "create_transport_link"), logging.String("class", req.ClassName))

	var linkID string
	err := s.state.Update(ctx, func(tx *inventory.Txn) error {
		if err := validateName(req.Name); err != nil {
			return err
		}
		if err := requireSubclass(tx, req.ClassName, core.ClassGenericSDHTransportLink); err != nil {
			return err
		}
		if _, err := core.SlotCount(req.ClassName); err != nil {
			return err
		}
		if req.PortA.Same(req.PortB) {
			return fmt.Errorf("%w: both endpoints are %s", ErrInvalidRequest, req.PortA.Key())
		}

		var equipment [2]core.ObjectRef
		for i, port := range []core.ObjectRef{req.PortA, req.PortB} {
			if _, err := tx.Resolve(port); err != nil {
				return err
			}
			if err := requireSubclass(tx, port.ClassName, core.ClassGenericPort); err != nil {
				return err
			}
			if tx.HasSpecialAttribute(port, RelTransportLinkEndpointA) || tx.HasSpecialAttribute(port, RelTransportLinkEndpointB) {
				return fmt.Errorf("%w: %s", ErrPortInUse, port.Key())
			}
			eq, err := parentEquipment(tx, port)
			if err != nil {
				return err
			}
			equipment[i] = eq
		}

		link, err := tx.CreateObject(model.BusinessObject{ClassName: req.ClassName, ID: req.ID, Name: req.Name})
		if err != nil {
			return err
		}
		err = createRelations(tx, []relation{
			{RelTransportLinkEndpointA, link, req.PortA, true},
			{RelTransportLinkEndpointB, link, req.PortB, true},
			{RelTransportLink, equipment[0], link, false},
			{RelTransportLink, link, equipment[1], false},
		})
		if err != nil {
			return err
		}
		linkID = link.ID
		return nil
	})
	endSpan(span, err)
	if err != nil {
		log.Warn(ctx, "transport link rejected", logging.Err(err))
		return "", err
	}
	log.Info(ctx, "transport link created", logging.String("link_id", linkID), logging.String("name", req.Name))
	return linkID, nil
}

// CreateSDHContainerLink creates a container link between two equipment
// and places it at the given positions of the links along its route. Each
// position is checked against the link's current allocation map before
// anything is written.
func (s *Service) CreateSDHContainerLink(ctx context.Context, req model.ContainerLinkRequest) (string, error) {
	ctx, span := s.startSpan(ctx, "sdh.CreateContainerLink",
		attribute.String("link.class", req.ClassName),
		attribute.Int("positions", len(req.Positions)),
	)
	log := s.log.With(logging.String("operation", "create_container_link"), logging.String("class", req.ClassName))

	var linkID string
	err := s.state.Update(ctx, func(tx *inventory.Txn) error {
		if err := validateName(req.Name); err != nil {
			return err
		}
		if err := requireSubclass(tx, req.ClassName, core.ClassGenericSDHContainerLink); err != nil {
			return err
		}
		if len(req.Positions) == 0 {
			return fmt.Errorf("%w: a container link needs at least one position", ErrInvalidRequest)
		}
		for _, eq := range []core.ObjectRef{req.EquipmentA, req.EquipmentB} {
			if _, err := tx.Resolve(eq); err != nil {
				return err
			}
			if err := requireSubclass(tx, eq.ClassName, core.ClassGenericCommunicationsElement); err != nil {
				return err
			}
		}
		rel, err := carrierRelationship(tx, req.ClassName, core.ClassGenericSDHHighOrderContainer, core.ClassGenericSDHLowOrderContainer)
		if err != nil {
			return err
		}

		link, err := tx.CreateObject(model.BusinessObject{ClassName: req.ClassName, Name: req.Name})
		if err != nil {
			return err
		}
		err = createRelations(tx, []relation{
			{RelContainerLink, req.EquipmentA, link, false},
			{RelContainerLink, link, req.EquipmentB, false},
		})
		if err != nil {
			return err
		}
		if err := s.placeContainer(tx, link, req.Positions, rel); err != nil {
			return err
		}
		linkID = link.ID
		return nil
	})
	endSpan(span, err)
	if err != nil {
		log.Warn(ctx, "container link rejected", logging.Err(err))
		return "", err
	}
	log.Info(ctx, "container link created",
		logging.String("link_id", linkID),
		logging.String("name", req.Name),
		logging.Int("hops", len(req.Positions)),
	)
	return linkID, nil
}

// CreateSDHTributaryLink creates a tributary link between two ports and
// the container delivering it. High-order tributaries ride transport links
// and low-order ones ride high-order containers.
func (s *Service) CreateSDHTributaryLink(ctx context.Context, req model.TributaryLinkRequest) (model.TributaryLinkResult, error) {
	ctx, span := s.startSpan(ctx, "sdh.CreateTributaryLink",
		attribute.String("link.class", req.ClassName),
		attribute.Int("positions", len(req.Positions)),
	)
	log := s.log.With(logging.String("operation", "create_tributary_link"), logging.String("class", req.ClassName))

	var res model.TributaryLinkResult
	err := s.state.Update(ctx, func(tx *inventory.Txn) error {
		if err := validateName(req.Name); err != nil {
			return err
		}
		if err := requireSubclass(tx, req.ClassName, core.ClassGenericSDHTributaryLink); err != nil {
			return err
		}
		containerClass := core.ContainerClassOf(req.ClassName)
		if err := requireSubclass(tx, containerClass, core.ClassGenericSDHContainerLink); err != nil {
			return err
		}
		if len(req.Positions) == 0 {
			return fmt.Errorf("%w: a tributary link needs at least one position", ErrInvalidRequest)
		}
		if req.PortA.Same(req.PortB) {
			return fmt.Errorf("%w: both endpoints are %s", ErrInvalidRequest, req.PortA.Key())
		}
		for _, port := range []core.ObjectRef{req.PortA, req.PortB} {
			if _, err := tx.Resolve(port); err != nil {
				return err
			}
			if err := requireSubclass(tx, port.ClassName, core.ClassGenericPort); err != nil {
				return err
			}
			if tx.HasSpecialAttribute(port, RelTributaryEndpointA) || tx.HasSpecialAttribute(port, RelTributaryEndpointB) {
				return fmt.Errorf("%w: %s", ErrPortInUse, port.Key())
			}
		}
		if req.Service != nil {
			if _, err := tx.Resolve(*req.Service); err != nil {
				return err
			}
			if err := requireSubclass(tx, req.Service.ClassName, core.ClassGenericService); err != nil {
				return err
			}
		}
		rel, err := carrierRelationship(tx, req.ClassName, core.ClassGenericSDHHighOrderTributary, core.ClassGenericSDHLowOrderTributary)
		if err != nil {
			return err
		}

		container, err := tx.CreateObject(model.BusinessObject{ClassName: containerClass, Name: req.Name})
		if err != nil {
			return err
		}
		tributary, err := tx.CreateObject(model.BusinessObject{ClassName: req.ClassName, Name: req.Name})
		if err != nil {
			return err
		}
		relations := []relation{
			{RelTributaryEndpointA, tributary, req.PortA, true},
			{RelTributaryEndpointB, tributary, req.PortB, true},
			{RelDelivers, container, tributary, true},
		}
		if req.Service != nil {
			relations = append(relations, relation{RelUses, *req.Service, tributary, false})
		}
		if err := createRelations(tx, relations); err != nil {
			return err
		}
		if err := s.placeContainer(tx, container, req.Positions, rel); err != nil {
			return err
		}
		res = model.TributaryLinkResult{TributaryLink: tributary, Container: container}
		return nil
	})
	endSpan(span, err)
	if err != nil {
		log.Warn(ctx, "tributary link rejected", logging.Err(err))
		return model.TributaryLinkResult{}, err
	}
	log.Info(ctx, "tributary link created",
		logging.String("link_id", res.TributaryLink.ID),
		logging.String("container_id", res.Container.ID),
		logging.Bool("service_related", req.Service != nil),
	)
	return res, nil
}

// carrierRelationship picks how a new container hangs off its carriers:
// high-order ones are transported by STM links, low-order ones are
// contained in high-order containers.
func carrierRelationship(tx *inventory.Txn, className, highOrder, lowOrder string) (string, error) {
	ok, err := tx.IsSubclassOf(className, highOrder)
	if err != nil {
		return "", err
	}
	if ok {
		return RelTransports, nil
	}
	if ok, err = tx.IsSubclassOf(className, lowOrder); err != nil {
		return "", err
	}
	if ok {
		return RelContains, nil
	}
	return "", fmt.Errorf("%w: %s is neither high nor low order", ErrNotSubclass, className)
}

// placeContainer validates and claims every position for container. Claims
// are visible to later positions of the same request, so a link listed
// twice cannot be double-booked.
func (s *Service) placeContainer(tx *inventory.Txn, container core.ObjectRef, positions []core.SdhPosition, rel string) error {
	carrierClass := core.ClassGenericSDHTransportLink
	if rel == RelContains {
		carrierClass = core.ClassGenericSDHHighOrderContainer
	}
	seen := make(map[string]bool, len(positions))
	for _, p := range positions {
		if seen[p.Link().Key()] {
			return fmt.Errorf("%w: %s is listed more than once", ErrInvalidRequest, p.Link().Key())
		}
		seen[p.Link().Key()] = true

		link, err := tx.Resolve(p.Link())
		if err != nil {
			return err
		}
		if err := requireSubclass(tx, link.ClassName, carrierClass); err != nil {
			return err
		}
		if rel == RelContains && tx.HasSpecialAttribute(link, RelDelivers) {
			return fmt.Errorf("%w: %s delivers a tributary and cannot carry containers", ErrLinkInUse, link)
		}
		available, err := allocationMap(tx, link)
		if err != nil {
			return err
		}
		span, err := core.Span(container.ClassName, link.ClassName)
		if err == nil {
			err = core.ValidateSelection(available, p.Position, span)
		}
		if err != nil {
			if s.metrics != nil {
				s.metrics.PositionRejected(core.RejectionReason(err))
			}
			return fmt.Errorf("position %d in %s: %w", p.Position, link, err)
		}
		props := map[string]string{PropertyPosition: strconv.Itoa(p.Position)}
		if _, err := tx.CreateSpecialRelationship(rel, link, container, props, false); err != nil {
			return err
		}
	}
	return nil
}

type relation struct {
	name   string
	a, b   core.ObjectRef
	unique bool
}

func createRelations(tx *inventory.Txn, relations []relation) error {
	for _, r := range relations {
		if _, err := tx.CreateSpecialRelationship(r.name, r.a, r.b, nil, r.unique); err != nil {
			return err
		}
	}
	return nil
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalidRequest)
	}
	return nil
}
