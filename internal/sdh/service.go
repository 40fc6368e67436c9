// Package sdh implements the SDH connection model on top of the inventory:
// transport, container and tributary links, their timeslot structure and
// the routes between equipment.
package sdh

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/inventory"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

const tracerName = "github.com/signalsfoundry/sdh-provisioner/internal/sdh"

// MetricsRecorder receives allocation rejections seen while committing.
type MetricsRecorder interface {
	PositionRejected(reason string)
}

// Service is the in-process SDH backend.
type Service struct {
	state        *inventory.State
	log          logging.Logger
	metrics      MetricsRecorder
	maxRouteHops int
}

// Option customises Service construction.
type Option func(*Service)

// WithMaxRouteHops bounds route searches; 0 keeps the inventory default.
func WithMaxRouteHops(n int) Option {
	return func(s *Service) {
		s.maxRouteHops = n
	}
}

// WithMetricsRecorder attaches an optional recorder for rejected positions.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService wires the SDH operations to an inventory.
func NewService(state *inventory.State, log logging.Logger, opts ...Option) *Service {
	if log == nil {
		log = logging.Noop()
	}
	s := &Service{state: state, log: log}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// State exposes the underlying inventory.
func (s *Service) State() *inventory.State {
	return s.state
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

//
// ---------- Class metadata ----------
//

// IsSubclassOf reports whether className is allegedParent or inherits from it.
func (s *Service) IsSubclassOf(_ context.Context, className, allegedParent string) (bool, error) {
	return s.state.Classes().IsSubclassOf(className, allegedParent)
}

// SubClassesLight lists the subclasses of parent, sorted by name.
func (s *Service) SubClassesLight(_ context.Context, parent string, includeAbstract, includeSelf bool) ([]model.ClassInfoLight, error) {
	return s.state.Classes().SubClassesLight(parent, includeAbstract, includeSelf)
}

func requireSubclass(tx *inventory.Txn, className, parent string) error {
	ok, err := tx.IsSubclassOf(className, parent)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s is not a %s", ErrNotSubclass, className, parent)
	}
	return nil
}

//
// ---------- Routes ----------
//

// FindSDHRoutesUsingTransportLinks returns the routes between two
// equipment over transport links.
func (s *Service) FindSDHRoutesUsingTransportLinks(ctx context.Context, a, b core.ObjectRef) ([][]core.ObjectRef, error) {
	return s.findRoutes(ctx, a, b, RelTransportLink)
}

// FindSDHRoutesUsingContainerLinks returns the routes between two equipment
// over container links.
func (s *Service) FindSDHRoutesUsingContainerLinks(ctx context.Context, a, b core.ObjectRef) ([][]core.ObjectRef, error) {
	return s.findRoutes(ctx, a, b, RelContainerLink)
}

func (s *Service) findRoutes(_ context.Context, a, b core.ObjectRef, rel string) ([][]core.ObjectRef, error) {
	var routes [][]core.ObjectRef
	err := s.state.View(func(tx *inventory.Txn) error {
		for _, eq := range []core.ObjectRef{a, b} {
			if err := requireSubclass(tx, eq.ClassName, core.ClassGenericCommunicationsElement); err != nil {
				return err
			}
		}
		var err error
		routes, err = tx.FindRoutesThroughSpecialRelationships(a, b, rel, s.maxRouteHops)
		return err
	})
	return routes, err
}

//
// ---------- Structure ----------
//

// GetSDHTransportLinkStructure lists the containers carried by a transport
// link with the position each one uses in it.
func (s *Service) GetSDHTransportLinkStructure(_ context.Context, link core.ObjectRef) ([]core.SdhContainerLinkDefinition, error) {
	var res []core.SdhContainerLinkDefinition
	err := s.state.View(func(tx *inventory.Txn) error {
		var err error
		res, err = transportLinkStructure(tx, link)
		return err
	})
	return res, err
}

// GetSDHContainerLinkStructure lists the containers carried by a
// high-order container link.
func (s *Service) GetSDHContainerLinkStructure(_ context.Context, link core.ObjectRef) ([]core.SdhContainerLinkDefinition, error) {
	var res []core.SdhContainerLinkDefinition
	err := s.state.View(func(tx *inventory.Txn) error {
		var err error
		res, err = containerLinkStructure(tx, link)
		return err
	})
	return res, err
}

// AvailablePositions returns the allocation map of a transport or
// high-order container link.
func (s *Service) AvailablePositions(_ context.Context, link core.ObjectRef) ([]core.AvailablePosition, error) {
	var res []core.AvailablePosition
	err := s.state.View(func(tx *inventory.Txn) error {
		var err error
		res, err = allocationMap(tx, link)
		return err
	})
	return res, err
}

func transportLinkStructure(tx *inventory.Txn, link core.ObjectRef) ([]core.SdhContainerLinkDefinition, error) {
	if err := requireSubclass(tx, link.ClassName, core.ClassGenericSDHTransportLink); err != nil {
		return nil, err
	}
	return carriedContainers(tx, link, RelTransports)
}

func containerLinkStructure(tx *inventory.Txn, link core.ObjectRef) ([]core.SdhContainerLinkDefinition, error) {
	if err := requireSubclass(tx, link.ClassName, core.ClassGenericSDHHighOrderContainer); err != nil {
		return nil, err
	}
	return carriedContainers(tx, link, RelContains)
}

// carriedContainers follows rel from link to the containers it carries.
// Only relationships where link is side A count: a container is carried
// by, not carrying, the links on side B.
func carriedContainers(tx *inventory.Txn, link core.ObjectRef, rel string) ([]core.SdhContainerLinkDefinition, error) {
	resolved, err := tx.Resolve(link)
	if err != nil {
		return nil, err
	}
	related, err := tx.AnnotatedSpecialAttribute(resolved, rel)
	if err != nil {
		return nil, err
	}

	var res []core.SdhContainerLinkDefinition
	for _, r := range related {
		if !r.Outgoing {
			continue
		}
		raw, ok := r.Properties[PropertyPosition]
		if !ok {
			return nil, fmt.Errorf("%w: container %s is related to %s but no position is specified",
				ErrMetadata, r.Object, resolved)
		}
		pos, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: container %s has position %q in %s", ErrMetadata, r.Object, raw, resolved)
		}
		res = append(res, core.SdhContainerLinkDefinition{
			Container:  r.Object,
			Structured: !tx.HasSpecialAttribute(r.Object, RelDelivers),
			Positions: []core.SdhPosition{{
				LinkClass: resolved.ClassName,
				LinkID:    resolved.ID,
				Position:  pos,
			}},
		})
	}
	return res, nil
}

func allocationMap(tx *inventory.Txn, link core.ObjectRef) ([]core.AvailablePosition, error) {
	isTransport, err := tx.IsSubclassOf(link.ClassName, core.ClassGenericSDHTransportLink)
	if err != nil {
		return nil, err
	}
	var structure []core.SdhContainerLinkDefinition
	if isTransport {
		structure, err = transportLinkStructure(tx, link)
	} else {
		structure, err = containerLinkStructure(tx, link)
	}
	if err != nil {
		return nil, err
	}
	return core.BuildAvailablePositions(link, structure)
}

//
// ---------- Lookups ----------
//

// ListServices returns the services a tributary link can be related to.
func (s *Service) ListServices(_ context.Context) ([]core.ObjectRef, error) {
	var res []core.ObjectRef
	err := s.state.View(func(tx *inventory.Txn) error {
		var err error
		res, err = tx.ObjectsOfClass(core.ClassGenericService)
		return err
	})
	return res, err
}

// ListEquipment returns the communications equipment in the inventory.
func (s *Service) ListEquipment(_ context.Context) ([]core.ObjectRef, error) {
	var res []core.ObjectRef
	err := s.state.View(func(tx *inventory.Txn) error {
		var err error
		res, err = tx.ObjectsOfClass(core.ClassGenericCommunicationsElement)
		return err
	})
	return res, err
}

// ParentEquipment returns the communications equipment a port sits in.
func (s *Service) ParentEquipment(_ context.Context, port core.ObjectRef) (core.ObjectRef, error) {
	var res core.ObjectRef
	err := s.state.View(func(tx *inventory.Txn) error {
		var err error
		res, err = parentEquipment(tx, port)
		return err
	})
	return res, err
}

func parentEquipment(tx *inventory.Txn, port core.ObjectRef) (core.ObjectRef, error) {
	eq, ok, err := tx.FirstParentOfClass(port, core.ClassGenericCommunicationsElement)
	if err != nil {
		return core.ObjectRef{}, err
	}
	if !ok {
		return core.ObjectRef{}, fmt.Errorf("%w: %s", ErrNoParentEquipment, port.Key())
	}
	return eq, nil
}
