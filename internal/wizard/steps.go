package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

//
// ---------- General info ----------
//

// GeneralInfoStep collects the name and class of the new link.
type GeneralInfoStep struct {
	env     *env
	wctx    Context
	classes []model.ClassInfoLight
}

func (s *GeneralInfoStep) ID() StepID       { return StepGeneralInfo }
func (s *GeneralInfoStep) Title() string    { return "General information" }
func (s *GeneralInfoStep) Context() Context { return s.wctx.clone() }
func (s *GeneralInfoStep) IsFinal() bool    { return false }

// Classes lists the concrete classes the new link may have.
func (s *GeneralInfoStep) Classes() []model.ClassInfoLight {
	return append([]model.ClassInfoLight(nil), s.classes...)
}

// SetName sets the link name.
func (s *GeneralInfoStep) SetName(name string) {
	s.wctx.Name = name
}

// SetClass selects the link class. It must be one of Classes.
func (s *GeneralInfoStep) SetClass(className string) error {
	for _, c := range s.classes {
		if c.Name == className {
			s.wctx.ClassName = className
			return nil
		}
	}
	return fmt.Errorf("%w: %q is not a selectable class", ErrValidation, className)
}

func (s *GeneralInfoStep) Next(ctx context.Context) (Step, error) {
	if strings.TrimSpace(s.wctx.Name) == "" {
		return nil, fmt.Errorf("%w: the name can not be empty", ErrValidation)
	}
	if s.wctx.ClassName == "" {
		return nil, fmt.Errorf("%w: select a connection type", ErrValidation)
	}
	if _, err := core.Capacity(s.wctx.ClassName); err != nil {
		return nil, fmt.Errorf("%w: cannot calculate the capacity of %s: %w", ErrValidation, s.wctx.ClassName, err)
	}

	next := s.wctx.clone()
	if next.Kind == KindTransport {
		return &SelectEndpointsStep{env: s.env, wctx: next}, nil
	}

	kind, err := s.env.finder.GraphKindFor(ctx, next.ClassName)
	if err != nil {
		s.env.log.Warn(ctx, "cannot classify connection", logging.String("class", next.ClassName), logging.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	routes, err := s.env.finder.FindRoutes(ctx, next.EquipmentA, next.EquipmentB, kind)
	if err != nil {
		s.env.log.Warn(ctx, "cannot find routes",
			logging.String("graph", kind.String()),
			logging.String("equipment_a", next.EquipmentA.Key()),
			logging.String("equipment_b", next.EquipmentB.Key()),
			logging.Err(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	next.GraphKind = kind
	next.Routes = routes
	next.Route = core.Unselected
	if len(routes) > 0 {
		next.Route = 0
	}
	return &ChooseRouteStep{env: s.env, wctx: next}, nil
}

//
// ---------- Route ----------
//

// ChooseRouteStep picks one of the routes found between the equipment. The
// first route is preselected.
type ChooseRouteStep struct {
	env  *env
	wctx Context
}

func (s *ChooseRouteStep) ID() StepID       { return StepChooseRoute }
func (s *ChooseRouteStep) Title() string    { return "Choose a route" }
func (s *ChooseRouteStep) Context() Context { return s.wctx.clone() }
func (s *ChooseRouteStep) IsFinal() bool    { return false }

// Routes returns the candidate routes in backend order.
func (s *ChooseRouteStep) Routes() []core.Route {
	return append([]core.Route(nil), s.wctx.Routes...)
}

// Select chooses the route at index i; core.Unselected clears the choice.
func (s *ChooseRouteStep) Select(i int) error {
	if i != core.Unselected && (i < 0 || i >= len(s.wctx.Routes)) {
		return fmt.Errorf("%w: route %d does not exist", ErrValidation, i+1)
	}
	s.wctx.Route = i
	return nil
}

func (s *ChooseRouteStep) Next(ctx context.Context) (Step, error) {
	if len(s.wctx.Routes) == 0 {
		return nil, fmt.Errorf("%w: no route connects %s and %s", ErrValidation, s.wctx.EquipmentA, s.wctx.EquipmentB)
	}
	route, ok := s.wctx.SelectedRoute()
	if !ok {
		return nil, fmt.Errorf("%w: select a route", ErrValidation)
	}
	if len(route.Hops) == 0 {
		return nil, fmt.Errorf("%w: %s has no links", ErrValidation, route.Label)
	}

	next := s.wctx.clone()
	next.Hops = core.NewHopDefinitions(route)
	step := &ChoosePositionsStep{
		env:   s.env,
		wctx:  next,
		maps:  make([][]core.AvailablePosition, len(next.Hops)),
		spans: make([]int, len(next.Hops)),
		errs:  make([]error, len(next.Hops)),
	}
	for i, hop := range next.Hops {
		step.maps[i], step.spans[i], step.errs[i] = s.allocation(ctx, hop.Link, next)
		if step.errs[i] != nil {
			s.env.log.Warn(ctx, "positions unavailable",
				logging.String("link", hop.Link.Key()),
				logging.Err(step.errs[i]),
			)
		}
	}
	return step, nil
}

// allocation builds the allocation map of one hop and the span of the new
// container in it. Failures are kept per hop so the other hops stay usable.
func (s *ChooseRouteStep) allocation(ctx context.Context, link core.ObjectRef, wctx Context) ([]core.AvailablePosition, int, error) {
	var (
		structure []core.SdhContainerLinkDefinition
		err       error
	)
	if wctx.GraphKind == core.TransportGraph {
		structure, err = s.env.backend.GetSDHTransportLinkStructure(ctx, link)
	} else {
		structure, err = s.env.backend.GetSDHContainerLinkStructure(ctx, link)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: structure of %s: %w", ErrLookup, link, err)
	}
	positions, err := core.BuildAvailablePositions(link, structure)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: cannot calculate the positions of %s: %w", ErrValidation, link, err)
	}
	span, err := core.Span(wctx.ContainerClass(), link.ClassName)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s in %s: %w", ErrValidation, wctx.ContainerClass(), link, err)
	}
	return positions, span, nil
}

//
// ---------- Positions ----------
//

// ChoosePositionsStep picks the first position the new container uses in
// every hop of the chosen route.
type ChoosePositionsStep struct {
	env   *env
	wctx  Context
	maps  [][]core.AvailablePosition
	spans []int
	errs  []error
}

func (s *ChoosePositionsStep) ID() StepID       { return StepChoosePositions }
func (s *ChoosePositionsStep) Title() string    { return "Choose the positions" }
func (s *ChoosePositionsStep) Context() Context { return s.wctx.clone() }
func (s *ChoosePositionsStep) IsFinal() bool    { return s.wctx.Kind == KindContainer }

// Hops returns the hops with their current selection.
func (s *ChoosePositionsStep) Hops() []core.HopDefinition {
	return append([]core.HopDefinition(nil), s.wctx.Hops...)
}

// Positions returns the allocation map of a hop, or the reason it could
// not be built.
func (s *ChoosePositionsStep) Positions(hop int) ([]core.AvailablePosition, error) {
	if err := s.checkHop(hop); err != nil {
		return nil, err
	}
	if s.errs[hop] != nil {
		return nil, s.errs[hop]
	}
	return append([]core.AvailablePosition(nil), s.maps[hop]...), nil
}

// Span returns how many consecutive positions the new container needs in
// a hop.
func (s *ChoosePositionsStep) Span(hop int) (int, error) {
	if err := s.checkHop(hop); err != nil {
		return 0, err
	}
	if s.errs[hop] != nil {
		return 0, s.errs[hop]
	}
	return s.spans[hop], nil
}

// SelectPosition records position as the start of the new container in a
// hop. A rejected selection leaves the hop unselected.
func (s *ChoosePositionsStep) SelectPosition(hop, position int) error {
	if err := s.checkHop(hop); err != nil {
		return err
	}
	s.wctx.Hops[hop].Position = core.Unselected
	if s.errs[hop] != nil {
		return s.errs[hop]
	}
	if err := core.ValidateSelection(s.maps[hop], position, s.spans[hop]); err != nil {
		s.env.recorder.PositionRejected(core.RejectionReason(err))
		return fmt.Errorf("hop %d (%s): %w", hop+1, s.wctx.Hops[hop].Link, err)
	}
	s.wctx.Hops[hop].Position = position
	return nil
}

// ClearPosition unselects a hop.
func (s *ChoosePositionsStep) ClearPosition(hop int) error {
	if err := s.checkHop(hop); err != nil {
		return err
	}
	s.wctx.Hops[hop].Position = core.Unselected
	return nil
}

// AutoSelect picks the lowest free run in every unselected hop.
func (s *ChoosePositionsStep) AutoSelect() error {
	for i, h := range s.wctx.Hops {
		if h.Selected() {
			continue
		}
		if s.errs[i] != nil {
			return s.errs[i]
		}
		start, ok := core.FirstFit(s.maps[i], s.spans[i])
		if !ok {
			s.env.recorder.PositionRejected(core.RejectionReason(core.ErrNotEnoughPositions))
			return fmt.Errorf("hop %d (%s): %w", i+1, h.Link, core.ErrNotEnoughPositions)
		}
		s.wctx.Hops[i].Position = start
	}
	return nil
}

func (s *ChoosePositionsStep) checkHop(hop int) error {
	if hop < 0 || hop >= len(s.wctx.Hops) {
		return fmt.Errorf("%w: hop %d does not exist", ErrValidation, hop+1)
	}
	return nil
}

func (s *ChoosePositionsStep) Next(ctx context.Context) (Step, error) {
	for i, h := range s.wctx.Hops {
		if !h.Selected() {
			return nil, fmt.Errorf("%w: no position selected in hop %d (%s)", ErrValidation, i+1, h.Link)
		}
	}
	if s.wctx.Kind == KindTributary {
		return &SelectEndpointsStep{env: s.env, wctx: s.wctx.clone()}, nil
	}
	res, err := s.env.commit(ctx, s.wctx)
	if err != nil {
		return nil, err
	}
	s.wctx.Result = res
	return nil, nil
}

//
// ---------- Endpoints ----------
//

// SelectEndpointsStep picks the ports the new link terminates on. Port A
// must sit in equipment A and port B in equipment B.
type SelectEndpointsStep struct {
	env  *env
	wctx Context
}

func (s *SelectEndpointsStep) ID() StepID       { return StepSelectEndpoints }
func (s *SelectEndpointsStep) Title() string    { return "Select the endpoints" }
func (s *SelectEndpointsStep) Context() Context { return s.wctx.clone() }
func (s *SelectEndpointsStep) IsFinal() bool    { return s.wctx.Kind == KindTransport }

// SetEndpoints sets both ports.
func (s *SelectEndpointsStep) SetEndpoints(a, b core.ObjectRef) {
	s.wctx.PortA = a
	s.wctx.PortB = b
}

func (s *SelectEndpointsStep) Next(ctx context.Context) (Step, error) {
	if s.wctx.PortA.IsZero() || s.wctx.PortB.IsZero() {
		return nil, fmt.Errorf("%w: select both endpoints", ErrValidation)
	}
	if s.wctx.PortA.Same(s.wctx.PortB) {
		return nil, fmt.Errorf("%w: both endpoints are %s", ErrValidation, s.wctx.PortA)
	}
	sides := []struct {
		port, equipment core.ObjectRef
	}{
		{s.wctx.PortA, s.wctx.EquipmentA},
		{s.wctx.PortB, s.wctx.EquipmentB},
	}
	for _, side := range sides {
		if err := s.checkPort(ctx, side.port, side.equipment); err != nil {
			return nil, err
		}
	}

	if s.wctx.Kind == KindTributary {
		services, err := s.env.backend.ListServices(ctx)
		if err != nil {
			s.env.log.Warn(ctx, "cannot list services", logging.Err(err))
			return nil, fmt.Errorf("%w: services: %w", ErrLookup, err)
		}
		return &SelectServiceStep{env: s.env, wctx: s.wctx.clone(), services: services}, nil
	}

	res, err := s.env.commit(ctx, s.wctx)
	if err != nil {
		return nil, err
	}
	s.wctx.Result = res
	return nil, nil
}

func (s *SelectEndpointsStep) checkPort(ctx context.Context, port, equipment core.ObjectRef) error {
	isPort, err := s.env.backend.IsSubclassOf(ctx, port.ClassName, core.ClassGenericPort)
	if err != nil {
		s.env.log.Warn(ctx, "cannot classify endpoint", logging.String("port", port.Key()), logging.Err(err))
		return fmt.Errorf("%w: %w", ErrLookup, err)
	}
	if !isPort {
		return fmt.Errorf("%w: %s is not a port", ErrValidation, port)
	}
	parent, err := s.env.backend.ParentEquipment(ctx, port)
	if err != nil {
		s.env.log.Warn(ctx, "cannot find parent equipment", logging.String("port", port.Key()), logging.Err(err))
		return fmt.Errorf("%w: parent of %s: %w", ErrLookup, port, err)
	}
	if !parent.Same(equipment) {
		return fmt.Errorf("%w: %s is in %s, not in %s", ErrValidation, port, parent, equipment)
	}
	return nil
}

//
// ---------- Service ----------
//

// SelectServiceStep optionally relates the new tributary link to a service.
type SelectServiceStep struct {
	env      *env
	wctx     Context
	services []core.ObjectRef
}

func (s *SelectServiceStep) ID() StepID       { return StepSelectService }
func (s *SelectServiceStep) Title() string    { return "Select a service" }
func (s *SelectServiceStep) Context() Context { return s.wctx.clone() }
func (s *SelectServiceStep) IsFinal() bool    { return true }

// Services lists the services the link can be related to.
func (s *SelectServiceStep) Services() []core.ObjectRef {
	return append([]core.ObjectRef(nil), s.services...)
}

// SelectService relates the link to the service at index i.
func (s *SelectServiceStep) SelectService(i int) error {
	if i < 0 || i >= len(s.services) {
		return fmt.Errorf("%w: service %d does not exist", ErrValidation, i+1)
	}
	svc := s.services[i]
	s.wctx.Service = &svc
	return nil
}

// ClearService creates the link without a service.
func (s *SelectServiceStep) ClearService() {
	s.wctx.Service = nil
}

func (s *SelectServiceStep) Next(ctx context.Context) (Step, error) {
	res, err := s.env.commit(ctx, s.wctx)
	if err != nil {
		return nil, err
	}
	s.wctx.Result = res
	return nil, nil
}

// IsRecoverable reports whether err leaves the wizard usable: validation
// and creation failures can be retried, lookup failures cannot.
func IsRecoverable(err error) bool {
	return err != nil && !errors.Is(err, ErrLookup) && !errors.Is(err, ErrFinished)
}
