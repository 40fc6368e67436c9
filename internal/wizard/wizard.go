// Package wizard drives the creation of SDH links as a sequence of steps.
//
// Every wizard starts at GeneralInfo. Container and tributary links then
// choose a route and a position in every hop of it; transport links only
// choose their ports. The last step creates the link and returns a nil next
// step. A failing Next leaves the wizard on the same step.
package wizard

import (
	"context"
	"fmt"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/model"
)

// StepID names a step.
type StepID string

const (
	StepGeneralInfo     StepID = "general-info"
	StepChooseRoute     StepID = "choose-route"
	StepChoosePositions StepID = "choose-positions"
	StepSelectEndpoints StepID = "select-endpoints"
	StepSelectService   StepID = "select-service"
)

// Step is one page of a wizard.
type Step interface {
	ID() StepID
	Title() string
	// Context returns a copy of the data collected so far.
	Context() Context
	// Next validates the step and returns the following one, or nil when
	// the step was final and the link has been created.
	Next(ctx context.Context) (Step, error)
	IsFinal() bool
}

// Option customises wizard construction.
type Option func(*env)

// WithLogger sets the logger used for lookup and creation failures.
func WithLogger(l logging.Logger) Option {
	return func(e *env) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *env) {
		if r != nil {
			e.recorder = r
		}
	}
}

// env is shared read-only by all steps of one wizard.
type env struct {
	backend  Backend
	finder   *core.RouteFinder
	log      logging.Logger
	recorder Recorder
}

// Wizard tracks the current step of one link creation.
type Wizard struct {
	current   Step
	history   []StepID
	result    *Result
	cancelled bool
}

// NewTransportLinkWizard starts a wizard creating an STM link between
// ports of equipment a and b.
func NewTransportLinkWizard(ctx context.Context, backend Backend, a, b core.ObjectRef, opts ...Option) (*Wizard, error) {
	return newWizard(ctx, KindTransport, core.ClassGenericSDHTransportLink, backend, a, b, opts)
}

// NewContainerLinkWizard starts a wizard creating a container link between
// equipment a and b.
func NewContainerLinkWizard(ctx context.Context, backend Backend, a, b core.ObjectRef, opts ...Option) (*Wizard, error) {
	return newWizard(ctx, KindContainer, core.ClassGenericSDHContainerLink, backend, a, b, opts)
}

// NewTributaryLinkWizard starts a wizard creating a tributary link, and the
// container delivering it, between equipment a and b.
func NewTributaryLinkWizard(ctx context.Context, backend Backend, a, b core.ObjectRef, opts ...Option) (*Wizard, error) {
	return newWizard(ctx, KindTributary, core.ClassGenericSDHTributaryLink, backend, a, b, opts)
}

func newWizard(ctx context.Context, kind Kind, rootClass string, backend Backend, a, b core.ObjectRef, opts []Option) (*Wizard, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrLookup)
	}
	e := &env{
		backend:  backend,
		finder:   core.NewRouteFinder(backend, backend),
		log:      logging.Noop(),
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.log = e.log.With(logging.String("wizard", kind.String()))

	if a.IsZero() || b.IsZero() {
		return nil, fmt.Errorf("%w: both equipment must be given", ErrValidation)
	}
	if kind != KindTransport && a.Same(b) {
		return nil, fmt.Errorf("%w: %s", ErrValidation, core.ErrSameEndpoints)
	}

	classes, err := backend.SubClassesLight(ctx, rootClass, false, false)
	if err != nil {
		e.log.Warn(ctx, "cannot list link classes", logging.String("parent", rootClass), logging.Err(err))
		return nil, fmt.Errorf("%w: subclasses of %s: %w", ErrLookup, rootClass, err)
	}
	first := &GeneralInfoStep{
		env:     e,
		wctx:    newContext(kind, a, b),
		classes: classes,
	}
	return &Wizard{current: first, history: []StepID{first.ID()}}, nil
}

// Current returns the step the wizard is on. It is nil once the wizard has
// completed.
func (w *Wizard) Current() Step {
	return w.current
}

// History lists the steps visited so far, the current one last.
func (w *Wizard) History() []StepID {
	return append([]StepID(nil), w.history...)
}

// Next advances past the current step. On error the wizard does not move.
func (w *Wizard) Next(ctx context.Context) error {
	if w.cancelled || w.current == nil {
		return ErrFinished
	}
	next, err := w.current.Next(ctx)
	if err != nil {
		return err
	}
	if next == nil {
		w.result = w.current.Context().Result
		w.current = nil
		return nil
	}
	w.current = next
	w.history = append(w.history, next.ID())
	return nil
}

// Cancel abandons the wizard. Nothing is created.
func (w *Wizard) Cancel() error {
	if w.cancelled || w.current == nil {
		return ErrFinished
	}
	w.cancelled = true
	w.current = nil
	return nil
}

// Done reports whether the link has been created.
func (w *Wizard) Done() bool {
	return w.result != nil
}

// Cancelled reports whether Cancel was called before completion.
func (w *Wizard) Cancelled() bool {
	return w.cancelled
}

// Result returns what the wizard created.
func (w *Wizard) Result() (Result, bool) {
	if w.result == nil {
		return Result{}, false
	}
	return *w.result, true
}

// commit issues the create call matching the wizard kind.
func (e *env) commit(ctx context.Context, wctx Context) (*Result, error) {
	var (
		res Result
		err error
	)
	switch wctx.Kind {
	case KindTransport:
		var id string
		id, err = e.backend.CreateSDHTransportLink(ctx, model.TransportLinkRequest{
			PortA:     wctx.PortA,
			PortB:     wctx.PortB,
			ClassName: wctx.ClassName,
			Name:      wctx.Name,
		})
		res.Link = core.NewObjectRef(wctx.ClassName, id, wctx.Name)
	case KindContainer:
		var id string
		id, err = e.backend.CreateSDHContainerLink(ctx, model.ContainerLinkRequest{
			EquipmentA: wctx.EquipmentA,
			EquipmentB: wctx.EquipmentB,
			ClassName:  wctx.ClassName,
			Name:       wctx.Name,
			Positions:  wctx.Positions(),
		})
		res.Link = core.NewObjectRef(wctx.ClassName, id, wctx.Name)
	case KindTributary:
		var created model.TributaryLinkResult
		created, err = e.backend.CreateSDHTributaryLink(ctx, model.TributaryLinkRequest{
			PortA:     wctx.PortA,
			PortB:     wctx.PortB,
			ClassName: wctx.ClassName,
			Name:      wctx.Name,
			Positions: wctx.Positions(),
			Service:   wctx.Service,
		})
		res.Link = created.TributaryLink
		res.Container = &created.Container
	default:
		err = fmt.Errorf("unknown wizard kind %v", wctx.Kind)
	}

	e.recorder.WizardCommitted(wctx.Kind.String(), err == nil)
	if err != nil {
		e.log.Warn(ctx, "link creation failed", logging.String("class", wctx.ClassName), logging.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}
	e.log.Info(ctx, "link created",
		logging.String("class", res.Link.ClassName),
		logging.String("id", res.Link.ID),
		logging.String("name", res.Link.Name),
	)
	return &res, nil
}
