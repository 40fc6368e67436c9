package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/observability"
	"github.com/signalsfoundry/sdh-provisioner/internal/wizard"
)

// ProvisionOptions holds flags for the provision subcommands.
type ProvisionOptions struct {
	*RootOptions
	Name      string
	Class     string
	Route     int
	Positions []int
	PortA     string
	PortB     string
	Service   string
	Textfile  string
}

// ProvisionResult reports what a wizard created.
type ProvisionResult struct {
	Kind      string               `json:"kind"`
	Link      core.ObjectRef       `json:"link"`
	Container *core.ObjectRef      `json:"container,omitempty"`
	Route     string               `json:"route,omitempty"`
	Hops      []core.HopDefinition `json:"hops,omitempty"`
	Steps     []wizard.StepID      `json:"steps"`
}

func (r ProvisionResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Created %s link %s\n", r.Kind, r.Link)
	if r.Container != nil {
		fmt.Fprintf(w, "  delivered by %s\n", r.Container)
	}
	if r.Route != "" {
		fmt.Fprintf(w, "  %s\n", r.Route)
	}
	for i, h := range r.Hops {
		fmt.Fprintf(w, "  hop %d: %s position %d\n", i+1, h.Link, h.Position)
	}
}

// NewProvisionCommand creates the provision command and its
// transport, container and tributary subcommands.
func NewProvisionCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create a link by running its wizard non-interactively",
		Long: `Create a transport, container or tributary link. Every wizard step is
answered from flags: positions left out are filled with the lowest free
run of timeslots in each hop.

Example:
  sdhctl provision container ADM:adm-1 ADM:adm-2 --name vc4-7 --class VC4
  sdhctl provision tributary ADM:adm-1 ADM:adm-2 --name e1-3 \
      --class VC12TributaryLink --positions 22 \
      --port-a ElectricalPort:p-1 --port-b ElectricalPort:p-9 --service svc-1`,
	}

	for _, kind := range []wizard.Kind{wizard.KindTransport, wizard.KindContainer, wizard.KindTributary} {
		cmd.AddCommand(newProvisionKindCommand(rootOpts, kind))
	}
	return cmd
}

func newProvisionKindCommand(rootOpts *RootOptions, kind wizard.Kind) *cobra.Command {
	opts := &ProvisionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           kind.String() + " <Class:equipmentA> <Class:equipmentB>",
		Short:         fmt.Sprintf("Create a %s link", kind),
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(opts, kind, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "name of the new link")
	cmd.Flags().StringVar(&opts.Class, "class", "", "class of the new link, e.g. STM16, VC4-4, VC12TributaryLink")
	cmd.Flags().StringVar(&opts.Textfile, "textfile", "", "write provisioning metrics to this node_exporter textfile")
	if kind != wizard.KindTransport {
		cmd.Flags().IntVar(&opts.Route, "route", 1, "route to use, as numbered by the routes command")
		cmd.Flags().IntSliceVar(&opts.Positions, "positions", nil, "first position per hop, in route order; 0 picks automatically")
	}
	if kind != wizard.KindContainer {
		cmd.Flags().StringVar(&opts.PortA, "port-a", "", "port in equipment A (Class:id)")
		cmd.Flags().StringVar(&opts.PortB, "port-b", "", "port in equipment B (Class:id)")
		_ = cmd.MarkFlagRequired("port-a")
		_ = cmd.MarkFlagRequired("port-b")
	}
	if kind == wizard.KindTributary {
		cmd.Flags().StringVar(&opts.Service, "service", "", "id of the service using the link")
	}
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("class")

	return cmd
}

func runProvision(opts *ProvisionOptions, kind wizard.Kind, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	a, err := parseRef(f, "equipment A", args[0])
	if err != nil {
		return err
	}
	b, err := parseRef(f, "equipment B", args[1])
	if err != nil {
		return err
	}
	var portA, portB core.ObjectRef
	if kind != wizard.KindContainer {
		if portA, err = parseRef(f, "port A", opts.PortA); err != nil {
			return err
		}
		if portB, err = parseRef(f, "port B", opts.PortB); err != nil {
			return err
		}
	}

	var metrics *observability.ProvisioningCollector
	wopts := []wizard.Option{wizard.WithLogger(opts.logger(cmd))}
	if opts.Textfile != "" {
		metrics, err = observability.NewProvisioningCollector(prometheus.NewRegistry())
		if err != nil {
			return f.Fail(ExitCommandError, "metrics", err)
		}
		wopts = append(wopts, wizard.WithRecorder(metrics))
	}

	return opts.withBackend(cmd, f, func(ctx context.Context, backend Backend) error {
		err := provision(ctx, opts, kind, backend, a, b, portA, portB, f, wopts)
		if metrics != nil {
			if werr := metrics.WriteTextfile(opts.Textfile); werr != nil {
				f.VerboseLog("cannot write metrics to %s: %v", opts.Textfile, werr)
			}
		}
		return err
	})
}

func newWizard(ctx context.Context, kind wizard.Kind, backend Backend, a, b core.ObjectRef, opts []wizard.Option) (*wizard.Wizard, error) {
	switch kind {
	case wizard.KindTransport:
		return wizard.NewTransportLinkWizard(ctx, backend, a, b, opts...)
	case wizard.KindContainer:
		return wizard.NewContainerLinkWizard(ctx, backend, a, b, opts...)
	default:
		return wizard.NewTributaryLinkWizard(ctx, backend, a, b, opts...)
	}
}

// provision walks the wizard to completion, answering every step from the
// flags.
func provision(ctx context.Context, opts *ProvisionOptions, kind wizard.Kind, backend Backend,
	a, b, portA, portB core.ObjectRef, f *OutputFormatter, wopts []wizard.Option) error {
	w, err := newWizard(ctx, kind, backend, a, b, wopts)
	if err != nil {
		return f.Fail(ExitFailure, "start wizard", err)
	}

	var last wizard.Context
	for step := w.Current(); step != nil; step = w.Current() {
		f.VerboseLog("step %s: %s", step.ID(), step.Title())
		if err := answer(step, opts, portA, portB); err != nil {
			_ = w.Cancel()
			return f.Fail(ExitFailure, string(step.ID()), err)
		}
		last = step.Context()
		if err := w.Next(ctx); err != nil {
			_ = w.Cancel()
			return f.Fail(ExitFailure, string(step.ID()), err)
		}
	}

	res, ok := w.Result()
	if !ok {
		return f.Fail(ExitFailure, "wizard", wizard.ErrFinished)
	}
	out := ProvisionResult{
		Kind:      kind.String(),
		Link:      res.Link,
		Container: res.Container,
		Hops:      last.Hops,
		Steps:     w.History(),
	}
	if route, ok := last.SelectedRoute(); ok {
		out.Route = route.String()
	}
	return f.Success(out)
}

func answer(step wizard.Step, opts *ProvisionOptions, portA, portB core.ObjectRef) error {
	switch s := step.(type) {
	case *wizard.GeneralInfoStep:
		s.SetName(opts.Name)
		return s.SetClass(opts.Class)
	case *wizard.ChooseRouteStep:
		return s.Select(opts.Route - 1)
	case *wizard.ChoosePositionsStep:
		hops := s.Hops()
		if len(opts.Positions) > len(hops) {
			return fmt.Errorf("%w: %d positions given for %d hops", wizard.ErrValidation, len(opts.Positions), len(hops))
		}
		for i, pos := range opts.Positions {
			if pos == 0 {
				continue
			}
			if err := s.SelectPosition(i, pos); err != nil {
				return err
			}
		}
		return s.AutoSelect()
	case *wizard.SelectEndpointsStep:
		s.SetEndpoints(portA, portB)
		return nil
	case *wizard.SelectServiceStep:
		if opts.Service == "" {
			s.ClearService()
			return nil
		}
		for i, svc := range s.Services() {
			if svc.ID == opts.Service || svc.Key() == opts.Service {
				return s.SelectService(i)
			}
		}
		return fmt.Errorf("%w: service %q not found", wizard.ErrValidation, opts.Service)
	default:
		return fmt.Errorf("unexpected wizard step %s", step.ID())
	}
}
