package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/sdh-provisioner/core"
)

// RoutesResult lists the routes between two equipment.
type RoutesResult struct {
	Graph  string       `json:"graph"`
	Routes []core.Route `json:"routes"`
}

func (r RoutesResult) WriteText(w io.Writer) {
	if len(r.Routes) == 0 {
		fmt.Fprintf(w, "No routes over %s links\n", r.Graph)
		return
	}
	for _, route := range r.Routes {
		fmt.Fprintln(w, route)
		names := make([]string, len(route.Elements))
		for i, el := range route.Elements {
			names[i] = el.String()
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(names, " -> "))
	}
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand(rootOpts *RootOptions) *cobra.Command {
	var graph string

	cmd := &cobra.Command{
		Use:   "routes <Class:equipmentA> <Class:equipmentB>",
		Short: "List routes between two equipment",
		Long: `List the routes between two equipment over transport links (the
default) or over high-order container links.

Example:
  sdhctl routes ADM:adm-1 ADM:adm-3 --graph container`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			a, err := parseRef(f, "equipment A", args[0])
			if err != nil {
				return err
			}
			b, err := parseRef(f, "equipment B", args[1])
			if err != nil {
				return err
			}
			kind, err := core.ParseGraphKind(graph)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("[%s] invalid --graph", ErrCodeArguments), err)
			}
			return rootOpts.withBackend(cmd, f, func(ctx context.Context, backend Backend) error {
				routes, err := core.NewRouteFinder(backend, backend).FindRoutes(ctx, a, b, kind)
				if err != nil {
					return f.Fail(ExitFailure, "find routes", err)
				}
				return f.Success(RoutesResult{Graph: kind.String(), Routes: routes})
			})
		},
	}

	cmd.Flags().StringVar(&graph, "graph", "transport", "links to route over (transport|container)")

	return cmd
}

// StructureResult lists the containers a link carries.
type StructureResult struct {
	Link       core.ObjectRef                    `json:"link"`
	Containers []core.SdhContainerLinkDefinition `json:"containers"`
}

func (r StructureResult) WriteText(w io.Writer) {
	if len(r.Containers) == 0 {
		fmt.Fprintf(w, "%s carries no containers\n", r.Link)
		return
	}
	fmt.Fprintf(w, "%s carries:\n", r.Link)
	for _, def := range r.Containers {
		pos, _ := def.PositionIn(r.Link)
		kind := "delivers a tributary"
		if def.Structured {
			kind = "structured"
		}
		fmt.Fprintf(w, "  %3d  %s (%s)\n", pos, def.Container, kind)
	}
}

// NewStructureCommand creates the structure command.
func NewStructureCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "structure <Class:link>",
		Short:         "Show the containers carried by a transport or high-order container link",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			link, err := parseRef(f, "link", args[0])
			if err != nil {
				return err
			}
			return rootOpts.withBackend(cmd, f, func(ctx context.Context, backend Backend) error {
				transport, err := backend.IsSubclassOf(ctx, link.ClassName, core.ClassGenericSDHTransportLink)
				if err != nil {
					return f.Fail(ExitFailure, "class lookup", err)
				}
				var defs []core.SdhContainerLinkDefinition
				if transport {
					defs, err = backend.GetSDHTransportLinkStructure(ctx, link)
				} else {
					defs, err = backend.GetSDHContainerLinkStructure(ctx, link)
				}
				if err != nil {
					return f.Fail(ExitFailure, "read structure", err)
				}
				return f.Success(StructureResult{Link: link, Containers: defs})
			})
		},
	}
}

// PositionsResult is the allocation map of a link.
type PositionsResult struct {
	Link      core.ObjectRef           `json:"link"`
	Free      int                      `json:"free"`
	Positions []core.AvailablePosition `json:"positions"`
}

func (r PositionsResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "%s: %d of %d positions free\n", r.Link, r.Free, len(r.Positions))
	for _, p := range r.Positions {
		fmt.Fprintf(w, "  %s\n", p)
	}
}

// NewPositionsCommand creates the positions command.
func NewPositionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "positions <Class:link>",
		Short:         "Show which timeslots of a link are free",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			link, err := parseRef(f, "link", args[0])
			if err != nil {
				return err
			}
			return rootOpts.withBackend(cmd, f, func(ctx context.Context, backend Backend) error {
				positions, err := backend.AvailablePositions(ctx, link)
				if err != nil {
					return f.Fail(ExitFailure, "read positions", err)
				}
				return f.Success(PositionsResult{Link: link, Free: core.FreeCount(positions), Positions: positions})
			})
		},
	}
}

// EquipmentResult lists equipment and services known to the server.
type EquipmentResult struct {
	Equipment []core.ObjectRef `json:"equipment"`
	Services  []core.ObjectRef `json:"services"`
}

func (r EquipmentResult) WriteText(w io.Writer) {
	fmt.Fprintln(w, "Equipment:")
	for _, e := range r.Equipment {
		fmt.Fprintf(w, "  %s\t%s\n", e.Key(), e.Name)
	}
	fmt.Fprintln(w, "Services:")
	for _, s := range r.Services {
		fmt.Fprintf(w, "  %s\t%s\n", s.Key(), s.Name)
	}
}

// NewEquipmentCommand creates the equipment command.
func NewEquipmentCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "equipment",
		Short:         "List communications equipment and services",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			return rootOpts.withBackend(cmd, f, func(ctx context.Context, backend Backend) error {
				equipment, err := backend.ListEquipment(ctx)
				if err != nil {
					return f.Fail(ExitFailure, "list equipment", err)
				}
				services, err := backend.ListServices(ctx)
				if err != nil {
					return f.Fail(ExitFailure, "list services", err)
				}
				return f.Success(EquipmentResult{Equipment: equipment, Services: services})
			})
		},
	}
}
