// Package cli implements sdhctl, the command-line client of sdh-server.
package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/logging"
	"github.com/signalsfoundry/sdh-provisioner/internal/nbi"
	"github.com/signalsfoundry/sdh-provisioner/internal/wizard"
)

// Backend is what the commands need from the server.
type Backend interface {
	wizard.Backend
	AvailablePositions(ctx context.Context, link core.ObjectRef) ([]core.AvailablePosition, error)
	ListEquipment(ctx context.Context) ([]core.ObjectRef, error)
	DeleteSDHTransportLink(ctx context.Context, link core.ObjectRef, force bool) error
	DeleteSDHContainerLink(ctx context.Context, link core.ObjectRef, force bool) error
	DeleteSDHTributaryLink(ctx context.Context, link core.ObjectRef) error
}

// Connector opens a Backend for addr and returns a function releasing it.
type Connector func(addr string) (Backend, func() error, error)

// DialBackend connects to sdh-server over gRPC.
func DialBackend(addr string) (Backend, func() error, error) {
	c, err := nbi.Dial(addr)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Addr    string
	Timeout time.Duration

	connect Connector
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the sdhctl root command talking gRPC.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(DialBackend)
}

// NewRootCommandWith creates the root command with a custom connector.
func NewRootCommandWith(connect Connector) *cobra.Command {
	opts := &RootOptions{connect: connect}

	defaultAddr := "localhost:50051"
	if v := os.Getenv("SDH_ADDR"); v != "" {
		defaultAddr = v
	}

	cmd := &cobra.Command{
		Use:   "sdhctl",
		Short: "Provision SDH transport, container and tributary links",
		Long: `sdhctl talks to an sdh-server to inspect SDH routes and timeslot
allocation, and to create or delete transport, container and tributary links.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", defaultAddr, "sdh-server gRPC address (env SDH_ADDR)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "deadline for the whole command")

	cmd.AddCommand(NewRoutesCommand(opts))
	cmd.AddCommand(NewStructureCommand(opts))
	cmd.AddCommand(NewPositionsCommand(opts))
	cmd.AddCommand(NewEquipmentCommand(opts))
	cmd.AddCommand(NewProvisionCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// logger writes to stderr so JSON output stays parseable.
func (o *RootOptions) logger(cmd *cobra.Command) logging.Logger {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	return logging.New(logging.Config{Level: level, Format: "text", Output: cmd.ErrOrStderr()})
}

// withBackend connects, runs fn under the command deadline and closes the
// connection.
func (o *RootOptions) withBackend(cmd *cobra.Command, f *OutputFormatter, fn func(ctx context.Context, b Backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	connect := o.connect
	if connect == nil {
		connect = DialBackend
	}
	f.VerboseLog("connecting to %s", o.Addr)
	backend, closeFn, err := connect(o.Addr)
	if err != nil {
		return f.Fail(ExitCommandError, "connect to "+o.Addr, fmt.Errorf("%w: %w", errConnect, err))
	}
	defer func() { _ = closeFn() }()
	return fn(ctx, backend)
}

// parseRef reads a "Class:id" argument.
func parseRef(f *OutputFormatter, what, arg string) (core.ObjectRef, error) {
	ref, err := core.ParseObjectRef(arg)
	if err != nil {
		f.VerboseLog("cannot parse %s %q", what, arg)
		return core.ObjectRef{}, WrapExitError(ExitCommandError, fmt.Sprintf("[%s] invalid %s", ErrCodeArguments, what), err)
	}
	return ref, nil
}
