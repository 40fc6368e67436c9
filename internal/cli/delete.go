package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/sdh-provisioner/core"
	"github.com/signalsfoundry/sdh-provisioner/internal/wizard"
)

// DeleteResult confirms a deletion.
type DeleteResult struct {
	Kind   string         `json:"kind"`
	Link   core.ObjectRef `json:"link"`
	Forced bool           `json:"forced,omitempty"`
}

func (r DeleteResult) String() string {
	if r.Forced {
		return fmt.Sprintf("Deleted %s link %s and everything it carried", r.Kind, r.Link)
	}
	return fmt.Sprintf("Deleted %s link %s", r.Kind, r.Link)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a transport, container or tributary link",
	}
	for _, kind := range []wizard.Kind{wizard.KindTransport, wizard.KindContainer, wizard.KindTributary} {
		cmd.AddCommand(newDeleteKindCommand(rootOpts, kind))
	}
	return cmd
}

func newDeleteKindCommand(rootOpts *RootOptions, kind wizard.Kind) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:           kind.String() + " <Class:link>",
		Short:         fmt.Sprintf("Delete a %s link", kind),
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
				switch kind {
				case wizard.KindTransport:
					err = backend.DeleteSDHTransportLink(ctx, link, force)
				case wizard.KindContainer:
					err = backend.DeleteSDHContainerLink(ctx, link, force)
				default:
					err = backend.DeleteSDHTributaryLink(ctx, link)
				}
				if err != nil {
					return f.Fail(ExitFailure, "delete "+link.Key(), err)
				}
				return f.Success(DeleteResult{Kind: kind.String(), Link: link, Forced: force})
			})
		},
	}

	if kind != wizard.KindTributary {
		cmd.Flags().BoolVar(&force, "force", false, "also delete the containers and tributaries the link carries")
	}
	return cmd
}
