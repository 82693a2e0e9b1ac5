package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	Port       int
	NoSchedule bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the scheduled incremental sync",
		Long: `Serve the sync, data-quality and report endpoints until interrupted.

Unless --no-schedule is given an incremental pass runs every SYNC_INTERVAL.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := rootOpts.Open(ctx, rootOpts)
			if err != nil {
				return commandError(rootOpts, cmd, err)
			}
			defer a.Close()

			if opts.Port != 0 {
				a.Config.Server.Port = opts.Port
			}
			if opts.NoSchedule {
				a.Config.Sync.ScheduleEnabled = false
			}

			newFormatter(rootOpts, cmd).VerboseLog("listening on %s", a.Config.Server.Addr())
			if err := a.Serve(ctx); err != nil {
				return WrapExitError(ExitFailure, "server stopped", err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "listen port (overrides SERVER_PORT)")
	cmd.Flags().BoolVar(&opts.NoSchedule, "no-schedule", false, "disable the scheduled incremental sync")

	return cmd
}
