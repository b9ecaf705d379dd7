package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/logging"
	"github.com/BioHazard786/meshroom/internal/ui"
	"github.com/BioHazard786/meshroom/internal/version"
)

var flagServerURL string

// NewRootCmd builds the meshroom command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "meshroom",
		Short:   "Join small peer-to-peer mesh rooms from the terminal",
		Long:    `meshroom connects to a signaling hub, joins a room of up to three participants, forms a direct WebRTC link to every other member and chats with them.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(os.Getenv("LOG_LEVEL"), slog.LevelError)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&flagServerURL, "server", "", "Signaling hub websocket URL (env SERVER_URL)")

	root.AddCommand(newRoomsCmd())
	root.AddCommand(newJoinCmd())
	return root
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}

func loadConfig(opts config.Options) (*config.Config, error) {
	opts.ServerURL = flagServerURL
	return config.Load(opts)
}
