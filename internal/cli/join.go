package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/roomname"
	"github.com/BioHazard786/meshroom/internal/ui"
)

var (
	flagJoinSTUN     string
	flagJoinTURN     string
	flagJoinTURNUser string
	flagJoinTURNPass string
	flagJoinRelay    bool
)

func newJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "join [room]",
		Aliases: []string{"j"},
		Short:   "Join a room and chat with its members over a peer-to-peer mesh",
		Long: `Join a room of up to three participants. Every pair of members opens a direct
WebRTC link; the hub only relays the negotiation and the chat.

Without a room name a fresh memorable name is picked.

Examples:
  meshroom join standup
  meshroom join
  meshroom join standup --relay --turn turn:turn.example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.Options{
				STUNServer: flagJoinSTUN,
				TURNServer: flagJoinTURN,
				TURNUser:   flagJoinTURNUser,
				TURNPass:   flagJoinTURNPass,
				ForceRelay: flagJoinRelay,
			})
			if err != nil {
				return err
			}

			roomID := ""
			if len(args) == 1 {
				roomID = args[0]
			}
			if roomID == "" {
				if roomID, err = pickRoomName(cmd, cfg); err != nil {
					return err
				}
				ui.PrintInfof("Picked room %s", ui.BoldStyle.Render(roomID))
			}

			return joinRoom(cmd, cfg, roomID)
		},
	}

	cmd.Flags().StringVarP(&flagJoinSTUN, "stun", "s", "", "Custom STUN server")
	cmd.Flags().StringVarP(&flagJoinTURN, "turn", "t", "", "Custom TURN server")
	cmd.Flags().StringVar(&flagJoinTURNUser, "turn-user", "", "TURN username")
	cmd.Flags().StringVar(&flagJoinTURNPass, "turn-pass", "", "TURN password")
	cmd.Flags().BoolVarP(&flagJoinRelay, "relay", "r", false, "Force relay mode")
	return cmd
}

// pickRoomName generates a name that is not open on the hub right now. The
// listing is best effort; if it fails any generated name is used.
func pickRoomName(cmd *cobra.Command, cfg *config.Config) (string, error) {
	open := make(map[string]bool)
	if rooms, err := fetchRooms(cmd.Context(), cfg.RoomsURL()); err == nil {
		for _, r := range rooms {
			open[r.ID] = true
		}
	} else {
		slog.Debug("Room listing unavailable", "error", err)
		ui.PrintWarning("Could not list open rooms, the picked name may already be taken")
	}
	return roomname.Generate(func(id string) bool { return open[id] })
}

func joinRoom(cmd *cobra.Command, cfg *config.Config, roomID string) error {
	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Connecting to hub...")
	session, err := connectAndJoin(cmd.Context(), cfg, roomID, slog.Default())
	stopSpinner()
	if err != nil {
		return err
	}
	defer session.Close()

	ui.PrintSuccessf("Joined %s as %s", ui.BoldStyle.Render(roomID), ui.ShortID(session.Self))
	return session.Run(cmd.Context(), cfg)
}
