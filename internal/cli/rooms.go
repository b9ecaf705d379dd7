package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/server"
	"github.com/BioHazard786/meshroom/internal/signaling"
	"github.com/BioHazard786/meshroom/internal/ui"
)

func newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rooms",
		Aliases: []string{"ls"},
		Short:   "List the rooms currently open on the hub",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(config.Options{})
			if err != nil {
				return err
			}

			rooms, err := fetchRooms(cmd.Context(), cfg.RoomsURL())
			if err != nil {
				return err
			}
			ui.RenderRooms(rooms)
			return nil
		},
	}
}

// fetchRooms queries the hub's read-only room listing.
func fetchRooms(ctx context.Context, url string) ([]signaling.RoomInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rooms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch rooms: unexpected status %s", resp.Status)
	}

	var body server.RoomsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return body.Rooms, nil
}
