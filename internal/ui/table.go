package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"

	"github.com/BioHazard786/meshroom/internal/signaling"
)

// ShortID trims a participant id for display.
func ShortID(id signaling.ParticipantID) string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// RoomsView renders the hub's room listing.
func RoomsView(rooms []signaling.RoomInfo) string {
	if len(rooms) == 0 {
		return MutedStyle.Render("No active rooms")
	}

	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.AppendHeader(prettytable.Row{"#", "Room", "Members", "Participants"})

	for i, room := range rooms {
		ids := make([]string, 0, len(room.Members))
		for _, m := range room.Members {
			ids = append(ids, ShortID(m))
		}
		t.AppendRow(prettytable.Row{
			i + 1,
			room.ID,
			fmt.Sprintf("%d/%d", room.Count, signaling.MaxMembers),
			strings.Join(ids, ", "),
		})
	}
	t.AppendFooter(prettytable.Row{"", "Total", len(rooms), ""})

	return t.Render()
}

// RenderRooms outputs the room listing directly to stdout
func RenderRooms(rooms []signaling.RoomInfo) {
	fmt.Println(TitleStyle.Render(IconChat + " Open rooms"))
	fmt.Println(RoomsView(rooms))
}

// MemberRow is one line of the in-room member table.
type MemberRow struct {
	ID    signaling.ParticipantID
	Self  bool
	State string
	RTT   time.Duration
}

// MembersView renders the current room members and the state of our link to each.
func MembersView(rows []MemberRow) string {
	if len(rows) == 0 {
		return MutedStyle.Render("Nobody here yet")
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		name := ShortID(r.ID)
		state := r.State
		rtt := "-"
		if r.Self {
			name += " (you)"
			state = "-"
		} else if r.RTT > 0 {
			rtt = r.RTT.Round(time.Millisecond).String()
		}
		data = append(data, []string{name, state, rtt})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Member", "Link", "RTT").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}
