package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
)

// CallSummary holds the stats printed after a call ends.
type CallSummary struct {
	Room        string
	Peer        string
	Duration    string
	Reason      string
	LocalAudio  string
	LocalVideo  string
	RemoteMedia []string
}

// CallSummaryView renders the summary as a rounded table.
func CallSummaryView(s CallSummary) string {
	peer := s.Peer
	if peer == "" {
		peer = "-"
	}
	remote := strings.Join(s.RemoteMedia, " + ")
	if remote == "" {
		remote = "none"
	}

	tbl := table.NewWriter()
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Room", s.Room},
		{"Peer", truncateString(peer, 24)},
		{"Duration", s.Duration},
		{"Ended", s.Reason},
		{"Mic", s.LocalAudio},
		{"Camera", s.LocalVideo},
		{"Received", remote},
	})
	tbl.SetStyle(table.StyleRounded)

	return tbl.Render()
}

// RenderCallSummary outputs the summary directly to stdout.
func RenderCallSummary(s CallSummary) {
	fmt.Println()
	fmt.Println(TitleStyle.Render(fmt.Sprintf("%s Call Summary", IconCall)))
	fmt.Println(CallSummaryView(s))
}

// RoomBanner renders the shareable room box shown while waiting for a peer.
func RoomBanner(room, server string) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room ready!\n\n%s Room ID:  %s\n%s Server:   %s\n\nShare the room id to start the call",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(room),
		IconConnect, MutedStyle.Render(server),
	)

	return boxStyle.Render(content)
}
