package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/meshroom/internal/signaling"
)

// maxChatLines bounds what the chat pane keeps on screen.
const maxChatLines = 200

// Link states shown in the member table.
const (
	LinkWaiting   = "negotiating"
	LinkConnected = "connected"
	LinkLost      = "lost"
)

type chatLineMsg struct{ entry signaling.ChatEntry }

type historyMsg struct{ entries []signaling.ChatEntry }

type membersMsg struct{ members []signaling.ParticipantID }

type linkMsg struct {
	peer  signaling.ParticipantID
	state string
	rtt   time.Duration
}

type noticeMsg struct{ text string }

type quitMsg struct{}

// ChatUI is the interactive room pane: members, chat log and an input line.
type ChatUI struct {
	program  *tea.Program
	model    *chatModel
	outgoing chan string
	ready    chan struct{}
	wg       sync.WaitGroup
}

// NewChatUI creates the pane for roomID as seen by self.
func NewChatUI(roomID string, self signaling.ParticipantID) *ChatUI {
	outgoing := make(chan string, 16)
	return &ChatUI{
		model:    newChatModel(roomID, self, outgoing),
		outgoing: outgoing,
		ready:    make(chan struct{}),
	}
}

// Start runs the program in a goroutine.
func (u *ChatUI) Start() {
	u.program = tea.NewProgram(u.model)
	close(u.ready)

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		defer close(u.outgoing)
		if _, err := u.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// Wait blocks until the user quits or Quit is called.
func (u *ChatUI) Wait() {
	u.wg.Wait()
}

// Outgoing yields every line the user submits. It is closed when the UI exits.
func (u *ChatUI) Outgoing() <-chan string {
	return u.outgoing
}

func (u *ChatUI) send(msg tea.Msg) {
	<-u.ready
	u.program.Send(msg)
}

func (u *ChatUI) AddChat(entry signaling.ChatEntry) { u.send(chatLineMsg{entry: entry}) }

func (u *ChatUI) SetHistory(entries []signaling.ChatEntry) { u.send(historyMsg{entries: entries}) }

func (u *ChatUI) SetMembers(members []signaling.ParticipantID) { u.send(membersMsg{members: members}) }

func (u *ChatUI) SetLink(peer signaling.ParticipantID, state string, rtt time.Duration) {
	u.send(linkMsg{peer: peer, state: state, rtt: rtt})
}

func (u *ChatUI) Notice(text string) { u.send(noticeMsg{text: text}) }

// Quit stops the program from outside, e.g. when the hub connection drops.
func (u *ChatUI) Quit() { u.send(quitMsg{}) }

type chatModel struct {
	roomID   string
	self     signaling.ParticipantID
	input    textinput.Model
	spinner  spinner.Model
	lines    []string
	members  []signaling.ParticipantID
	links    map[signaling.ParticipantID]MemberRow
	outgoing chan<- string
	quitting bool
}

func newChatModel(roomID string, self signaling.ParticipantID, outgoing chan<- string) *chatModel {
	in := textinput.New()
	in.Placeholder = "Say something..."
	in.CharLimit = 2000
	in.Prompt = "> "
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &chatModel{
		roomID:   roomID,
		self:     self,
		input:    in,
		spinner:  s,
		links:    make(map[signaling.ParticipantID]MemberRow),
		outgoing: outgoing,
	}
}

func (m *chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" {
				return m, nil
			}
			select {
			case m.outgoing <- text:
			default:
			}
			// The hub never echoes our own lines back.
			m.appendEntry(signaling.ChatEntry{Sender: string(m.self), Content: text, Timestamp: time.Now()})
			return m, nil
		}

	case quitMsg:
		m.quitting = true
		return m, tea.Quit

	case chatLineMsg:
		m.appendEntry(msg.entry)

	case historyMsg:
		for _, e := range msg.entries {
			m.appendEntry(e)
		}

	case noticeMsg:
		m.appendLine(SystemStyle.Render("* " + msg.text))

	case membersMsg:
		m.members = msg.members
		present := make(map[signaling.ParticipantID]bool, len(msg.members))
		for _, id := range msg.members {
			present[id] = true
			if _, ok := m.links[id]; !ok && id != m.self {
				m.links[id] = MemberRow{ID: id, State: LinkWaiting}
			}
		}
		for id := range m.links {
			if !present[id] {
				delete(m.links, id)
			}
		}

	case linkMsg:
		if row, ok := m.links[msg.peer]; ok {
			if msg.state != "" {
				row.State = msg.state
			}
			if msg.rtt > 0 {
				row.RTT = msg.rtt
			}
			m.links[msg.peer] = row
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *chatModel) appendEntry(e signaling.ChatEntry) {
	stamp := MutedStyle.Render(e.Timestamp.Local().Format("15:04"))
	switch e.Sender {
	case signaling.SystemSender:
		m.appendLine(fmt.Sprintf("%s %s", stamp, SystemStyle.Render(e.Content)))
	case string(m.self):
		m.appendLine(fmt.Sprintf("%s %s %s", stamp, SelfStyle.Render("you:"), e.Content))
	default:
		name := ShortID(signaling.ParticipantID(e.Sender))
		m.appendLine(fmt.Sprintf("%s %s %s", stamp, SenderStyle.Render(name+":"), e.Content))
	}
}

func (m *chatModel) appendLine(line string) {
	m.lines = append(m.lines, line)
	if over := len(m.lines) - maxChatLines; over > 0 {
		m.lines = m.lines[over:]
	}
}

func (m *chatModel) rows() []MemberRow {
	rows := make([]MemberRow, 0, len(m.members))
	for _, id := range m.members {
		if id == m.self {
			rows = append(rows, MemberRow{ID: id, Self: true})
			continue
		}
		rows = append(rows, m.links[id])
	}
	return rows
}

func (m *chatModel) negotiating() bool {
	for _, row := range m.links {
		if row.State == LinkWaiting {
			return true
		}
	}
	return false
}

func (m *chatModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s %s", IconRoom, m.roomID)))
	b.WriteString(" ")
	b.WriteString(MutedStyle.Render(fmt.Sprintf("%s %d/%d", IconPeer, len(m.members), signaling.MaxMembers)))
	b.WriteString("\n\n")
	b.WriteString(MembersView(m.rows()))
	b.WriteString("\n")
	if m.negotiating() {
		b.WriteString(fmt.Sprintf("%s %s %s\n", m.spinner.View(), IconConnect, MutedStyle.Render("Connecting to peers...")))
	}
	b.WriteString("\n")

	for _, line := range m.lines {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(FooterStyle.Render("Enter to send, Esc to leave"))

	return b.String()
}
