// Package tui provides a terminal user interface for the live banner
// stream.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/user/netlens/internal/api"
	"github.com/user/netlens/internal/stream"
)

// maxRows bounds the rolling banner table.
const maxRows = 256

// Radar is the live-stream TUI application.
type Radar struct {
	factory stream.Factory
}

// NewRadar creates a radar view over the given stream factory.
func NewRadar(factory stream.Factory) *Radar {
	return &Radar{factory: factory}
}

// Run starts the TUI and blocks until the user quits.
func (r *Radar) Run(ctx context.Context) error {
	p := tea.NewProgram(newModel(ctx, r.factory), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// row is one rendered banner.
type row struct {
	ip        string
	port      int
	transport string
	hostnames string
	seen      time.Time
}

// model is the main bubbletea model.
type model struct {
	ctx     context.Context
	factory stream.Factory
	ch      stream.Channel

	spinner spinner.Model
	rows    []row
	total   int
	width   int
	height  int
	err     error
}

func newModel(ctx context.Context, factory stream.Factory) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(Primary)

	return model{
		ctx:     ctx,
		factory: factory,
		spinner: s,
	}
}

// Init initializes the model.
func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		connect(m.ctx, m.factory),
	)
}

// Update handles messages.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.ch != nil {
				m.ch.Close()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case connectedMsg:
		m.ch = msg.ch
		return m, waitForBanner(msg.ch)

	case bannerMsg:
		m.total++
		m.rows = append(m.rows, msg.row)
		if len(m.rows) > maxRows {
			m.rows = m.rows[len(m.rows)-maxRows:]
		}
		return m, waitForBanner(m.ch)

	case streamErrMsg:
		if m.ch != nil {
			m.ch.Close()
			m.ch = nil
		}
		if api.IsTransient(msg.err) {
			return m, reconnect(m.ctx, m.factory)
		}
		m.err = msg.err

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the UI.
func (m model) View() string {
	if m.err != nil {
		return ErrorStyle.Render("Error: " + m.err.Error())
	}

	if m.ch == nil && len(m.rows) == 0 {
		return LoadingStyle.Render(m.spinner.View() + " Connecting to stream...")
	}

	var sb strings.Builder
	sb.WriteString(HeaderStyle.Width(m.width).Render("netlens radar"))
	sb.WriteString("\n\n")

	header := fmt.Sprintf("%-40s %-7s %-5s %s", "IP", "PORT", "PROTO", "HOSTNAMES")
	sb.WriteString(TableHeaderStyle.Render(header))
	sb.WriteString("\n")

	visible := m.height - 7
	if visible < 1 {
		visible = 1
	}
	rows := m.rows
	if len(rows) > visible {
		rows = rows[len(rows)-visible:]
	}

	for _, r := range rows {
		line := fmt.Sprintf("%s %s %-5s %s",
			IPStyle.Render(fmt.Sprintf("%-40s", r.ip)),
			PortStyle.Render(fmt.Sprintf("%-7d", r.port)),
			r.transport,
			r.hostnames)
		sb.WriteString(TableRowStyle.Render(line))
		sb.WriteString("\n")
	}

	status := fmt.Sprintf("%d banners received | q to quit", m.total)
	sb.WriteString(StatusStyle.Render(status))

	return sb.String()
}

// Messages
type connectedMsg struct {
	ch stream.Channel
}

type bannerMsg struct {
	row row
}

type streamErrMsg struct {
	err error
}

func connect(ctx context.Context, factory stream.Factory) tea.Cmd {
	return func() tea.Msg {
		ch, err := factory(ctx)
		if err != nil {
			return streamErrMsg{err}
		}
		return connectedMsg{ch}
	}
}

func reconnect(ctx context.Context, factory stream.Factory) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(time.Second)
		ch, err := factory(ctx)
		if err != nil {
			return streamErrMsg{err}
		}
		return connectedMsg{ch}
	}
}

func waitForBanner(ch stream.Channel) tea.Cmd {
	return func() tea.Msg {
		b, err := ch.Next()
		if err != nil {
			return streamErrMsg{err}
		}
		return bannerMsg{row{
			ip:        b.HostIP(),
			port:      b.Port(),
			transport: b.Transport(),
			hostnames: strings.Join(b.Hostnames(), ","),
			seen:      time.Now(),
		}}
	}
}
