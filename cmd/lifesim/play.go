package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	cl "lifesim/internal/cli"
	"lifesim/internal/finance"
	"lifesim/internal/game"
)

const (
	minTickEvery     = 125 * time.Millisecond
	maxTickEvery     = 4 * time.Second
	defaultTickEvery = time.Second
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	eventStyle = panelStyle.BorderForeground(lipgloss.Color("214"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func newPlayCmd(apiBase *string) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play the current game in a live terminal view",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("play needs an interactive terminal; use `lifesim advance` instead")
			}
			sess, err := cl.LoadSession()
			if err != nil {
				return err
			}
			m := newPlayModel(cmd.Context(), newClient(apiBase), sess.GameID, every)
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&every, "every", defaultTickEvery, "time between simulated days")
	return cmd
}

// gameAPI is the part of the client the live view drives.
type gameAPI interface {
	Dashboard(ctx context.Context, id string) (game.Dashboard, error)
	Advance(ctx context.Context, id string, in game.AdvanceInput, idem string) (game.AdvanceResult, error)
	ResolveEvent(ctx context.Context, id, choice, idem string) (game.ActionResult, error)
}

type (
	tickMsg      time.Time
	dashboardMsg game.Dashboard
	advancedMsg  game.AdvanceResult
	resolvedMsg  game.ActionResult
	errMsg       struct{ err error }
)

type playModel struct {
	ctx    context.Context
	api    gameAPI
	gameID string

	dash    game.Dashboard
	loaded  bool
	paused  bool
	busy    bool
	every   time.Duration
	status  string
	lastErr error

	positions table.Model
	width     int
}

func newPlayModel(ctx context.Context, api gameAPI, gameID string, every time.Duration) *playModel {
	if every < minTickEvery || every > maxTickEvery {
		every = defaultTickEvery
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Symbol", Width: 8},
			{Title: "Shares", Width: 12},
			{Title: "Price", Width: 12},
			{Title: "Value", Width: 14},
		}),
		table.WithHeight(5),
	)
	return &playModel{ctx: ctx, api: api, gameID: gameID, every: every, positions: t}
}

func (m *playModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

func (m *playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg.String())

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tickMsg:
		cmds := []tea.Cmd{m.tick()}
		if m.canAdvance() {
			m.busy = true
			cmds = append(cmds, m.advance(game.UnitDay))
		}
		return m, tea.Batch(cmds...)

	case dashboardMsg:
		m.setDashboard(game.Dashboard(msg))

	case advancedMsg:
		m.busy = false
		m.lastErr = nil
		m.setDashboard(msg.Dashboard)
		if msg.Stopped {
			m.status = "Event! Decide before time moves on."
		}

	case resolvedMsg:
		m.busy = false
		m.lastErr = nil
		m.status = msg.Message
		m.setDashboard(msg.Dashboard)

	case errMsg:
		m.busy = false
		m.lastErr = msg.err
		m.paused = true
	}
	return m, nil
}

func (m *playModel) handleKey(key string) tea.Cmd {
	switch key {
	case "ctrl+c", "q":
		return tea.Quit
	case " ":
		m.paused = !m.paused
		if !m.paused {
			m.lastErr = nil
		}
	case "+", "=":
		m.every = max(m.every/2, minTickEvery)
	case "-", "_":
		m.every = min(m.every*2, maxTickEvery)
	case "n":
		if m.canStep() {
			m.busy = true
			return m.advance(game.UnitDay)
		}
	case "m":
		if m.canStep() {
			m.busy = true
			return m.advance(game.UnitMonth)
		}
	case "a", "d", "enter":
		if m.dash.PendingEvent == nil || m.busy {
			return nil
		}
		choice := map[string]string{"a": "accept", "d": "decline", "enter": ""}[key]
		if !m.hasChoice(choice) {
			m.status = "That choice is not offered for this event."
			return nil
		}
		m.busy = true
		return m.resolve(choice)
	}
	return nil
}

// hasChoice reports whether the pending event accepts choice. An empty
// choice is only valid when the event offers a single option.
func (m *playModel) hasChoice(choice string) bool {
	if choice == "" {
		return len(m.dash.PendingEvent.Choices) == 1
	}
	for _, c := range m.dash.PendingEvent.Choices {
		if c.ID == choice {
			return true
		}
	}
	return false
}

func (m *playModel) canStep() bool {
	return m.loaded && !m.busy && m.dash.PendingEvent == nil
}

func (m *playModel) canAdvance() bool {
	return !m.paused && m.canStep()
}

func (m *playModel) setDashboard(d game.Dashboard) {
	m.dash = d
	m.loaded = true
	rows := make([]table.Row, 0, len(d.Positions))
	for _, p := range d.Positions {
		rows = append(rows, table.Row{p.Symbol, p.Shares.StringFixed(2), finance.Format(p.Price), finance.Format(p.Value)})
	}
	m.positions.SetRows(rows)
}

func (m *playModel) tick() tea.Cmd {
	return tea.Tick(m.every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *playModel) fetch() tea.Cmd {
	return func() tea.Msg {
		d, err := m.api.Dashboard(m.ctx, m.gameID)
		if err != nil {
			return errMsg{err}
		}
		return dashboardMsg(d)
	}
}

func (m *playModel) advance(unit string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.api.Advance(m.ctx, m.gameID, game.AdvanceInput{Unit: unit, Count: 1}, uuid.NewString())
		if err != nil {
			return errMsg{err}
		}
		return advancedMsg(res)
	}
}

func (m *playModel) resolve(choice string) tea.Cmd {
	return func() tea.Msg {
		res, err := m.api.ResolveEvent(m.ctx, m.gameID, choice, uuid.NewString())
		if err != nil {
			return errMsg{err}
		}
		return resolvedMsg(res)
	}
}

func (m *playModel) View() string {
	if !m.loaded {
		if m.lastErr != nil {
			return badStyle.Render("error: "+m.lastErr.Error()) + "\n" + dimStyle.Render("q quit") + "\n"
		}
		return "Loading game...\n"
	}
	d := m.dash

	state := goodStyle.Render("running")
	if m.paused {
		state = dimStyle.Render("paused")
	}
	header := titleStyle.Render(fmt.Sprintf("%s  |  %s, %d  |  %s", d.DateLabel, d.Player.Name, d.Player.Age, d.Player.Occupation)) +
		"  " + state + dimStyle.Render(fmt.Sprintf("  1 day / %s", m.every))

	var money strings.Builder
	fmt.Fprintf(&money, "Net worth  %s\n", moneyStyle(d.NetWorth.IsNegative()).Render(finance.Format(d.NetWorth)))
	for _, a := range d.Accounts {
		fmt.Fprintf(&money, "%-10s %s\n", truncate(a.Name, 10), moneyStyle(a.Balance.IsNegative()).Render(finance.Format(a.Balance)))
	}
	fmt.Fprintf(&money, "401k       %s", finance.Format(d.Retirement.Balance))

	life := fmt.Sprintf("Health     %3d\nStress     %3d\nHappiness  %3d\n\nIncome     %s\nBills      %s",
		d.Stats.Health, d.Stats.Stress, d.Stats.Happiness,
		finance.Format(d.TotalIncome), finance.Format(d.TotalExpenses))

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(money.String()),
		panelStyle.Render(life),
		panelStyle.Render(m.positions.View()),
	)

	parts := []string{header, top}
	if ev := d.PendingEvent; ev != nil {
		var b strings.Builder
		b.WriteString(titleStyle.Render(ev.Title))
		if ev.Description != "" {
			b.WriteString("\n" + ev.Description)
		}
		b.WriteString("\n\n")
		for _, c := range ev.Choices {
			fmt.Fprintf(&b, "[%s] %s  ", choiceKey(c.ID), c.Label)
		}
		parts = append(parts, eventStyle.Render(b.String()))
	}
	if m.status != "" {
		parts = append(parts, m.status)
	}
	if m.lastErr != nil {
		parts = append(parts, badStyle.Render("error: "+m.lastErr.Error()+" (space to resume)"))
	}
	parts = append(parts, dimStyle.Render("space pause  +/- speed  n next day  m next month  a accept  d decline  enter continue  q quit"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n"
}

func choiceKey(id string) string {
	switch id {
	case "accept":
		return "a"
	case "decline":
		return "d"
	default:
		return "enter"
	}
}

func moneyStyle(negative bool) lipgloss.Style {
	if negative {
		return badStyle
	}
	return goodStyle
}
