package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/freshcut/internal/tasks"
)

// Model renders one curation run as a live progress view.
type Model struct {
	ctx    context.Context
	engine *tasks.CuratorEngine
	opts   tasks.CurateOpts

	progressChan chan tasks.ProgressUpdate
	current      tasks.ProgressUpdate

	bar   progress.Model
	spin  spinner.Model
	watch stopwatch.Model

	result *tasks.CurateResult
	err    error
	done   bool

	width int
	help  help.Model
	keys  keyMap
}

// keyMap defines the key bindings for the progress view.
type keyMap struct {
	quit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.quit}}
}

type curateProgressMsg tasks.ProgressUpdate

type curateCompleteMsg struct {
	result *tasks.CurateResult
	err    error
}

// NewModel creates a progress view for one curation run.
func NewModel(ctx context.Context, engine *tasks.CuratorEngine, opts tasks.CurateOpts) *Model {
	return &Model{
		ctx:    ctx,
		engine: engine,
		opts:   opts,
		bar:    progress.New(progress.WithDefaultGradient()),
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		watch:  stopwatch.NewWithInterval(time.Second),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Result returns the curation result once the run has completed.
func (m *Model) Result() *tasks.CurateResult {
	return m.result
}

// Err returns the run's error, if any.
func (m *Model) Err() error {
	return m.err
}

// Init launches the curation run and starts the spinner and stopwatch.
func (m *Model) Init() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)

	go func() {
		result, err := m.engine.Run(m.ctx, m.progressChan, m.opts)
		m.result = result
		m.err = err
		close(m.progressChan)
	}()

	return tea.Batch(m.spin.Tick, m.watch.Init(), m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-8, 60)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case curateProgressMsg:
		m.current = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case curateCompleteMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Sequence(m.watch.Stop(), tea.Quit)
	}

	var cmd tea.Cmd
	m.watch, cmd = m.watch.Update(msg)
	return m, cmd
}

// View renders the progress view for the current phase.
func (m *Model) View() string {
	title := styles.title.Render("Curating this week's releases")

	if m.err != nil {
		return fmt.Sprintf("%s\n%s\n", title, styles.err.Render(fmt.Sprintf("✗ %v", m.err)))
	}
	if m.done {
		return fmt.Sprintf("%s\n%s\n", title, styles.ok.Render("✓ Curation complete"))
	}

	body := fmt.Sprintf("%s %s", m.spin.View(), phaseLabel(m.current))
	if m.current.Total > 1 {
		body = fmt.Sprintf("%s\n%s", body, m.bar.ViewAs(m.current.Fraction()))
	}
	if m.current.Message != "" {
		body = fmt.Sprintf("%s\n%s", body, m.current.Message)
	}

	elapsed := styles.help.Render("elapsed " + m.watch.View())
	helpView := m.help.ShortHelpView(m.keys.ShortHelp())

	return fmt.Sprintf("%s\n%s\n\n%s  %s\n", title, body, elapsed, helpView)
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.progressChan
		if !ok {
			return curateCompleteMsg{result: m.result, err: m.err}
		}
		return curateProgressMsg(update)
	}
}

func phaseLabel(update tasks.ProgressUpdate) string {
	switch update.Phase {
	case tasks.FetchProfile:
		return "Fetching profile..."
	case tasks.ResolvePlaylists:
		return "Resolving playlists..."
	case tasks.FetchReleases:
		return fmt.Sprintf("Fetching new releases (%d/%d)", update.Step, update.Total)
	case tasks.SelectReleases:
		return "Selecting this week's releases..."
	case tasks.SyncTracks:
		return fmt.Sprintf("Syncing tracks (%d/%d)", update.Step, update.Total)
	default:
		return "Working..."
	}
}
