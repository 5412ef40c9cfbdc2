package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/DrunkOnJava/ingestor-service/internal/batch"
)

// TUIRenderer drives a bubbletea program showing live BatchEngine
// progress: a spinner while items are in flight, a solid progress bar
// tracking job:progress percentage, and a trailing log of item/entity
// events and failures.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *batchModel
	started bool
	done    chan struct{}
}

// NewTUIRenderer builds a TUIRenderer. Returns an error if cfg.Output
// isn't a TTY, so callers fall back to PlainRenderer.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	m := newBatchModel()
	if cfg.NoColor {
		m.styles = NoColorStyles()
	}

	return &TUIRenderer{cfg: cfg, model: m, done: make(chan struct{})}, nil
}

func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}

	var opts []tea.ProgramOption
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

func (r *TUIRenderer) HandleEvent(ev batch.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(batchEventMsg(ev))
	}
}

func (r *TUIRenderer) Complete(result batch.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(batchCompleteMsg(result))
	}
}

func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program == nil {
		return nil
	}
	r.program.Quit()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

type batchEventMsg batch.Event
type batchCompleteMsg batch.Result

// batchModel is the bubbletea model backing TUIRenderer.
type batchModel struct {
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles

	jobID      string
	percentage float64
	started    int
	succeeded  int
	failed     int
	entities   int
	log        []string
	complete   bool
	result     batch.Result
}

func newBatchModel() *batchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	p := progress.New(progress.WithSolidFill(ColorLime), progress.WithWidth(40))

	return &batchModel{spinner: s, progressBar: p, styles: DefaultStyles()}
}

func (m *batchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case batchEventMsg:
		m.applyEvent(batch.Event(msg))
	case batchCompleteMsg:
		m.complete = true
		m.result = batch.Result(msg)
		return m, tea.Quit
	}
	return m, nil
}

func (m *batchModel) applyEvent(ev batch.Event) {
	m.jobID = ev.JobID
	switch ev.Type {
	case batch.EventJobProgress:
		m.percentage = ev.Percentage / 100
	case batch.EventItemStarted:
		m.started++
		m.log = append(m.log, fmt.Sprintf("started  %s", ev.ItemID))
	case batch.EventItemCompleted:
		m.succeeded++
		m.log = append(m.log, fmt.Sprintf("ok       %s", ev.ItemID))
	case batch.EventItemFailed:
		m.failed++
		m.log = append(m.log, fmt.Sprintf("failed   %s: %v", ev.ItemID, ev.Err))
	case batch.EventEntityCreated:
		m.entities++
	}
	if len(m.log) > 10 {
		m.log = m.log[len(m.log)-10:]
	}
}

func (m *batchModel) View() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("ingestor batch"))
	if m.jobID != "" {
		b.WriteString(" " + m.styles.Dim.Render(m.jobID))
	}
	b.WriteString("\n\n")

	if m.complete {
		b.WriteString(m.styles.Success.Render(fmt.Sprintf("%s: %d/%d succeeded, %d failed",
			m.result.State, m.result.ItemsSuccessful, m.result.ItemsTotal, m.result.ItemsFailed)))
		b.WriteString("\n")
		if m.result.ErrorSummary != "" {
			b.WriteString(m.styles.Error.Render(m.result.ErrorSummary) + "\n")
		}
		return b.String()
	}

	b.WriteString(m.spinner.View() + " " + m.progressBar.ViewAs(m.percentage) + "\n")
	b.WriteString(m.styles.Label.Render(fmt.Sprintf("started=%d ok=%d failed=%d entities=%d",
		m.started, m.succeeded, m.failed, m.entities)))
	b.WriteString("\n\n")
	for _, line := range m.log {
		b.WriteString(m.styles.Dim.Render(line) + "\n")
	}
	return b.String()
}
