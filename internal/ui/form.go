package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/FrenchMajesty/brand-identifier/pkg/submission"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	Title       = "Product Brand Identifier"
	HelperText  = "Example: Great Value Hazelnut Milk Chocolate, 100 g"
	Placeholder = "Type your description ..."

	requiredMessage = "Please fill out this field."
	defaultWidth    = 60
)

// snapshotMsg carries a controller snapshot into the update loop
type snapshotMsg submission.Snapshot

// settledMsg is returned by the submit command once Submit returns
type settledMsg struct {
	outcome *submission.Outcome
	err     error
}

// Form is the bubbletea model for the brand identifier form.
// It owns no lifecycle state of its own: everything shown comes from the controller.
type Form struct {
	ctx        context.Context
	controller *submission.Controller

	input   textinput.Model
	spinner spinner.Model
	styles  Styles

	snap     submission.Snapshot
	required bool
	width    int
}

// NewForm creates the form around controller. ctx bounds every submission.
func NewForm(ctx context.Context, controller *submission.Controller) Form {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = Placeholder
	ti.Prompt = ""
	ti.Width = defaultWidth - 6
	ti.SetValue(controller.Input())
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Form{
		ctx:        ctx,
		controller: controller,
		input:      ti,
		spinner:    sp,
		styles:     styles,
		snap:       controller.Snapshot(),
		width:      defaultWidth,
	}
}

// Observer returns an observer that forwards snapshots to p.
// Sends happen on their own goroutine so the controller never waits on the UI.
func Observer(p *tea.Program) submission.Observer {
	return submission.ObserverFunc(func(s submission.Snapshot) {
		go p.Send(snapshotMsg(s))
	})
}

// Init implements tea.Model
func (m Form) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update implements tea.Model
func (m Form) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = min(msg.Width, defaultWidth)
		m.input.Width = max(m.width-6, 10)
		return m, nil

	case snapshotMsg:
		m.apply(submission.Snapshot(msg))
		return m, nil

	case settledMsg:
		// Observers may lag behind; the controller has the final word
		if !errors.Is(msg.err, submission.ErrSuperseded) {
			m.apply(m.controller.Snapshot())
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Form) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "enter":
		if strings.TrimSpace(m.input.Value()) == "" {
			m.required = true
			return m, nil
		}
		m.required = false
		m.controller.SetInput(m.input.Value())
		return m, m.submit()

	case "ctrl+l":
		m.input.SetValue("")
		m.controller.Clear()
		return m, nil

	case "esc":
		if m.snap.Loading() {
			m.controller.Cancel()
			m.apply(m.controller.Snapshot())
			return m, nil
		}
		m.input.Blur()
		return m, nil

	case "tab":
		if m.input.Focused() {
			m.input.Blur()
			return m, nil
		}
		return m, m.input.Focus()
	}

	if !m.input.Focused() {
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.controller.SetInput(m.input.Value())
	if m.input.Value() != "" {
		m.required = false
	}
	return m, cmd
}

// submit runs one submission off the update loop
func (m Form) submit() tea.Cmd {
	ctx, controller := m.ctx, m.controller
	return func() tea.Msg {
		out, err := controller.Submit(ctx)
		return settledMsg{outcome: out, err: err}
	}
}

// apply keeps the newest snapshot only
func (m *Form) apply(s submission.Snapshot) {
	if s.Seq < m.snap.Seq {
		return
	}
	m.snap = s
}

// Snapshot returns the state the form is currently rendering
func (m Form) Snapshot() submission.Snapshot {
	return m.snap
}

// View implements tea.Model
func (m Form) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Heading.Render(Title))
	sb.WriteString("\n")
	sb.WriteString(m.styles.Divider.Render(strings.Repeat("─", m.width)))
	sb.WriteString("\n\n")

	if m.input.Value() != "" {
		sb.WriteString(m.styles.CleanButton.Render("Clean Input (ctrl+l)"))
		sb.WriteString("\n\n")
	}

	sb.WriteString(m.styles.Helper.Render(HelperText))
	sb.WriteString("\n")

	inputStyle := m.styles.Input
	if m.input.Focused() {
		inputStyle = m.styles.InputFocused
	}
	sb.WriteString(inputStyle.Width(m.width - 2).Render(m.input.View()))
	sb.WriteString("\n")

	if m.required {
		sb.WriteString(m.styles.Validation.Render(requiredMessage))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.statusView())
	sb.WriteString("\n\n")
	sb.WriteString(m.styles.Help.Render("enter: go • ctrl+l: clean • tab: focus • esc: cancel • ctrl+c: quit"))
	sb.WriteString("\n")

	return sb.String()
}

func (m Form) statusView() string {
	switch {
	case m.snap.Loading():
		lines := []string{m.styles.Loading.Render(m.spinner.View() + " Loading...")}
		if msg := m.snap.Hint.Message(); msg != "" {
			lines = append(lines, m.styles.Hint.Render(msg))
		}
		return lipgloss.JoinVertical(lipgloss.Left, lines...)

	case m.snap.Err != nil:
		return m.styles.Error.Render("Error sending text: " + m.snap.Err.Error())

	case m.snap.Result != nil:
		return lipgloss.JoinHorizontal(lipgloss.Center,
			m.styles.Badge.Render("Response"),
			m.styles.Result.Render(m.snap.Result.Label),
		)
	}
	return ""
}

// Run starts the interactive form and blocks until the user quits
func Run(ctx context.Context, controller *submission.Controller, opts ...tea.ProgramOption) error {
	p := tea.NewProgram(NewForm(ctx, controller), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)

	unsubscribe := controller.Subscribe(Observer(p))
	defer unsubscribe()

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
