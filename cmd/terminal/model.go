package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/sevigo/metroid/internal/core"
	"github.com/sevigo/metroid/internal/failures"
)

const banner = "METROID OPERATOR CONSOLE"

const helpText = `
  /failed [n]          List the newest n failed messages (default 20).
  /show [id]           Show a failed message with its payload and error detail.
  /retry [id]          Resubmit a failed message to its handler job.
  /delete [id]         Delete a failed message without replaying it.
  /republish           Retry every stored failed publish.
  /help                Show this help message.
  /exit, /quit         Exit the console.`

type model struct {
	styles styles
	svc    *services

	viewport  viewport.Model
	textarea  textarea.Model
	spinner   spinner.Model
	isLoading bool

	history []string
	// size of the last listing, shown in the status line
	listed int
	// render turns markdown into terminal output.
	render func(md string) (string, error)
}

func initialModel(theme ThemeName) *model {
	styles := GetTheme(theme)
	ta := textarea.New()
	ta.Placeholder = "Enter a command, /help for the list..."
	ta.Focus()
	ta.Prompt = styles.prompt.Render("► ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = styles.success

	return &model{
		styles:    styles,
		textarea:  ta,
		spinner:   sp,
		isLoading: true,
		history:   []string{styles.title.Render(banner), "", "⚙ connecting to the failure store..."},
		render: func(md string) (string, error) {
			return glamour.Render(md, "dark")
		},
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(initializeServicesCmd(), m.spinner.Tick)
}

// shutdown waits for retried jobs and closes the application.
func (m *model) shutdown() {
	if m.svc != nil && m.svc.stop != nil {
		m.svc.stop()
	}
}

func (m *model) appendHistory(lines ...string) {
	m.history = append(m.history, lines...)
	m.viewport.SetContent(strings.Join(m.history, "\n"))
	m.viewport.GotoBottom()
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	m.spinner, spCmd = m.spinner.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			if input == "" {
				return m, nil
			}
			m.textarea.Reset()
			return m, m.processCommand(input)
		}

	case servicesReadyMsg:
		m.isLoading = false
		if msg.err != nil {
			m.appendHistory("", m.styles.error.Render(msg.err.Error()))
			return m, nil
		}
		m.svc = msg.svc
		m.appendHistory("", m.styles.success.Render("✓ ONLINE"), "", "Type /help for commands.")
		return m, nil

	case failedListedMsg:
		m.isLoading = false
		m.listed = len(msg.records)
		m.appendHistory("", m.renderList(msg.records))
		return m, nil

	case failedShownMsg:
		m.isLoading = false
		out, err := m.render(describeFailed(msg.record))
		if err != nil {
			m.appendHistory("", m.styles.error.Render("⚠ "+err.Error()))
			return m, nil
		}
		m.appendHistory(out)
		return m, nil

	case retriedMsg:
		m.isLoading = false
		switch msg.result {
		case failures.RetryResubmitted:
			m.appendHistory("", m.styles.success.Render(fmt.Sprintf("✓ failed message %d resubmitted", msg.id)))
			if msg.err != nil {
				m.appendHistory(m.styles.warning.Render("  " + msg.err.Error()))
			}
		case failures.RetryNoHandler:
			m.appendHistory("", m.styles.warning.Render(fmt.Sprintf("no handler found for failed message %d", msg.id)))
		default:
			m.appendHistory("", m.styles.error.Render(fmt.Sprintf("⚠ retry of %d failed: %v", msg.id, msg.err)))
		}
		return m, nil

	case deletedMsg:
		m.isLoading = false
		m.appendHistory("", m.styles.success.Render(fmt.Sprintf("✓ failed message %d deleted", msg.id)))
		return m, nil

	case republishedMsg:
		m.isLoading = false
		line := fmt.Sprintf("✓ republished %d event(s)", msg.report.Succeeded)
		if msg.report.Failed > 0 {
			m.appendHistory("", m.styles.warning.Render(fmt.Sprintf("%s, %d still failing", line, msg.report.Failed)))
			return m, nil
		}
		m.appendHistory("", m.styles.success.Render(line))
		return m, nil

	case errorMsg:
		m.isLoading = false
		m.appendHistory("", m.styles.error.Render("⚠ "+msg.err.Error()))
		return m, nil

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 8
		m.textarea.SetWidth(msg.Width - 10)
		m.viewport.SetContent(strings.Join(m.history, "\n"))
	}

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m *model) View() string {
	if m.svc == nil && m.isLoading {
		return fmt.Sprintf("\n  %s CONNECTING...\n\n", m.spinner.View())
	}

	status := m.styles.inactive.Render("○ OFFLINE")
	if m.svc != nil {
		status = m.styles.success.Render("● ONLINE") + m.styles.inactive.Render(fmt.Sprintf(" │ last listing: %d message(s)", m.listed))
	}

	var loadingIndicator string
	if m.isLoading {
		loadingIndicator = " " + m.spinner.View() + " " + m.styles.success.Render("WORKING...")
	}

	return m.styles.app.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.styles.viewport.Render(m.viewport.View()),
			"",
			m.styles.footer.Render(
				lipgloss.JoinHorizontal(lipgloss.Left,
					m.textarea.View(),
					loadingIndicator,
				),
			),
			status,
		),
	)
}

func (m *model) processCommand(input string) tea.Cmd {
	m.appendHistory(m.styles.prompt.Render("► ") + input)

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}
	command := parts[0]
	args := parts[1:]

	switch command {
	case "/help", "/h":
		m.appendHistory("", m.styles.success.Render("AVAILABLE COMMANDS:")+helpText)
		return nil
	case "/exit", "/quit":
		return tea.Quit
	}

	if m.svc == nil {
		m.appendHistory("", m.styles.error.Render("The console is not connected yet."))
		return nil
	}

	switch command {
	case "/failed", "/ls":
		limit := 20
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				m.appendHistory("", m.styles.error.Render("USAGE: /failed [n]"))
				return nil
			}
			limit = n
		}
		return m.startWork(listFailedCmd(m.svc, limit))

	case "/show", "/retry", "/delete":
		id, ok := parseIDArg(args)
		if !ok {
			m.appendHistory("", m.styles.error.Render(fmt.Sprintf("USAGE: %s [id]", command)))
			return nil
		}
		switch command {
		case "/show":
			return m.startWork(showFailedCmd(m.svc, id))
		case "/retry":
			m.appendHistory("", m.styles.command.Render(fmt.Sprintf("→ Resubmitting failed message %d...", id)))
			return m.startWork(retryFailedCmd(m.svc, id))
		default:
			return m.startWork(deleteFailedCmd(m.svc, id))
		}

	case "/republish":
		m.appendHistory("", m.styles.command.Render("→ Retrying failed publishes..."))
		return m.startWork(republishCmd(m.svc))

	default:
		m.appendHistory("", m.styles.error.Render(fmt.Sprintf("UNKNOWN COMMAND: %s", command)), m.styles.inactive.Render("Type /help for assistance."))
		return nil
	}
}

func (m *model) startWork(cmd tea.Cmd) tea.Cmd {
	m.isLoading = true
	return tea.Batch(m.spinner.Tick, cmd)
}

func (m *model) renderList(records []*core.FailedMessage) string {
	if len(records) == 0 {
		return m.styles.success.Render("No failed messages.")
	}
	var b strings.Builder
	b.WriteString(m.styles.success.Render("FAILED MESSAGES:"))
	for _, r := range records {
		b.WriteString(fmt.Sprintf("\n  %s  %s/%s  %s  %s",
			m.styles.prompt.Render(strconv.FormatInt(r.ID, 10)),
			r.TopicName, r.SubscriptionName,
			m.styles.command.Render(r.Subject),
			m.styles.inactive.Render(r.CreatedAt.Format(time.RFC822))))
		b.WriteString("\n      " + m.styles.error.Render(firstLine(r.ErrorSummary)))
	}
	b.WriteString("\n\n" + m.styles.inactive.Render("Use '/show [id]' for details or '/retry [id]' to resubmit."))
	return b.String()
}

// describeFailed renders a failure record as markdown.
func describeFailed(r *core.FailedMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Failed message %d\n\n", r.ID)
	fmt.Fprintf(&b, "- **Topic:** %s\n", r.TopicName)
	fmt.Fprintf(&b, "- **Subscription:** %s\n", r.SubscriptionName)
	fmt.Fprintf(&b, "- **Subject:** %s\n", r.Subject)
	fmt.Fprintf(&b, "- **Sequence number:** %d\n", r.SequenceNumber)
	fmt.Fprintf(&b, "- **Correlation ID:** %s\n", r.CorrelationID)
	fmt.Fprintf(&b, "- **Recorded:** %s\n\n", r.CreatedAt.Format(time.RFC3339))

	payload, err := json.MarshalIndent(r.Message, "", "  ")
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", r.Message))
	}
	fmt.Fprintf(&b, "### Message\n\n```json\n%s\n```\n\n", payload)
	fmt.Fprintf(&b, "### Error\n\n%s\n\n```\n%s\n```\n", r.ErrorSummary, r.ErrorDetail)
	return b.String()
}

func parseIDArg(args []string) (int64, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
