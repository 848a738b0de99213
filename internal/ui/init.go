package ui

import (
	"pdfchat/internal/logging"
	"pdfchat/internal/models"
	"pdfchat/internal/session"
	"pdfchat/internal/styles"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
)

type Option func(*Model)

func WithLogger(l *zerolog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.Logger = l
		}
	}
}

func WithMaxChunks(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.MaxChunks = n
		}
	}
}

// WithBackendURL sets the address shown in the status bar.
func WithBackendURL(u string) Option {
	return func(m *Model) { m.BackendURL = u }
}

func InitialModel(store *session.Store, opts ...Option) Model {
	ti := textarea.New()
	ti.Placeholder = "Ask about your PDF..."
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 6
	ti.SetHeight(2)
	ti.SetWidth(80)
	ti.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB")).Bold(true)
	ti.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB")).Bold(true)
	ti.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ti.Focus()

	mi := textinput.New()
	mi.Prompt = "› "
	mi.CharLimit = 200
	mi.Width = styles.ContentWidth - 6

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#B39DDB"))

	m := Model{
		TextInput:    ti,
		ModalInput:   mi,
		Viewport:     viewport.New(60, 15),
		ListViewport: viewport.New(ModalWidth-4, 15),
		Spinner:      sp,
		Store:        store,
		MaxChunks:    models.DefaultMaxChunks,
		rendered:     map[models.ID]string{},
	}
	m.Logger = logging.Nop()
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.TextInput.Cursor.BlinkCmd(),
		m.Spinner.Tick,
		m.loadChatsCmd(),
	)
}

func NewProgram(store *session.Store, opts ...Option) *tea.Program {
	styles.InitTheme()
	m := InitialModel(store, opts...)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	m.Program = p
	return p
}
