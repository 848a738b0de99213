package styles

import "github.com/charmbracelet/lipgloss"

// ContentWidth is the inner width of modal content.
var ContentWidth = 54

var (
	lavender = lipgloss.Color("#B39DDB")
	sky      = lipgloss.Color("#90CAF9")
	slate    = lipgloss.Color("#5C5C7A")
	body     = Adaptive{Light: "#333333", Dark: "#E0E0E0"}

	HintColor = lipgloss.Color("#545454")
)

func label(bg lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(bg).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)
}

func barred(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(body).
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(c)
}

// Thread
var (
	QuestionLabelStyle = label(sky)
	QuestionStyle      = barred(sky).PaddingLeft(2)
	AnswerLabelStyle   = label(lavender)
	AnswerStyle        = barred(lavender).PaddingTop(1)

	SystemMsgStyle = lipgloss.NewStyle().Foreground(FgMuted).Italic(true).PaddingLeft(2)
	SourcesStyle   = lipgloss.NewStyle().Foreground(FgSecondary).PaddingLeft(2)

	ChatTitleStyle = lipgloss.NewStyle().Bold(true).MarginRight(1).
			Foreground(Adaptive{Light: "#1a1a2e", Dark: "#FFFFFF"})
	DocStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#80CBC4"))
)

// Chrome
var (
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lavender).Padding(0, 1)
	ErrorStyle  = lipgloss.NewStyle().Foreground(FgError).Bold(true)
	NoticeStyle = lipgloss.NewStyle().Foreground(FgWarning).PaddingLeft(1)

	InputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lavender).Padding(0, 1)

	WelcomeArtStyle      = lipgloss.NewStyle().Bold(true).Foreground(Adaptive{Light: "#000000", Dark: "#FFFFFF"})
	WelcomeSubtitleStyle = lipgloss.NewStyle().Italic(true).Foreground(HintColor)
)

// Modals
var (
	ModalStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lavender).Padding(1, 2)
	ModalTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lavender).
			Width(ContentWidth).MarginBottom(1)
	ModalItemStyle     = lipgloss.NewStyle().Padding(0, 1).Width(ContentWidth)
	ModalSelectedStyle = ModalItemStyle.Background(slate).Foreground(lipgloss.Color("#FFFFFF"))
	ModalInputStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).
				BorderForeground(slate).Padding(0, 1).Width(ContentWidth - 2)
)
