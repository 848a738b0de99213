package ui

import (
	"fmt"
	"strings"

	"pdfchat/internal/models"
	"pdfchat/internal/styles"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) UpdateChatListContent() {
	if len(m.ChatList) == 0 {
		m.ListViewport.SetContent(styles.ModalItemStyle.Render(
			lipgloss.NewStyle().Foreground(styles.HintColor).Render("No chats yet. Press n to create one.")))
		return
	}

	active := m.Store.ActiveID()
	items := make([]string, 0, len(m.ChatList))
	for i, chat := range m.ChatList {
		isSelected := i == m.ChatListIdx
		isCurrent := chat.ID == active

		marker := "  "
		if isCurrent {
			marker = "● "
		}
		syncMark := ""
		if chat.Sync == models.SyncLocal || chat.Sync == models.SyncDirty {
			syncMark = lipgloss.NewStyle().Foreground(styles.SyncColor(chat.Sync)).Render(" ◆")
		}

		when := chat.UpdatedAt
		if when.IsZero() {
			when = chat.CreatedAt
		}
		timeStr := RelativeTime(when)
		doc := ""
		if name := chat.PDFName(); name != "" {
			doc = " · " + name
		}

		available := styles.ContentWidth - 2 - len(marker) - 1 - len(timeStr) - lipgloss.Width(syncMark)
		label := TruncateRunes(chat.Title+doc, available)
		line := fmt.Sprintf("%s%s%s %s", marker, label, syncMark,
			lipgloss.NewStyle().Foreground(styles.HintColor).Render(timeStr))

		if isSelected {
			items = append(items, styles.ModalSelectedStyle.Copy().Width(styles.ContentWidth).Render(line))
		} else {
			style := styles.ModalItemStyle.Copy().Width(styles.ContentWidth)
			if isCurrent {
				style = style.Foreground(lipgloss.Color("#90CAF9"))
			}
			items = append(items, style.Render(line))
		}
	}
	m.ListViewport.SetContent(lipgloss.JoinVertical(lipgloss.Left, items...))
}

// SyncListViewportScroll keeps the selected chat inside the list viewport.
func (m *Model) SyncListViewportScroll() {
	const itemHeight = 1
	top := m.ChatListIdx * itemHeight
	if top+itemHeight > m.ListViewport.YOffset+m.ListViewport.Height {
		m.ListViewport.SetYOffset(top + itemHeight - m.ListViewport.Height)
	}
	if top < m.ListViewport.YOffset {
		m.ListViewport.SetYOffset(top)
	}
}

func (m *Model) RenderChatList() string {
	title := styles.ModalTitleStyle.Render(fmt.Sprintf("Chats (%d)", len(m.ChatList)))
	content := lipgloss.JoinVertical(lipgloss.Left, title, m.ListViewport.View())
	if chat, ok := m.selectedChat(); ok && !m.ConfirmDelete {
		if q := LastQuestion(chat); q != "" {
			preview := styles.SystemMsgStyle.Render("› " + TruncateRunes(q, styles.ContentWidth-4))
			content = lipgloss.JoinVertical(lipgloss.Left, content, "", preview)
		}
	}

	hintText := "↑/↓: navigate • Enter: open • n: new • r: rename • d: delete • Esc: close"
	hintColor := styles.HintColor
	if m.ConfirmDelete {
		if chat, ok := m.selectedChat(); ok {
			hintText = fmt.Sprintf("Delete %q? y: delete • n: cancel", TruncateRunes(chat.Title, 30))
			hintColor = lipgloss.Color("#EF9A9A")
		}
	}
	hint := lipgloss.NewStyle().
		Foreground(hintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render(hintText)

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderTitleModal() string {
	heading := "New Chat"
	if m.Modal == ModalRename {
		heading = "Rename Chat"
	}
	title := styles.ModalTitleStyle.Render(heading)
	input := styles.ModalInputStyle.Render(m.ModalInput.View())

	parts := []string{title, input}
	if m.ModalErr != "" {
		parts = append(parts, styles.ErrorStyle.Render(m.ModalErr))
	}
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Enter: save • Esc: cancel")
	parts = append(parts, hint)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) RenderUploadModal() string {
	heading := "Upload PDF"
	if chat := m.Store.ActiveChat(); chat != nil {
		heading = "Upload PDF to " + TruncateRunes(chat.Title, styles.ContentWidth-16)
	}
	title := styles.ModalTitleStyle.Render(heading)
	input := styles.ModalInputStyle.Render(m.ModalInput.View())

	parts := []string{title, input}
	for i, s := range m.PathSuggestions {
		line := TruncateRunes(s, styles.ContentWidth-4)
		if i == m.PathSuggestIdx {
			parts = append(parts, styles.ModalSelectedStyle.Copy().Width(styles.ContentWidth).Render("▸ "+line))
		} else {
			parts = append(parts, styles.ModalItemStyle.Copy().Width(styles.ContentWidth).Render("  "+line))
		}
	}
	if m.ModalErr != "" {
		parts = append(parts, styles.ErrorStyle.Render(m.ModalErr))
	}
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: select • Tab: complete • Enter: upload • Esc: cancel")
	parts = append(parts, hint)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) RenderShortcutsModal() string {
	title := styles.ModalTitleStyle.Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Ctrl+C", "Quit Application"},
		{"Enter", "Ask the active chat"},
		{"Ctrl+N", "New Chat"},
		{"Ctrl+H", "Chat List (rename, delete)"},
		{"Ctrl+U", "Upload PDF to the active chat"},
		{"Ctrl+R", "Sync offline changes"},
		{"Ctrl+S", "View Shortcuts (this menu)"},
		{"Alt+Enter", "New line in question"},
	}

	var items []string
	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFCC80")).
		Bold(true).
		Width(12)

	descStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E0E0E0"))

	for _, s := range shortcuts {
		line := fmt.Sprintf("%s %s", keyStyle.Render(s.key), descStyle.Render(s.desc))
		items = append(items, styles.ModalItemStyle.Render(line))
	}

	listContent := lipgloss.JoinVertical(lipgloss.Left, items...)
	content := lipgloss.JoinVertical(lipgloss.Left, title, listContent)

	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("Esc/Enter: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

// statusBadge is the backend state shown at the left of the bottom bar.
func (m *Model) statusBadge() (string, bool) {
	switch {
	case !m.Store.HasBackend():
		return "LOCAL", false
	case m.Store.Degraded():
		return "OFFLINE", false
	default:
		return "ONLINE", true
	}
}

func (m *Model) RenderBottomBar() string {
	badgeText, online := m.statusBadge()
	badge := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.StatusColor(online)).
		Padding(0, 1).
		Render(badgeText)

	chatTitle := "no chat"
	docText := "no document"
	if chat := m.Store.ActiveChat(); chat != nil {
		chatTitle = chat.Title
		if doc, ok := chat.ActiveDocument(); ok {
			docText = fmt.Sprintf("%s · %d chunks", doc.Filename, doc.NumChunks)
		}
	}
	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#B39DDB")).
		Render(TruncateRunes(chatTitle, 25))
	doc := styles.DocStyle.Render(TruncateRunes(docText, 35))

	var right []string
	switch {
	case m.Uploading != "":
		right = append(right, lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF59D")).
			Render(m.Spinner.View()+" uploading "+TruncateRunes(m.Uploading, 20)))
	case m.Syncing:
		right = append(right, lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF59D")).
			Render(m.Spinner.View()+" syncing"))
	}
	if n := m.Store.PendingChanges(); n > 0 {
		right = append(right, lipgloss.NewStyle().Foreground(styles.FgWarning).
			Render(fmt.Sprintf("%d unsynced (^R)", n)))
	}
	if m.BackendURL != "" {
		right = append(right, lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).
			Render(TruncateRunes(m.BackendURL, 30)))
	}
	right = append(right, lipgloss.NewStyle().Foreground(lipgloss.Color("#555555")).Render("Help: ^S"))

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, badge, "  ", title, "  ", doc)
	rightSide := strings.Join(right, "  ")

	availableWidth := m.WindowWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2 // -2 for padding
	if availableWidth < 0 {
		availableWidth = 0
	}
	spacer := strings.Repeat(" ", availableWidth)

	bar := lipgloss.JoinHorizontal(lipgloss.Center, leftSide, spacer, rightSide)

	return lipgloss.NewStyle().
		Width(m.WindowWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		Padding(0, 1).
		Render(bar)
}

func (m *Model) RenderNotice() string {
	if m.Notice == "" {
		return ""
	}
	if m.NoticeIsErr {
		return styles.ErrorStyle.Render("✗ " + m.Notice)
	}
	return styles.NoticeStyle.Render(m.Notice)
}

func GetWelcomeScreen(width, height int) string {
	art := `
 ╭──────────────────────────────────────────╮
 │                                          │
 │   █▀█ █▀▄ █▀▀   █▀▀ █ █ ▄▀█ ▀█▀          │
 │   █▀▀ █▄▀ █▀    █▄▄ █▀█ █▀█  █           │
 │                                          │
 ╰──────────────────────────────────────────╯
`
	subtitle := "Ctrl+N: new chat • Ctrl+H: your chats • Ctrl+U: upload a PDF"

	styledArt := styles.WelcomeArtStyle.Render(art)
	styledSubtitle := styles.WelcomeSubtitleStyle.Italic(true).Render(subtitle)

	content := lipgloss.JoinVertical(lipgloss.Center, styledArt, "", styledSubtitle)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

func GetEmptyChatScreen(chat models.Chat, width, height int) string {
	lines := []string{styles.ChatTitleStyle.Render(chat.Title)}
	if name := chat.PDFName(); name != "" {
		lines = append(lines, styles.DocStyle.Render(name), "",
			styles.WelcomeSubtitleStyle.Render("Ask a question about the document below."))
	} else {
		lines = append(lines, "",
			styles.WelcomeSubtitleStyle.Render("Upload a PDF with Ctrl+U, then ask about it."))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

// renderAnswer renders an assistant message as markdown, caching per message.
func (m *Model) renderAnswer(msg models.Message) string {
	if m.Renderer == nil {
		return msg.Content
	}
	if out, ok := m.rendered[msg.ID]; ok {
		return out
	}
	rendered, err := m.Renderer.Render(msg.Content)
	if err != nil {
		return msg.Content
	}
	out := strings.TrimSpace(rendered)
	m.rendered[msg.ID] = out
	return out
}

func (m *Model) UpdateViewport() {
	chat := m.Store.ActiveChat()
	if chat == nil {
		m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
		return
	}
	msgs, pending, err := m.Store.Thread(chat.ID)
	if err != nil {
		m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height))
		return
	}
	if len(msgs) == 0 && pending == nil {
		m.Viewport.SetContent(GetEmptyChatScreen(*chat, m.Viewport.Width, m.Viewport.Height))
		return
	}

	parts := make([]string, 0, len(msgs)+1)
	for i, msg := range msgs {
		switch msg.Role {
		case models.RoleUser:
			parts = append(parts, FormatUserMessage(msg.Content, m.Viewport.Width, i == 0))
		case models.RoleAssistant:
			parts = append(parts, FormatAIMessage(m.renderAnswer(msg), SourcesLine(msg.Sources, chat.Documents)))
		default:
			parts = append(parts, FormatSystemMessage(msg.Content))
		}
	}
	if pending != nil {
		status := " Thinking..."
		if name := chat.PDFName(); name != "" {
			status = " Reading " + name + "..."
		}
		parts = append(parts, fmt.Sprintf("%s\n%s%s", styles.AnswerLabelStyle.Render("ASSISTANT"), m.Spinner.View(), status))
	}

	m.Viewport.SetContent(strings.Join(parts, "\n\n"))
	m.Viewport.GotoBottom()
}

func (m *Model) View() string {
	inputWidth := m.WindowWidth - 4
	inputBox := styles.InputBoxStyle.Width(inputWidth).Render(m.TextInput.View())

	inputParts := []string{}
	if notice := m.RenderNotice(); notice != "" {
		inputParts = append(inputParts, notice)
	}
	inputParts = append(inputParts, inputBox)
	inputSection := lipgloss.JoinVertical(lipgloss.Left, inputParts...)

	header := "PDF CHAT"
	if chat := m.Store.ActiveChat(); chat != nil {
		header += " · " + TruncateRunes(chat.Title, 40)
	}

	chatContent := lipgloss.JoinVertical(lipgloss.Center,
		styles.HeaderStyle.Render(header),
		"",
		m.Viewport.View(),
		"",
		inputSection,
	)
	chatArea := lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Center, chatContent)
	bottomBar := m.RenderBottomBar()

	content := lipgloss.JoinVertical(lipgloss.Left, chatArea, bottomBar)

	var modal string
	switch m.Modal {
	case ModalChatList:
		modal = m.RenderChatList()
	case ModalNewChat, ModalRename:
		modal = m.RenderTitleModal()
	case ModalUpload:
		modal = m.RenderUploadModal()
	case ModalShortcuts:
		modal = m.RenderShortcutsModal()
	default:
		return content
	}
	modal = styles.ModalStyle.Width(ModalWidth).Render(modal)

	return lipgloss.Place(
		m.WindowWidth,
		m.WindowHeight,
		lipgloss.Center,
		lipgloss.Center,
		modal,
	)
}
