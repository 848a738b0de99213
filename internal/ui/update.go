package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdfchat/internal/models"
	"pdfchat/internal/styles"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.busy() {
			m.UpdateViewport()
		}
		return m, spCmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.Modal {
		case ModalChatList:
			return m.updateChatList(msg)
		case ModalNewChat, ModalRename:
			return m.updateTitleModal(msg)
		case ModalUpload:
			return m.updateUploadModal(msg)
		case ModalShortcuts:
			switch msg.String() {
			case "esc", "enter", "?", "ctrl+s":
				m.Modal = ModalNone
			}
			return m, nil
		}

		if isNewlineShortcut(msg) {
			m.TextInput.InsertString("\n")
			m.updateInputLayout()
			return m, nil
		}

		switch msg.Type {
		case tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlN:
			m.openTitleModal(ModalNewChat, "", "")
			return m, textinput.Blink

		case tea.KeyCtrlH:
			m.openChatList()
			return m, nil

		case tea.KeyCtrlU:
			if m.Store.ActiveChat() == nil {
				m.setNotice("Open a chat (Ctrl+H) or create one (Ctrl+N) first", true)
				return m, nil
			}
			m.openUploadModal()
			return m, textinput.Blink

		case tea.KeyCtrlS:
			m.Modal = ModalShortcuts
			return m, nil

		case tea.KeyCtrlR:
			if m.Syncing {
				return m, nil
			}
			m.Syncing = true
			m.setNotice("Syncing offline changes...", false)
			return m, m.syncCmd()

		case tea.KeyEnter:
			return m, m.submitQuestion()
		}

	case ChatsLoadedMsg:
		m.ChatList = msg.Chats
		switch {
		case msg.Err != nil:
			m.setNotice(DescribeError("Could not load chats", msg.Err), true)
		case m.Store.Degraded():
			m.setNotice("Backend unreachable, showing saved chats", false)
		}
		if len(msg.Chats) > 0 && m.Store.ActiveID() == "" {
			return m, m.openChatCmd(msg.Chats[0].ID)
		}
		m.UpdateViewport()
		return m, nil

	case ChatOpenedMsg:
		if msg.Err != nil {
			m.setNotice(DescribeError("Could not open chat", msg.Err), true)
		}
		m.refreshChatList()
		m.UpdateViewport()
		return m, nil

	case ChatCreatedMsg:
		switch {
		case msg.Err != nil:
			m.setNotice(DescribeError("Could not create chat", msg.Err), true)
		case msg.Chat.IsLocal():
			m.setNotice("Backend unreachable, chat saved locally", false)
		default:
			m.clearNotice()
		}
		m.refreshChatList()
		m.UpdateViewport()
		return m, nil

	case ChatRenamedMsg:
		switch {
		case msg.Err != nil:
			m.setNotice(DescribeError("Could not rename chat", msg.Err), true)
		case msg.Chat.Sync == models.SyncDirty:
			m.setNotice("Renamed locally, will sync when the backend is back", false)
		}
		m.refreshChatList()
		m.UpdateViewport()
		return m, nil

	case ChatDeletedMsg:
		if msg.Err != nil {
			m.setNotice(DescribeError("Could not delete chat", msg.Err), true)
		}
		m.refreshChatList()
		if m.Modal == ModalChatList {
			m.UpdateChatListContent()
		}
		m.UpdateViewport()
		return m, nil

	case AnswerMsg:
		if m.InFlight > 0 {
			m.InFlight--
		}
		switch {
		case msg.Err != nil:
			m.setNotice(DescribeError("Question failed", msg.Err), true)
		case msg.Message != nil && !m.activeHasMessage(msg.Message.ID):
			m.setNotice("An answer arrived in another chat", false)
		}
		m.refreshChatList()
		m.UpdateViewport()
		return m, nil

	case UploadedMsg:
		m.Uploading = ""
		if msg.Err != nil {
			m.setNotice(DescribeError("Upload of "+msg.Filename+" failed", msg.Err), true)
		} else {
			m.setNotice(fmt.Sprintf("Uploaded %s (%s, %d chunks)",
				msg.Document.Filename, humanize.Bytes(uint64(msg.Size)), msg.Document.NumChunks), false)
		}
		m.refreshChatList()
		m.UpdateViewport()
		return m, nil

	case SyncedMsg:
		m.Syncing = false
		switch {
		case msg.Err != nil:
			m.setNotice(DescribeError("Sync stopped", msg.Err), true)
		case msg.Report.Empty():
			m.setNotice("Nothing to sync", false)
		default:
			r := msg.Report
			text := fmt.Sprintf("Synced: %d created, %d renamed, %d deleted", r.Created, r.Renamed, r.Deleted)
			if r.Failed > 0 {
				text += fmt.Sprintf(", %d refused", r.Failed)
			}
			m.setNotice(text, r.Failed > 0)
		}
		m.refreshChatList()
		m.UpdateViewport()
		return m, nil

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		// Update modal dimensions
		ModalWidth = msg.Width - 10
		if ModalWidth > 60 {
			ModalWidth = 60
		}
		if ModalWidth < 30 {
			ModalWidth = 30
		}
		styles.ContentWidth = ModalWidth - 6
		m.ModalInput.Width = styles.ContentWidth - 6

		m.ListViewport.Width = styles.ContentWidth
		m.ListViewport.Height = msg.Height - 15
		if m.ListViewport.Height > 20 {
			m.ListViewport.Height = 20
		}
		if m.ListViewport.Height < 5 {
			m.ListViewport.Height = 5
		}

		chatWidth := msg.Width - 2
		if chatWidth > MaxChatWidth {
			chatWidth = MaxChatWidth
		}
		m.Viewport.Width = chatWidth - 2

		m.updateInputLayout()
		glamourStyle := "dark"
		if !lipgloss.HasDarkBackground() {
			glamourStyle = "light"
		}
		m.Renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(glamourStyle),
			glamour.WithWordWrap(chatWidth-6),
		)
		m.rendered = map[models.ID]string{}
		m.UpdateViewport()
		return m, nil
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()

	// Filter out terminal background color queries and cursor reference codes that leak into the input
	val := m.TextInput.Value()
	if strings.Contains(val, "]11;rgb:") || strings.Contains(val, "1;rgb:") || strings.Contains(val, "[1;1R") {
		m.TextInput.Reset()
	}

	m.Viewport, vpCmd = m.Viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *Model) updateChatList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.ConfirmDelete {
		switch msg.String() {
		case "y", "Y", "enter":
			m.ConfirmDelete = false
			if chat, ok := m.selectedChat(); ok {
				return m, m.deleteChatCmd(chat.ID)
			}
		case "n", "N", "esc":
			m.ConfirmDelete = false
		}
		m.UpdateChatListContent()
		return m, nil
	}

	switch msg.String() {
	case "esc", "ctrl+h":
		m.closeModal()
	case "up", "k":
		if len(m.ChatList) == 0 {
			return m, nil
		}
		m.ChatListIdx--
		if m.ChatListIdx < 0 {
			m.ChatListIdx = len(m.ChatList) - 1
		}
		m.SyncListViewportScroll()
		m.UpdateChatListContent()
	case "down", "j":
		if len(m.ChatList) == 0 {
			return m, nil
		}
		m.ChatListIdx++
		if m.ChatListIdx >= len(m.ChatList) {
			m.ChatListIdx = 0
		}
		m.SyncListViewportScroll()
		m.UpdateChatListContent()
	case "enter":
		chat, ok := m.selectedChat()
		if !ok {
			return m, nil
		}
		m.closeModal()
		return m, m.openChatCmd(chat.ID)
	case "n":
		m.openTitleModal(ModalNewChat, "", "")
		return m, textinput.Blink
	case "r":
		chat, ok := m.selectedChat()
		if !ok {
			return m, nil
		}
		m.openTitleModal(ModalRename, chat.ID, chat.Title)
		return m, textinput.Blink
	case "d", "delete":
		if _, ok := m.selectedChat(); ok {
			m.ConfirmDelete = true
			m.UpdateChatListContent()
		}
	}
	return m, nil
}

func (m *Model) updateTitleModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closeModal()
		return m, nil
	case tea.KeyEnter:
		title := m.ModalInput.Value()
		if m.Modal == ModalRename {
			if strings.TrimSpace(title) == "" {
				m.ModalErr = "Title cannot be empty"
				return m, nil
			}
			id := m.RenameTarget
			m.closeModal()
			return m, m.renameChatCmd(id, title)
		}
		m.closeModal()
		return m, m.createChatCmd(title)
	}

	var cmd tea.Cmd
	m.ModalInput, cmd = m.ModalInput.Update(msg)
	m.ModalErr = ""
	return m, cmd
}

func (m *Model) updateUploadModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeModal()
		return m, nil
	case "up", "ctrl+p":
		if n := len(m.PathSuggestions); n > 0 {
			m.PathSuggestIdx = (m.PathSuggestIdx - 1 + n) % n
		}
		return m, nil
	case "down", "ctrl+n":
		if n := len(m.PathSuggestions); n > 0 {
			m.PathSuggestIdx = (m.PathSuggestIdx + 1) % n
		}
		return m, nil
	case "tab":
		m.completePath()
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.ModalInput.Value())
		if len(m.PathSuggestions) > 0 && !isPDF(path) {
			path = m.PathSuggestions[m.PathSuggestIdx]
		}
		if path == "" {
			m.ModalErr = "Choose a PDF file"
			return m, nil
		}
		if info, err := os.Stat(resolvePath(m.cwd(), path)); err == nil && info.IsDir() {
			m.setModalPath(strings.TrimSuffix(path, "/") + "/")
			return m, nil
		}
		chat := m.Store.ActiveChat()
		m.closeModal()
		if chat == nil {
			m.setNotice("The chat was deleted before the upload started", true)
			return m, nil
		}
		m.Uploading = filepath.Base(path)
		return m, m.uploadCmd(chat.ID, resolvePath(m.cwd(), path))
	}

	var cmd tea.Cmd
	m.ModalInput, cmd = m.ModalInput.Update(msg)
	m.ModalErr = ""
	m.refreshPathSuggestions()
	return m, cmd
}

func (m *Model) completePath() {
	if len(m.PathSuggestions) == 0 {
		return
	}
	selected := m.PathSuggestions[m.PathSuggestIdx]
	if info, err := os.Stat(resolvePath(m.cwd(), selected)); err == nil && info.IsDir() {
		selected = strings.TrimSuffix(selected, "/") + "/"
	}
	m.setModalPath(selected)
}

func (m *Model) setModalPath(path string) {
	m.ModalInput.SetValue(path)
	m.ModalInput.CursorEnd()
	m.refreshPathSuggestions()
}

func (m *Model) refreshPathSuggestions() {
	m.PathSuggestions = GetPDFSuggestions(m.cwd(), m.ModalInput.Value())
	m.PathSuggestIdx = 0
}

func (m *Model) cwd() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.WindowWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	maxInputHeight := 6
	lineCount := WrappedLineCount(m.TextInput.Value(), contentWidth)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > maxInputHeight {
		lineCount = maxInputHeight
	}

	m.TextInput.MaxHeight = maxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 6
	viewportHeight := m.WindowHeight - reserved
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.Viewport.Height = viewportHeight
}

func (m *Model) openChatList() {
	m.refreshChatList()
	m.Modal = ModalChatList
	m.ModalErr = ""
	m.ConfirmDelete = false
	m.ChatListIdx = 0
	active := m.Store.ActiveID()
	for i, c := range m.ChatList {
		if c.ID == active {
			m.ChatListIdx = i
			break
		}
	}
	m.UpdateChatListContent()
	m.SyncListViewportScroll()
}

func (m *Model) openTitleModal(kind Modal, target models.ID, value string) {
	m.Modal = kind
	m.ModalErr = ""
	m.RenameTarget = target
	m.ModalInput.Placeholder = models.DefaultChatTitle
	m.ModalInput.SetValue(value)
	m.ModalInput.CursorEnd()
	m.ModalInput.Focus()
}

func (m *Model) openUploadModal() {
	m.Modal = ModalUpload
	m.ModalErr = ""
	m.ModalInput.Placeholder = "path/to/document.pdf"
	m.ModalInput.SetValue("")
	m.ModalInput.Focus()
	m.refreshPathSuggestions()
}

func (m *Model) closeModal() {
	m.Modal = ModalNone
	m.ModalErr = ""
	m.ConfirmDelete = false
	m.RenameTarget = ""
	m.PathSuggestions = nil
	m.ModalInput.Blur()
	m.ModalInput.Reset()
}

func (m *Model) refreshChatList() {
	m.ChatList = m.Store.ListChats()
	if len(m.ChatList) > ChatListLimit {
		m.ChatList = m.ChatList[:ChatListLimit]
	}
	if m.ChatListIdx >= len(m.ChatList) {
		m.ChatListIdx = len(m.ChatList) - 1
	}
	if m.ChatListIdx < 0 {
		m.ChatListIdx = 0
	}
}

func (m *Model) selectedChat() (models.Chat, bool) {
	if m.ChatListIdx < 0 || m.ChatListIdx >= len(m.ChatList) {
		return models.Chat{}, false
	}
	return m.ChatList[m.ChatListIdx], true
}

func (m *Model) activeHasMessage(id models.ID) bool {
	chat := m.Store.ActiveChat()
	if chat == nil {
		return false
	}
	for _, msg := range chat.Messages {
		if msg.ID == id {
			return true
		}
	}
	return false
}

func (m *Model) busy() bool {
	return m.InFlight > 0 || m.Uploading != "" || m.Syncing
}

func (m *Model) setNotice(text string, isErr bool) {
	m.Notice = text
	m.NoticeIsErr = isErr
	if isErr {
		m.Logger.Warn().Str("notice", text).Msg("shown to user")
	}
}

func (m *Model) clearNotice() {
	m.Notice = ""
	m.NoticeIsErr = false
}

// submitQuestion sends the input to the active chat. The store records the
// question and the placeholder itself; the spinner tick redraws them.
func (m *Model) submitQuestion() tea.Cmd {
	question := strings.TrimSpace(m.TextInput.Value())
	if question == "" {
		return nil
	}
	chat := m.Store.ActiveChat()
	if chat == nil {
		m.setNotice("Open a chat (Ctrl+H) or create one (Ctrl+N) first", true)
		return nil
	}
	if m.Store.Busy(chat.ID) {
		m.setNotice(DescribeError("", models.ErrBusy), false)
		return nil
	}

	m.clearNotice()
	m.TextInput.Reset()
	m.updateInputLayout()
	m.InFlight++
	m.UpdateViewport()
	return m.askCmd(chat.ID, question)
}

func (m *Model) loadChatsCmd() tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		if !store.Loaded() {
			_ = store.Load(context.Background())
		}
		return ChatsLoadedMsg{Chats: store.ListChats(), Err: store.LoadError()}
	}
}

func (m *Model) openChatCmd(id models.ID) tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		chat, err := store.SetActiveChat(context.Background(), id)
		return ChatOpenedMsg{Chat: chat, Err: err}
	}
}

func (m *Model) createChatCmd(title string) tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		ctx := context.Background()
		chat, err := store.CreateChat(ctx, title)
		if err != nil {
			return ChatCreatedMsg{Err: err}
		}
		if _, err := store.SetActiveChat(ctx, chat.ID); err != nil {
			return ChatCreatedMsg{Err: err}
		}
		return ChatCreatedMsg{Chat: chat}
	}
}

func (m *Model) renameChatCmd(id models.ID, title string) tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		chat, err := store.RenameChat(context.Background(), id, title)
		return ChatRenamedMsg{Chat: chat, Err: err}
	}
}

func (m *Model) deleteChatCmd(id models.ID) tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		return ChatDeletedMsg{ID: id, Err: store.DeleteChat(context.Background(), id)}
	}
}

func (m *Model) askCmd(chatID models.ID, question string) tea.Cmd {
	store, maxChunks := m.Store, m.MaxChunks
	return func() tea.Msg {
		reply, err := store.Ask(context.Background(), chatID, question, maxChunks)
		return AnswerMsg{ChatID: chatID, Message: reply, Err: err}
	}
}

func (m *Model) uploadCmd(chatID models.ID, path string) tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		out := UploadedMsg{ChatID: chatID, Filename: filepath.Base(path)}
		if info, err := os.Stat(path); err == nil {
			out.Size = info.Size()
		}
		out.Document, out.Err = store.UploadDocument(context.Background(), chatID, path)
		return out
	}
}

func (m *Model) syncCmd() tea.Cmd {
	store := m.Store
	return func() tea.Msg {
		report, err := store.Sync(context.Background())
		return SyncedMsg{Report: report, Err: err}
	}
}
