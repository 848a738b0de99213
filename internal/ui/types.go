package ui

import (
	"pdfchat/internal/models"
	"pdfchat/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"
)

const (
	MaxChatWidth = 100

	ChatListLimit = 200

	// Max suggestions shown under the upload path input
	MaxPathSuggestions = 8
)

var ModalWidth = 60

// Messages produced by the store commands. Err is set when the operation
// failed; the UI turns it into a notice.
type (
	ChatsLoadedMsg struct {
		Chats []models.Chat
		Err   error
	}
	ChatOpenedMsg struct {
		Chat *models.Chat
		Err  error
	}
	ChatCreatedMsg struct {
		Chat *models.Chat
		Err  error
	}
	ChatRenamedMsg struct {
		Chat *models.Chat
		Err  error
	}
	ChatDeletedMsg struct {
		ID  models.ID
		Err error
	}
	AnswerMsg struct {
		ChatID  models.ID
		Message *models.Message
		Err     error
	}
	UploadedMsg struct {
		ChatID   models.ID
		Filename string
		Size     int64
		Document *models.Document
		Err      error
	}
	SyncedMsg struct {
		Report session.SyncReport
		Err    error
	}
)

// Modal is the overlay currently shown on top of the chat.
type Modal int

const (
	ModalNone Modal = iota
	ModalChatList
	ModalNewChat
	ModalRename
	ModalUpload
	ModalShortcuts
)

type Model struct {
	Viewport     viewport.Model
	ListViewport viewport.Model
	TextInput    textarea.Model
	ModalInput   textinput.Model
	Spinner      spinner.Model
	Store        *session.Store
	Renderer     *glamour.TermRenderer
	Logger       *zerolog.Logger
	MaxChunks    int
	BackendURL   string

	WindowWidth  int
	WindowHeight int

	// Rendered assistant answers keyed by message id, dropped on resize
	rendered map[models.ID]string

	Notice      string
	NoticeIsErr bool

	// Questions and uploads currently in flight
	InFlight  int
	Uploading string
	Syncing   bool

	Modal           Modal
	ModalErr        string
	ChatList        []models.Chat
	ChatListIdx     int
	ConfirmDelete   bool
	RenameTarget    models.ID
	PathSuggestions []string
	PathSuggestIdx  int

	Program *tea.Program
}
