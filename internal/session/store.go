// Package session owns the chat list, the active chat pointer and the
// in-flight question placeholders. Every mutation is tried against the
// backend first; when the backend is unreachable the change is applied
// locally and the durable snapshot becomes the only copy until Sync.
//
// Lookups are linear scans: a user has tens to low hundreds of chats.
package session

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"pdfchat/internal/logging"
	"pdfchat/internal/models"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Backend is the remote half of the store.
type Backend interface {
	ListChats(ctx context.Context) ([]models.Chat, error)
	CreateChat(ctx context.Context, title string) (models.Chat, error)
	RenameChat(ctx context.Context, id models.ID, title string) (models.Chat, error)
	DeleteChat(ctx context.Context, id models.ID) error
	ListMessages(ctx context.Context, id models.ID) ([]models.Message, error)
	Ask(ctx context.Context, id models.ID, question string, maxChunks int) (models.Answer, error)
	UploadDocument(ctx context.Context, id models.ID, filename string, r io.Reader) (models.Document, error)
}

// Snapshotter is the durable local copy, read at startup and rewritten
// wholesale after every mutation.
type Snapshotter interface {
	Load(ctx context.Context) (models.Snapshot, error)
	Save(ctx context.Context, snap models.Snapshot) error
}

type Store struct {
	mu sync.Mutex
	// pushMu serializes pushing offline chats to the backend, so Ask,
	// UploadDocument and Sync never create the same chat twice.
	pushMu sync.Mutex

	backend  Backend
	snapshot Snapshotter
	logger   *zerolog.Logger
	now      func() time.Time
	newID    func() models.ID

	maxChunks int

	chats    []*models.Chat
	active   models.ID
	pending  map[models.ID]*models.Pending
	loaded   map[models.ID]bool
	deleted  []models.ID
	degraded bool
	// offline id -> backend id, for callers still holding the old id
	pushed map[models.ID]models.ID

	listed  bool
	listErr error
}

type Option func(*Store)

func WithLogger(l *zerolog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() models.ID) Option {
	return func(s *Store) { s.newID = gen }
}

func WithMaxChunks(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxChunks = n
		}
	}
}

// New builds a store. backend may be nil, in which case the store works
// purely against the snapshot.
func New(backend Backend, snapshot Snapshotter, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		snapshot:  snapshot,
		logger:    logging.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() models.ID { return models.ID(ulid.Make().String()) },
		maxChunks: models.DefaultMaxChunks,
		pending:   map[models.ID]*models.Pending{},
		loaded:    map[models.ID]bool{},
		pushed:    map[models.ID]models.ID{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListChats returns the chats, most recently created first.
func (s *Store) ListChats() []models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *c.Clone())
	}
	return out
}

func (s *Store) Chat(id models.ID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ := s.find(id)
	if c == nil {
		return nil, models.NotFoundf("chat %s", id)
	}
	return c.Clone(), nil
}

// ActiveChat returns the selected chat or nil.
func (s *Store) ActiveChat() *models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ := s.find(s.active)
	if c == nil {
		return nil
	}
	return c.Clone()
}

func (s *Store) ActiveID() models.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Degraded reports whether the last backend call failed as unreachable.
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// HasBackend reports whether the store was built with a backend at all.
func (s *Store) HasBackend() bool { return s.backend != nil }

// Busy reports whether a question is in flight for the chat.
func (s *Store) Busy(chatID models.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[s.resolveLocked(chatID)] != nil
}

func (s *Store) CreateChat(ctx context.Context, title string) (*models.Chat, error) {
	title = models.NormalizeTitle(title)

	chat, err := s.remoteCreate(ctx, title)
	switch {
	case err == nil:
	case models.IsUnavailable(err):
		s.logDegraded("create chat", "", err)
		now := s.now()
		chat = models.Chat{ID: s.newID(), Title: title, CreatedAt: now, UpdatedAt: now, Sync: models.SyncLocal}
	default:
		return nil, err
	}
	if chat.Messages == nil {
		chat.Messages = []models.Message{}
	}
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, _ := s.find(chat.ID); existing != nil {
		// the backend handed back an id we already hold; trust the backend
		s.removeLocked(chat.ID)
	}
	c := &chat
	s.chats = append([]*models.Chat{c}, s.chats...)
	s.loaded[c.ID] = true
	s.persistLocked(ctx)
	return c.Clone(), nil
}

func (s *Store) RenameChat(ctx context.Context, id models.ID, title string) (*models.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, models.InvalidArgumentf("title cannot be empty")
	}

	s.mu.Lock()
	c, _ := s.find(id)
	if c == nil {
		s.mu.Unlock()
		return nil, models.NotFoundf("chat %s", id)
	}
	local := c.IsLocal()
	s.mu.Unlock()

	var (
		remote models.Chat
		err    error
		dirty  bool
	)
	if !local {
		remote, err = s.remoteRename(ctx, id, title)
		switch {
		case err == nil:
		case models.IsUnavailable(err):
			s.logDegraded("rename chat", id, err)
			dirty = true
		default:
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ = s.find(id)
	if c == nil {
		return nil, models.NotFoundf("chat %s", id)
	}
	c.Title = title
	switch {
	case local:
	case dirty:
		c.Sync = models.SyncDirty
	default:
		c.Title = models.NormalizeTitle(remote.Title)
		if !remote.UpdatedAt.IsZero() {
			c.UpdatedAt = remote.UpdatedAt
		}
		c.Sync = models.SyncSynced
	}
	if dirty || local {
		c.UpdatedAt = s.now()
	}
	s.persistLocked(ctx)
	return c.Clone(), nil
}

// DeleteChat removes a chat. Unknown ids are a no-op.
func (s *Store) DeleteChat(ctx context.Context, id models.ID) error {
	s.mu.Lock()
	c, _ := s.find(id)
	if c == nil {
		s.mu.Unlock()
		return nil
	}
	local := c.IsLocal()
	s.mu.Unlock()

	tombstone := false
	if !local {
		err := s.remoteDelete(ctx, id)
		switch {
		case err == nil:
		case models.IsUnavailable(err):
			s.logDegraded("delete chat", id, err)
			tombstone = true
		case isNotFoundStatus(err):
			// already gone on the backend
		default:
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
	if tombstone {
		s.deleted = append(s.deleted, id)
	}
	s.persistLocked(ctx)
	return nil
}

// SetActiveChat selects a chat. An empty id clears the selection and returns
// nil. Selecting an unknown id fails with ErrNotFound and leaves the pointer
// unchanged. The first selection of a synced chat fetches its messages.
func (s *Store) SetActiveChat(ctx context.Context, id models.ID) (*models.Chat, error) {
	s.mu.Lock()
	if id == "" {
		s.active = ""
		s.mu.Unlock()
		return nil, nil
	}
	c, _ := s.find(id)
	if c == nil {
		s.mu.Unlock()
		return nil, models.NotFoundf("chat %s", id)
	}
	s.active = id
	fetch := s.backend != nil && !c.IsLocal() && !s.loaded[id] && s.pending[id] == nil
	if !fetch {
		out := c.Clone()
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	msgs, err := s.backend.ListMessages(ctx, id)
	s.noteRemote(err)

	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ = s.find(id)
	if c == nil {
		// deleted while the messages were loading
		if s.active == id {
			s.active = ""
		}
		return nil, models.NotFoundf("chat %s", id)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("chat_id", id.String()).Msg("could not load messages, showing cached copy")
		return c.Clone(), nil
	}
	if s.pending[id] == nil {
		c.Messages = msgs
		s.loaded[id] = true
		s.persistLocked(ctx)
	}
	return c.Clone(), nil
}

// AttachDocument records doc on the chat. A document with the same filename
// is replaced in place.
func (s *Store) AttachDocument(ctx context.Context, chatID models.ID, doc models.Document) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ := s.find(s.resolveLocked(chatID))
	if c == nil {
		return nil, models.NotFoundf("chat %s", chatID)
	}
	if doc.AttachedAt.IsZero() {
		doc.AttachedAt = s.now()
	}
	replaced := false
	for i := range c.Documents {
		if c.Documents[i].Filename == doc.Filename {
			c.Documents = append(c.Documents[:i], c.Documents[i+1:]...)
			c.Documents = append(c.Documents, doc)
			replaced = true
			break
		}
	}
	if !replaced {
		c.Documents = append(c.Documents, doc)
	}
	s.persistLocked(ctx)
	return c.Clone(), nil
}

// AppendMessage adds msg to the end of the chat's messages.
func (s *Store) AppendMessage(ctx context.Context, chatID models.ID, msg models.Message) (*models.Chat, error) {
	if !models.ValidRole(msg.Role) {
		return nil, models.InvalidArgumentf("unknown role %q", msg.Role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ := s.find(s.resolveLocked(chatID))
	if c == nil {
		return nil, models.NotFoundf("chat %s", chatID)
	}
	if msg.ID == "" {
		msg.ID = s.newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	c.Messages = append(c.Messages, msg)
	s.persistLocked(ctx)
	return c.Clone(), nil
}

// BeginPending adds the loading placeholder for a chat. Only one may exist
// per chat at a time.
func (s *Store) BeginPending(chatID models.ID) (models.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ := s.find(s.resolveLocked(chatID))
	if c == nil {
		return models.Pending{}, models.NotFoundf("chat %s", chatID)
	}
	if s.pending[c.ID] != nil {
		return models.Pending{}, models.ErrBusy
	}
	p := &models.Pending{ID: s.newID(), ChatID: c.ID, StartedAt: s.now()}
	s.pending[c.ID] = p
	return *p, nil
}

// RemoveMessage drops the loading placeholder with the given id, following
// the chat if it was pushed to the backend meanwhile. Resolved messages are
// never removed; unknown ids are a no-op.
func (s *Store) RemoveMessage(chatID, messageID models.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id := s.resolveLocked(chatID); s.pending[id] != nil && s.pending[id].ID == messageID {
		delete(s.pending, id)
		return
	}
	for id, p := range s.pending {
		if p.ID == messageID {
			delete(s.pending, id)
			return
		}
	}
}

// Thread returns the chat's messages and its placeholder, if one exists.
func (s *Store) Thread(chatID models.ID) ([]models.Message, *models.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, _ := s.find(chatID)
	if c == nil {
		return nil, nil, models.NotFoundf("chat %s", chatID)
	}
	msgs := c.Clone().Messages
	var p *models.Pending
	if s.pending[chatID] != nil {
		cp := *s.pending[chatID]
		p = &cp
	}
	return msgs, p, nil
}

// resolveLocked maps an offline id to the id the chat got when it was pushed.
func (s *Store) resolveLocked(id models.ID) models.ID {
	for seen := 0; seen <= len(s.pushed); seen++ {
		next, ok := s.pushed[id]
		if !ok {
			break
		}
		id = next
	}
	return id
}

func (s *Store) find(id models.ID) (*models.Chat, int) {
	if id == "" {
		return nil, -1
	}
	for i, c := range s.chats {
		if c.ID == id {
			return c, i
		}
	}
	return nil, -1
}

func (s *Store) removeLocked(id models.ID) {
	_, idx := s.find(id)
	if idx < 0 {
		return
	}
	s.chats = append(s.chats[:idx], s.chats[idx+1:]...)
	delete(s.pending, id)
	delete(s.loaded, id)
	if s.active == id {
		s.active = ""
	}
}

func (s *Store) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{
		Chats:   make([]models.Chat, 0, len(s.chats)),
		Deleted: append([]models.ID(nil), s.deleted...),
	}
	for _, c := range s.chats {
		snap.Chats = append(snap.Chats, *c.Clone())
	}
	return snap
}

// persistLocked rewrites the snapshot. A failed write is logged; the
// in-memory state stays authoritative for this session.
func (s *Store) persistLocked(ctx context.Context) {
	if s.snapshot == nil {
		return
	}
	if err := s.snapshot.Save(ctx, s.snapshotLocked()); err != nil {
		s.logger.Error().Err(err).Msg("could not write local snapshot")
	}
}

func (s *Store) logDegraded(op string, id models.ID, err error) {
	ev := s.logger.Warn().Err(err).Str("op", op)
	if id != "" {
		ev = ev.Str("chat_id", id.String())
	}
	ev.Msg("backend unavailable, applied locally")
}

// noteRemote tracks whether the backend looked reachable on the last call.
func (s *Store) noteRemote(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.degraded = false
	} else if models.IsUnavailable(err) {
		s.degraded = true
	}
}
