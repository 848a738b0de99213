package session

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pdfchat/internal/backend"
	"pdfchat/internal/db"
	"pdfchat/internal/mockbackend"
	"pdfchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	mock   *mockbackend.Server
	client *backend.Client
	snap   *db.File
	store  *Store
	dir    string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mock := mockbackend.New(nil)
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	snap, err := db.OpenFile(filepath.Join(dir, "chats.json"))
	require.NoError(t, err)

	client := backend.New(srv.URL, backend.WithTimeout(5*time.Second))
	e := &testEnv{mock: mock, client: client, snap: snap, dir: dir}
	e.store = e.reopen(t)
	return e
}

// reopen builds a fresh store over the same backend and snapshot file.
func (e *testEnv) reopen(t *testing.T) *Store {
	t.Helper()
	s := New(e.client, e.snap)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func (e *testEnv) writePDF(t *testing.T, name string, size int) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("%", size)), 0o600))
	return path
}

func TestCreateChatOnline(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	c, err := e.store.CreateChat(ctx, "  Report Q1 ")
	require.NoError(t, err)
	assert.Equal(t, models.ID("1"), c.ID)
	assert.Equal(t, "Report Q1", c.Title)
	assert.Equal(t, models.SyncSynced, c.Sync)
	assert.NotNil(t, c.Messages)
	assert.False(t, e.store.Degraded())

	def, err := e.store.CreateChat(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultChatTitle, def.Title)

	chats := e.store.ListChats()
	require.Len(t, chats, 2)
	assert.Equal(t, def.ID, chats[0].ID)
	assert.Len(t, e.mock.Chats(), 2)
}

func TestCreateChatOfflineFallsBackToLocal(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.mock.SetDown(true)

	first, err := e.store.CreateChat(ctx, "First")
	require.NoError(t, err)
	second, err := e.store.CreateChat(ctx, "Second")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.IsLocal())
	assert.True(t, second.IsLocal())
	assert.True(t, e.store.Degraded())
	assert.Empty(t, e.mock.Chats())

	chats := e.store.ListChats()
	require.Len(t, chats, 2)
	assert.Equal(t, "Second", chats[0].Title)
	assert.Equal(t, "First", chats[1].Title)
	assert.Equal(t, 2, e.store.PendingChanges())
}

type rejectingBackend struct {
	Backend
}

func (rejectingBackend) CreateChat(context.Context, string) (models.Chat, error) {
	return models.Chat{}, &models.RemoteError{Op: "create chat", Status: 422, Detail: "title too long", Err: models.ErrRemoteRejected}
}

func TestCreateChatRejectedLeavesStoreUntouched(t *testing.T) {
	s := New(rejectingBackend{}, nil)

	_, err := s.CreateChat(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, models.IsRejected(err))
	assert.Equal(t, "title too long", err.Error())
	assert.Empty(t, s.ListChats())
	assert.False(t, s.Degraded())
}

func TestRenameChat(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c, err := e.store.CreateChat(ctx, "Draft")
	require.NoError(t, err)

	_, err = e.store.RenameChat(ctx, c.ID, "   ")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	got, err := e.store.Chat(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Draft", got.Title)

	_, err = e.store.RenameChat(ctx, "nope", "x")
	assert.ErrorIs(t, err, models.ErrNotFound)

	renamed, err := e.store.RenameChat(ctx, c.ID, "Final")
	require.NoError(t, err)
	assert.Equal(t, "Final", renamed.Title)
	assert.Equal(t, models.SyncSynced, renamed.Sync)
	assert.Equal(t, "Final", e.mock.Chats()[0].Title)
}

func TestRenameRejectedKeepsTitle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c, err := e.store.CreateChat(ctx, "Draft")
	require.NoError(t, err)

	// removed behind the store's back
	require.NoError(t, e.client.DeleteChat(ctx, c.ID))

	_, err = e.store.RenameChat(ctx, c.ID, "Final")
	require.Error(t, err)
	assert.True(t, models.IsRejected(err))
	got, err := e.store.Chat(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Draft", got.Title)

	// deleting something the backend no longer has still succeeds
	require.NoError(t, e.store.DeleteChat(ctx, c.ID))
	assert.Empty(t, e.store.ListChats())
}

func TestOfflineRenameIsSynced(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c, err := e.store.CreateChat(ctx, "Report")
	require.NoError(t, err)

	e.mock.SetDown(true)
	renamed, err := e.store.RenameChat(ctx, c.ID, "Report Q1")
	require.NoError(t, err)
	assert.Equal(t, "Report Q1", renamed.Title)
	assert.Equal(t, models.SyncDirty, renamed.Sync)
	assert.Equal(t, "Report", e.mock.Chats()[0].Title)

	e.mock.SetDown(false)
	// a restart keeps the offline title over the backend's
	e.store = e.reopen(t)
	got, err := e.store.Chat(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Report Q1", got.Title)

	report, err := e.store.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Renamed: 1}, report)
	assert.Equal(t, "Report Q1", e.mock.Chats()[0].Title)

	got, err = e.store.Chat(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncSynced, got.Sync)
	assert.Zero(t, e.store.PendingChanges())
}

func TestDeleteChat(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	keep, err := e.store.CreateChat(ctx, "Keep")
	require.NoError(t, err)
	drop, err := e.store.CreateChat(ctx, "Drop")
	require.NoError(t, err)

	_, err = e.store.SetActiveChat(ctx, drop.ID)
	require.NoError(t, err)
	require.NoError(t, e.store.DeleteChat(ctx, drop.ID))

	assert.Nil(t, e.store.ActiveChat())
	assert.Equal(t, models.ID(""), e.store.ActiveID())
	_, err = e.store.SetActiveChat(ctx, drop.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	chats := e.store.ListChats()
	require.Len(t, chats, 1)
	assert.Equal(t, keep.ID, chats[0].ID)

	// unknown ids are a no-op
	before := len(e.mock.Requests())
	require.NoError(t, e.store.DeleteChat(ctx, "missing"))
	assert.Len(t, e.mock.Requests(), before)
	assert.Len(t, e.store.ListChats(), 1)
}

func TestDeleteUnknownChatKeepsSelection(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	a, err := e.store.CreateChat(ctx, "Alpha")
	require.NoError(t, err)
	b, err := e.store.CreateChat(ctx, "Beta")
	require.NoError(t, err)
	_, err = e.store.SetActiveChat(ctx, a.ID)
	require.NoError(t, err)

	before := len(e.mock.Requests())
	require.NoError(t, e.store.DeleteChat(ctx, "404"))

	assert.Len(t, e.mock.Requests(), before)
	assert.Equal(t, a.ID, e.store.ActiveID())
	chats := e.store.ListChats()
	require.Len(t, chats, 2)
	assert.Equal(t, b.ID, chats[0].ID)
	assert.Equal(t, a.ID, chats[1].ID)
	assert.Zero(t, e.store.PendingChanges())
}

func TestOfflineDeleteIsReplayed(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, err := e.store.CreateChat(ctx, "Keep")
	require.NoError(t, err)
	drop, err := e.store.CreateChat(ctx, "Drop")
	require.NoError(t, err)

	e.mock.SetDown(true)
	require.NoError(t, e.store.DeleteChat(ctx, drop.ID))
	assert.Len(t, e.store.ListChats(), 1)
	assert.Len(t, e.mock.Chats(), 2)

	e.mock.SetDown(false)
	e.store = e.reopen(t)
	chats := e.store.ListChats()
	require.Len(t, chats, 1)
	assert.Equal(t, "Keep", chats[0].Title)
	assert.Equal(t, 1, e.store.PendingChanges())

	report, err := e.store.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Len(t, e.mock.Chats(), 1)
	assert.Zero(t, e.store.PendingChanges())
}

func TestSyncPushesOfflineChats(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.mock.SetDown(true)

	local, err := e.store.CreateChat(ctx, "Offline notes")
	require.NoError(t, err)
	_, err = e.store.AppendMessage(ctx, local.ID, models.Message{Role: models.RoleSystem, Content: "kept"})
	require.NoError(t, err)
	_, err = e.store.SetActiveChat(ctx, local.ID)
	require.NoError(t, err)

	_, err = e.store.Sync(ctx)
	assert.True(t, models.IsUnavailable(err))

	e.mock.SetDown(false)
	report, err := e.store.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncReport{Created: 1}, report)

	chats := e.store.ListChats()
	require.Len(t, chats, 1)
	assert.Equal(t, models.ID("1"), chats[0].ID)
	assert.Equal(t, models.SyncSynced, chats[0].Sync)
	require.Len(t, chats[0].Messages, 1)
	assert.Equal(t, "kept", chats[0].Messages[0].Content)
	assert.Equal(t, models.ID("1"), e.store.ActiveID())

	_, err = e.store.Chat(local.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetActiveChatFetchesMessagesOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	remote, err := e.client.CreateChat(ctx, "Elsewhere")
	require.NoError(t, err)
	_, err = e.client.Ask(ctx, remote.ID, "hello?", 5)
	require.NoError(t, err)

	e.store = e.reopen(t)
	c, err := e.store.SetActiveChat(ctx, remote.ID)
	require.NoError(t, err)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, models.RoleUser, c.Messages[0].Role)
	assert.Equal(t, models.RoleAssistant, c.Messages[1].Role)

	_, err = e.store.SetActiveChat(ctx, remote.ID)
	require.NoError(t, err)

	fetches := 0
	for _, r := range e.mock.Requests() {
		if r == "GET /chats/1/messages" {
			fetches++
		}
	}
	assert.Equal(t, 1, fetches)

	c, err = e.store.SetActiveChat(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Nil(t, e.store.ActiveChat())
}

func TestAskWithDocument(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	c, err := e.store.CreateChat(ctx, "Report Q1")
	require.NoError(t, err)
	doc, err := e.store.UploadDocument(ctx, c.ID, e.writePDF(t, "q1.pdf", 1500))
	require.NoError(t, err)
	assert.Equal(t, "q1.pdf", doc.Filename)
	assert.Equal(t, 2, doc.NumChunks)

	got, err := e.store.Chat(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "q1.pdf", got.PDFName())

	reply, err := e.store.Ask(ctx, c.ID, "What is the revenue?", 0)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAssistant, reply.Role)
	assert.Contains(t, reply.Content, "q1.pdf")
	require.Len(t, reply.Sources, 2)
	assert.Equal(t, doc.ID, reply.Sources[0].DocumentID)

	msgs, pending, err := e.store.Thread(c.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
	require.Len(t, msgs, 2)
	assert.Equal(t, "What is the revenue?", msgs[0].Content)
	assert.Equal(t, reply.ID, msgs[1].ID)
	assert.False(t, e.store.Busy(c.ID))
}

func TestAskFailureKeepsQuestion(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c, err := e.store.CreateChat(ctx, "Report")
	require.NoError(t, err)
	_, err = e.store.AppendMessage(ctx, c.ID, models.Message{Role: models.RoleAssistant, Content: "earlier"})
	require.NoError(t, err)

	e.mock.SetDown(true)
	_, err = e.store.Ask(ctx, c.ID, "Still there?", 3)
	require.Error(t, err)
	assert.True(t, models.IsUnavailable(err))

	msgs, pending, err := e.store.Thread(c.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
	require.Len(t, msgs, 2)
	assert.Equal(t, "earlier", msgs[0].Content)
	assert.Equal(t, "Still there?", msgs[1].Content)
	assert.False(t, e.store.Busy(c.ID))
}

func TestAskPushesOfflineChat(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.mock.SetDown(true)
	local, err := e.store.CreateChat(ctx, "Later")
	require.NoError(t, err)
	e.mock.SetDown(false)

	reply, err := e.store.Ask(ctx, local.ID, "anything?", 0)
	require.NoError(t, err)
	assert.Equal(t, "No documents have been uploaded to this chat yet.", reply.Content)

	chats := e.store.ListChats()
	require.Len(t, chats, 1)
	assert.Equal(t, models.ID("1"), chats[0].ID)
	assert.Len(t, chats[0].Messages, 2)
	assert.Len(t, e.mock.Chats(), 1)
}

// gatedBackend holds the first CreateChat until release is closed.
type gatedBackend struct {
	Backend
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedBackend) CreateChat(ctx context.Context, title string) (models.Chat, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Backend.CreateChat(ctx, title)
}

func TestAskAndSyncPushOfflineChatOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.mock.SetDown(true)
	local, err := e.store.CreateChat(ctx, "Later")
	require.NoError(t, err)
	e.mock.SetDown(false)

	gate := &gatedBackend{Backend: e.client, entered: make(chan struct{}), release: make(chan struct{})}
	s := New(gate, e.snap)
	require.NoError(t, s.Load(ctx))

	askErr := make(chan error, 1)
	go func() {
		_, err := s.Ask(ctx, local.ID, "first?", 0)
		askErr <- err
	}()
	<-gate.entered

	type syncResult struct {
		report SyncReport
		err    error
	}
	synced := make(chan syncResult, 1)
	go func() {
		r, err := s.Sync(ctx)
		synced <- syncResult{r, err}
	}()
	// let Sync reach the push before the first create completes
	time.Sleep(20 * time.Millisecond)
	close(gate.release)

	require.NoError(t, <-askErr)
	res := <-synced
	require.NoError(t, res.err)
	assert.Zero(t, res.report.Created)

	assert.Len(t, e.mock.Chats(), 1)
	chats := s.ListChats()
	require.Len(t, chats, 1)
	remoteID := chats[0].ID
	assert.NotEqual(t, local.ID, remoteID)
	assert.Equal(t, models.SyncSynced, chats[0].Sync)
	assert.False(t, s.Busy(remoteID))
	assert.False(t, s.Busy(local.ID))

	// the old id keeps working for callers that still hold it
	reply, err := s.Ask(ctx, local.ID, "second?", 0)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAssistant, reply.Role)
	assert.Len(t, e.mock.Chats(), 1)

	msgs, pending, err := s.Thread(remoteID)
	require.NoError(t, err)
	assert.Nil(t, pending)
	require.Len(t, msgs, 4)
	assert.Equal(t, "first?", msgs[0].Content)
	assert.Equal(t, "second?", msgs[2].Content)
}

func TestPlaceholderFollowsPushedChat(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.mock.SetDown(true)
	local, err := e.store.CreateChat(ctx, "Later")
	require.NoError(t, err)
	p, err := e.store.BeginPending(local.ID)
	require.NoError(t, err)
	e.mock.SetDown(false)

	_, err = e.store.Sync(ctx)
	require.NoError(t, err)
	chats := e.store.ListChats()
	require.Len(t, chats, 1)
	assert.True(t, e.store.Busy(chats[0].ID))

	e.store.RemoveMessage(local.ID, p.ID)
	assert.False(t, e.store.Busy(chats[0].ID))
	_, err = e.store.BeginPending(chats[0].ID)
	require.NoError(t, err)
}

func TestOfflineEditsSurviveRestart(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	c, err := e.store.CreateChat(ctx, "Report Q1")
	require.NoError(t, err)
	_, err = e.store.RenameChat(ctx, c.ID, "Quarterly Report")
	require.NoError(t, err)
	_, err = e.store.UploadDocument(ctx, c.ID, e.writePDF(t, "report.pdf", 2500))
	require.NoError(t, err)
	_, err = e.store.Ask(ctx, c.ID, "What is the revenue?", 0)
	require.NoError(t, err)

	e.mock.SetDown(true)
	_, err = e.store.Ask(ctx, c.ID, "And the margin?", 0)
	require.Error(t, err)
	assert.True(t, models.IsUnavailable(err))

	check := func(s *Store) {
		t.Helper()
		got, err := s.Chat(c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Quarterly Report", got.Title)
		assert.Equal(t, "report.pdf", got.PDFName())
		require.Len(t, got.Messages, 3)
		assert.Equal(t, "What is the revenue?", got.Messages[0].Content)
		assert.Equal(t, models.RoleAssistant, got.Messages[1].Role)
		assert.Contains(t, got.Messages[1].Content, "report.pdf")
		assert.Equal(t, "And the margin?", got.Messages[2].Content)
		assert.False(t, s.Busy(c.ID))
	}
	check(e.store)
	check(e.reopen(t))
}

// listRefusingBackend rejects the chat list, as a backend with an expired
// token would.
type listRefusingBackend struct {
	Backend
}

func (listRefusingBackend) ListChats(context.Context) ([]models.Chat, error) {
	return nil, &models.RemoteError{Op: "list chats", Status: 401, Detail: "token expired", Err: models.ErrRemoteRejected}
}

func TestLoadRefusedUsesSnapshot(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	kept, err := e.store.CreateChat(ctx, "Kept")
	require.NoError(t, err)

	s := New(listRefusingBackend{e.client}, e.snap)
	assert.False(t, s.Loaded())
	require.NoError(t, s.Load(ctx))
	assert.True(t, s.Loaded())

	err = s.LoadError()
	require.Error(t, err)
	assert.True(t, models.IsRejected(err))
	assert.Equal(t, 401, models.StatusOf(err))
	assert.False(t, s.Degraded())

	chats := s.ListChats()
	require.Len(t, chats, 1)
	assert.Equal(t, kept.ID, chats[0].ID)

	// a later successful load clears the refusal
	require.NoError(t, e.store.Load(ctx))
	assert.NoError(t, e.store.LoadError())
}

func TestAskValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c, err := e.store.CreateChat(ctx, "Report")
	require.NoError(t, err)

	_, err = e.store.Ask(ctx, c.ID, " ", 0)
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = e.store.Ask(ctx, "missing", "q", 0)
	assert.ErrorIs(t, err, models.ErrNotFound)

	p, err := e.store.BeginPending(c.ID)
	require.NoError(t, err)
	_, err = e.store.Ask(ctx, c.ID, "q", 0)
	assert.ErrorIs(t, err, models.ErrBusy)
	assert.True(t, e.store.Busy(c.ID))

	e.store.RemoveMessage(c.ID, p.ID)
	assert.False(t, e.store.Busy(c.ID))
}

func TestUploadValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c, err := e.store.CreateChat(ctx, "Report")
	require.NoError(t, err)
	before := len(e.mock.Requests())

	_, err = e.store.UploadDocument(ctx, c.ID, "")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = e.store.UploadDocument(ctx, c.ID, e.writePDF(t, "notes.txt", 10))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = e.store.UploadDocument(ctx, c.ID, filepath.Join(e.dir, "absent.pdf"))
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
	_, err = e.store.UploadDocument(ctx, "missing", e.writePDF(t, "a.pdf", 10))
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Len(t, e.mock.Requests(), before)

	// the backend's own refusal comes back as rejected
	_, err = e.store.UploadDocument(ctx, c.ID, e.writePDF(t, "empty.pdf", 0))
	require.Error(t, err)
	assert.True(t, models.IsRejected(err))
	got, err := e.store.Chat(c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Documents)
}

func TestAttachDocumentReplacesSameName(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	c, err := s.CreateChat(ctx, "Docs")
	require.NoError(t, err)

	_, err = s.AttachDocument(ctx, c.ID, models.Document{Filename: "a.pdf", NumChunks: 1})
	require.NoError(t, err)
	_, err = s.AttachDocument(ctx, c.ID, models.Document{Filename: "b.pdf", NumChunks: 2})
	require.NoError(t, err)
	got, err := s.AttachDocument(ctx, c.ID, models.Document{Filename: "a.pdf", NumChunks: 3})
	require.NoError(t, err)

	require.Len(t, got.Documents, 2)
	assert.Equal(t, "b.pdf", got.Documents[0].Filename)
	assert.Equal(t, "a.pdf", got.PDFName())
	assert.Equal(t, 3, got.Documents[1].NumChunks)

	_, err = s.AttachDocument(ctx, "missing", models.Document{Filename: "a.pdf"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAppendMessagePreservesOrder(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	c, err := s.CreateChat(ctx, "Thread")
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		_, err := s.AppendMessage(ctx, c.ID, models.Message{Role: models.RoleUser, Content: content})
		require.NoError(t, err)
	}
	_, err = s.AppendMessage(ctx, c.ID, models.Message{Role: "robot", Content: "four"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	msgs, _, err := s.Thread(c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, want := range []string{"one", "two", "three"} {
		assert.Equal(t, want, msgs[i].Content)
		assert.NotEmpty(t, msgs[i].ID)
	}
}

func TestRemoveMessageOnlyDropsPlaceholder(t *testing.T) {
	s := New(nil, nil)
	ctx := context.Background()
	c, err := s.CreateChat(ctx, "Thread")
	require.NoError(t, err)
	withMsg, err := s.AppendMessage(ctx, c.ID, models.Message{Role: models.RoleUser, Content: "hi"})
	require.NoError(t, err)
	p, err := s.BeginPending(c.ID)
	require.NoError(t, err)

	s.RemoveMessage(c.ID, withMsg.Messages[0].ID)
	s.RemoveMessage(c.ID, "unknown")
	msgs, pending, err := s.Thread(c.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
	require.NotNil(t, pending)
	assert.Equal(t, p.ID, pending.ID)

	s.RemoveMessage(c.ID, p.ID)
	_, pending, err = s.Thread(c.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestSnapshotExcludesPlaceholder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	c, err := e.store.CreateChat(ctx, "Report")
	require.NoError(t, err)
	_, err = e.store.AppendMessage(ctx, c.ID, models.Message{Role: models.RoleUser, Content: "hi"})
	require.NoError(t, err)
	_, err = e.store.BeginPending(c.ID)
	require.NoError(t, err)
	_, err = e.store.CreateChat(ctx, "Another")
	require.NoError(t, err)

	snap, err := e.snap.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Chats, 2)
	assert.Equal(t, "Another", snap.Chats[0].Title)
	require.Len(t, snap.Chats[1].Messages, 1)
	assert.Equal(t, "hi", snap.Chats[1].Messages[0].Content)

	// an offline restart sees exactly what was persisted
	offline := New(nil, e.snap)
	require.NoError(t, offline.Load(ctx))
	chats := offline.ListChats()
	require.Len(t, chats, 2)
	assert.Equal(t, snap.Chats[0].ID, chats[0].ID)
	assert.Equal(t, snap.Chats[1].Messages, chats[1].Messages)
	assert.False(t, offline.Busy(c.ID))
}

func TestOfflineStoreWithoutBackend(t *testing.T) {
	s := New(nil, nil, WithIDGenerator(sequence("a", "b", "c")))
	ctx := context.Background()
	require.NoError(t, s.Load(ctx))

	c, err := s.CreateChat(ctx, "Solo")
	require.NoError(t, err)
	assert.Equal(t, models.ID("a"), c.ID)
	assert.True(t, c.IsLocal())

	_, err = s.Ask(ctx, c.ID, "q", 0)
	assert.True(t, models.IsUnavailable(err))
	_, err = s.Sync(ctx)
	assert.True(t, errors.Is(err, models.ErrRemoteUnavailable))

	renamed, err := s.RenameChat(ctx, c.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, models.SyncLocal, renamed.Sync)
}

func sequence(ids ...models.ID) func() models.ID {
	i := 0
	return func() models.ID {
		id := ids[i%len(ids)]
		i++
		return id
	}
}
