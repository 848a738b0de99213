package backend

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pdfchat/internal/mockbackend"
	"pdfchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*mockbackend.Server, *Client) {
	t.Helper()
	mock := mockbackend.New(nil)
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)
	return mock, New(srv.URL, WithTimeout(5*time.Second))
}

func TestChatLifecycle(t *testing.T) {
	_, c := newMock(t)
	ctx := context.Background()

	created, err := c.CreateChat(ctx, "Report Q1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Report Q1", created.Title)
	assert.Equal(t, models.SyncSynced, created.Sync)
	assert.False(t, created.CreatedAt.IsZero())

	renamed, err := c.RenameChat(ctx, created.ID, "Quarterly Report")
	require.NoError(t, err)
	assert.Equal(t, created.ID, renamed.ID)
	assert.Equal(t, "Quarterly Report", renamed.Title)

	chats, err := c.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Quarterly Report", chats[0].Title)

	require.NoError(t, c.DeleteChat(ctx, created.ID))

	chats, err = c.ListChats(ctx)
	require.NoError(t, err)
	assert.Empty(t, chats)
}

func TestAskAndUpload(t *testing.T) {
	_, c := newMock(t)
	ctx := context.Background()

	chat, err := c.CreateChat(ctx, "Docs")
	require.NoError(t, err)

	doc, err := c.UploadDocument(ctx, chat.ID, "/tmp/report.pdf", strings.NewReader(strings.Repeat("x", 2500)))
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", doc.Filename)
	assert.Equal(t, 3, doc.NumChunks)

	ans, err := c.Ask(ctx, chat.ID, "What is the revenue?", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, ans.MessageID)
	assert.Contains(t, ans.Content, "report.pdf")
	require.Len(t, ans.Sources, 2)
	assert.Equal(t, doc.ID, ans.Sources[0].DocumentID)
	assert.Equal(t, 1, ans.Sources[1].ChunkIndex)

	msgs, err := c.ListMessages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, ans.MessageID, msgs[1].ID)
}

func TestUploadStreamsFile(t *testing.T) {
	data := bytes.Repeat([]byte("%PDF-1.7 chunk "), 1<<18)
	want := sha256.Sum256(data)

	type received struct {
		sum           [sha256.Size]byte
		contentLength int64
	}
	seen := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		h := sha256.New()
		_, _ = io.Copy(h, file)
		rec := received{contentLength: r.ContentLength}
		copy(rec.sum[:], h.Sum(nil))
		seen <- rec
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 9, "filename": "` + header.Filename + `", "status": "ready", "num_chunks": 4}`))
	}))
	defer srv.Close()

	doc, err := New(srv.URL).UploadDocument(context.Background(), "1", "/home/me/big.pdf", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "big.pdf", doc.Filename)
	assert.Equal(t, 4, doc.NumChunks)

	rec := <-seen
	assert.Equal(t, want, rec.sum)
	// unknown length means the body was not buffered up front
	assert.Equal(t, int64(-1), rec.contentLength)
}

type brokenReader struct{ err error }

func (r brokenReader) Read([]byte) (int, error) { return 0, r.err }

func TestUploadReportsReadError(t *testing.T) {
	_, c := newMock(t)
	ctx := context.Background()
	chat, err := c.CreateChat(ctx, "Docs")
	require.NoError(t, err)

	diskErr := errors.New("disk on fire")
	_, err = c.UploadDocument(ctx, chat.ID, "report.pdf", io.MultiReader(strings.NewReader("%PDF"), brokenReader{diskErr}))
	require.Error(t, err)
	assert.ErrorIs(t, err, diskErr)
	assert.False(t, models.IsUnavailable(err))

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	_, err = New(srv.URL).UploadDocument(ctx, chat.ID, "report.pdf", strings.NewReader(strings.Repeat("x", 1<<20)))
	require.Error(t, err)
	assert.True(t, models.IsUnavailable(err))
}

func TestRejectedCarriesDetail(t *testing.T) {
	_, c := newMock(t)
	ctx := context.Background()

	chat, err := c.CreateChat(ctx, "Docs")
	require.NoError(t, err)

	_, err = c.UploadDocument(ctx, chat.ID, "notes.txt", strings.NewReader("hello"))
	require.Error(t, err)
	assert.True(t, models.IsRejected(err))
	assert.False(t, models.IsUnavailable(err))
	assert.Equal(t, "Only PDF files are supported.", err.Error())
	assert.Equal(t, http.StatusBadRequest, models.StatusOf(err))

	_, err = c.RenameChat(ctx, "999", "x")
	require.Error(t, err)
	assert.True(t, models.IsRejected(err))
	assert.Equal(t, http.StatusNotFound, models.StatusOf(err))
}

func TestServerErrorsAreUnavailable(t *testing.T) {
	mock, c := newMock(t)
	mock.SetDown(true)

	_, err := c.CreateChat(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, models.IsUnavailable(err))
	assert.Equal(t, "backend is down", err.Error())
}

func TestNetworkErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, WithTimeout(time.Second))
	_, err := c.ListChats(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsUnavailable(err))

	var re *models.RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "list chats", re.Op)
}

func TestWireTolerance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/chats":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"id": 7, "name": "Legacy", "created_at": "2024-05-01T12:30:00.123456"},
				{"id": "abc", "title": null}]`))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/chats/7/messages":
			_, _ = w.Write([]byte(`[{"id": 1, "role": "USER", "content": "hi", "timestamp": "2024-05-01T12:31:00Z"}]`))
		default:
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		}
	}))
	defer srv.Close()
	c := New(srv.URL)
	ctx := context.Background()

	chats, err := c.ListChats(ctx)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, models.ID("7"), chats[0].ID)
	assert.Equal(t, "Legacy", chats[0].Title)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 30, 0, 123456000, time.UTC), chats[0].CreatedAt)
	assert.Equal(t, models.DefaultChatTitle, chats[1].Title)

	msgs, err := c.ListMessages(ctx, "7")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.False(t, msgs[0].CreatedAt.IsZero())

	// empty 200 body is success
	require.NoError(t, c.DeleteChat(ctx, "7"))

	_, err = c.Ask(ctx, "7", "q", 5)
	require.Error(t, err)
	assert.Equal(t, "short and stout", err.Error())
}

func TestDetailText(t *testing.T) {
	assert.Equal(t, "Chat not found.", detailText([]byte(`{"detail":"Chat not found."}`)))
	assert.Equal(t, `[{"msg":"field required"}]`, detailText([]byte(`{"detail":[{"msg":"field required"}]}`)))
	assert.Equal(t, "plain", detailText([]byte("  plain \n")))
	assert.Equal(t, "", detailText(nil))
}
