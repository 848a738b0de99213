package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"pdfchat/internal/logging"
	"pdfchat/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxErrorBody = 64 << 10

// Client talks to the document Q&A backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *zerolog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) ListChats(ctx context.Context) ([]models.Chat, error) {
	var out []wireChat
	if err := c.doJSON(ctx, "list chats", http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	chats := make([]models.Chat, 0, len(out))
	for _, w := range out {
		chats = append(chats, mapChat(w))
	}
	return chats, nil
}

func (c *Client) CreateChat(ctx context.Context, title string) (models.Chat, error) {
	var out wireChat
	if err := c.doJSON(ctx, "create chat", http.MethodPost, "/chats", titleRequest{Title: title}, &out); err != nil {
		return models.Chat{}, err
	}
	if out.ID == "" {
		return models.Chat{}, malformed("create chat", errors.New("response carries no chat id"))
	}
	chat := mapChat(out)
	if out.Title == nil && out.Name == nil {
		chat.Title = models.NormalizeTitle(title)
	}
	return chat, nil
}

// RenameChat uses PUT; the PATCH variant some backends expose behaves the same.
func (c *Client) RenameChat(ctx context.Context, id models.ID, title string) (models.Chat, error) {
	var out wireChat
	if err := c.doJSON(ctx, "rename chat", http.MethodPut, chatPath(id), titleRequest{Title: title}, &out); err != nil {
		return models.Chat{}, err
	}
	chat := mapChat(out)
	if out.ID == "" {
		chat.ID = id
	}
	if out.Title == nil && out.Name == nil {
		chat.Title = title
	}
	return chat, nil
}

func (c *Client) DeleteChat(ctx context.Context, id models.ID) error {
	return c.doJSON(ctx, "delete chat", http.MethodDelete, chatPath(id), nil, nil)
}

func (c *Client) ListMessages(ctx context.Context, id models.ID) ([]models.Message, error) {
	var out []wireMessage
	if err := c.doJSON(ctx, "list messages", http.MethodGet, chatPath(id)+"/messages", nil, &out); err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(out))
	for _, w := range out {
		msgs = append(msgs, mapMessage(w))
	}
	return msgs, nil
}

func (c *Client) Ask(ctx context.Context, id models.ID, question string, maxChunks int) (models.Answer, error) {
	var out wireAnswer
	req := askRequest{Message: question, MaxChunks: maxChunks}
	if err := c.doJSON(ctx, "ask question", http.MethodPost, chatPath(id)+"/ask", req, &out); err != nil {
		return models.Answer{}, err
	}
	return models.Answer{MessageID: out.MessageID, Content: out.Answer, Sources: out.Sources}, nil
}

// UploadDocument streams r to the backend as a multipart form without
// buffering the whole file.
func (c *Client) UploadDocument(ctx context.Context, id models.ID, filename string, r io.Reader) (models.Document, error) {
	name := filepath.Base(filename)
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	contentType := mw.FormDataContentType()
	src := &sourceReader{r: r}
	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			if _, err = io.Copy(part, src); err == nil {
				err = mw.Close()
			}
		}
		pw.CloseWithError(err)
	}()

	var out wireDocument
	err := c.do(ctx, "upload document", http.MethodPost, chatPath(id)+"/documents", pr, contentType, &out)
	pr.Close()
	if src.failed() != nil {
		return models.Document{}, fmt.Errorf("read %s: %w", filename, src.failed())
	}
	if err != nil {
		return models.Document{}, err
	}
	return mapDocument(out, name), nil
}

// sourceReader remembers the first error of the file being uploaded, so it
// is not mistaken for a transport failure.
type sourceReader struct {
	r   io.Reader
	mu  sync.Mutex
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
	}
	return n, err
}

func (s *sourceReader) failed() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func chatPath(id models.ID) string {
	return "/chats/" + url.PathEscape(id.String())
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, body, contentType, out)
}

// do performs one request. Network failures and 5xx responses are reported as
// ErrRemoteUnavailable, 4xx as ErrRemoteRejected. A 204 or empty body leaves
// out untouched.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("request_id", requestID).Str("method", method).Str("path", path).
			Dur("duration", time.Since(start)).Msg("backend request failed")
		return &models.RemoteError{Op: op, Err: fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)}
	}
	defer resp.Body.Close()

	c.logger.Debug().Str("request_id", requestID).Str("method", method).Str("path", path).
		Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("backend request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		detail := detailText(data)
		if detail == "" {
			detail = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		kind := models.ErrRemoteRejected
		if resp.StatusCode >= 500 {
			kind = models.ErrRemoteUnavailable
		}
		return &models.RemoteError{Op: op, Status: resp.StatusCode, Detail: detail, Err: kind}
	}

	if resp.StatusCode == http.StatusNoContent || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return malformed(op, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return malformed(op, err)
	}
	return nil
}

func malformed(op string, err error) error {
	return &models.RemoteError{Op: op, Err: fmt.Errorf("%w: malformed response: %v", models.ErrRemoteUnavailable, err)}
}
