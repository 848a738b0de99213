// Package mockbackend serves an in-memory version of the document Q&A HTTP
// API. It stores chats, messages and uploaded document names, and answers
// questions with a canned reply citing the chat's documents.
package mockbackend

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"pdfchat/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const chunkSize = 1000

type Chat struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Source struct {
	DocumentID int64 `json:"document_id"`
	ChunkIndex int   `json:"chunk_index"`
}

type Document struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Filename  string    `json:"filename"`
	Status    string    `json:"status"`
	NumChunks int       `json:"num_chunks"`
	CreatedAt time.Time `json:"created_at"`
}

type Server struct {
	mu       sync.Mutex
	nextID   int64
	chats    map[int64]*Chat
	messages map[int64][]Message
	docs     map[int64][]Document
	down     bool
	requests []string
	now      func() time.Time
	log      *zerolog.Logger

	router chi.Router
}

func New(logger *zerolog.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		chats:    map[int64]*Chat{},
		messages: map[int64][]Message{},
		docs:     map[int64][]Document{},
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetDown makes every request fail with 503 until called with false.
func (s *Server) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Requests returns "METHOD path" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Chats returns the chats the backend knows, newest first.
func (s *Server) Chats() []Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedChats()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Route("/chats", func(r chi.Router) {
		r.Get("/", s.listChats)
		r.Post("/", s.createChat)
		r.Route("/{chatID}", func(r chi.Router) {
			r.Put("/", s.renameChat)
			r.Patch("/", s.renameChat)
			r.Delete("/", s.deleteChat)
			r.Get("/messages", s.listMessages)
			r.Post("/ask", s.ask)
			r.Post("/documents", s.upload)
		})
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "OK")
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		down := s.down
		s.mu.Unlock()

		s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).
			Str("request_id", r.Header.Get("X-Request-ID")).Msg("mock backend request")
		if down {
			writeError(w, http.StatusServiceUnavailable, "backend is down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) sortedChats() []Chat {
	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *Server) listChats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := s.sortedChats()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

type titleBody struct {
	Title string `json:"title"`
	Name  string `json:"name"`
}

func (b titleBody) value() string {
	if b.Title != "" {
		return b.Title
	}
	return b.Name
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	var body titleBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid JSON body")
			return
		}
	}
	title := strings.TrimSpace(body.value())
	if title == "" {
		title = "New Chat"
	}

	s.mu.Lock()
	s.nextID++
	now := s.now()
	c := &Chat{ID: s.nextID, Title: title, CreatedAt: now, UpdatedAt: now}
	s.chats[c.ID] = c
	out := *c
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) renameChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	var body titleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return
	}
	title := strings.TrimSpace(body.value())
	if title == "" {
		writeError(w, http.StatusBadRequest, "Title cannot be empty.")
		return
	}

	s.mu.Lock()
	c, found := s.chats[id]
	var out Chat
	if found {
		c.Title = title
		c.UpdatedAt = s.now()
		out = *c
	}
	s.mu.Unlock()

	if !found {
		writeError(w, http.StatusNotFound, "Chat not found.")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	_, found := s.chats[id]
	delete(s.chats, id)
	delete(s.messages, id)
	delete(s.docs, id)
	s.mu.Unlock()

	if !found {
		writeError(w, http.StatusNotFound, "Chat not found.")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	_, found := s.chats[id]
	out := append([]Message{}, s.messages[id]...)
	s.mu.Unlock()

	if !found {
		writeError(w, http.StatusNotFound, "Chat not found.")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type askBody struct {
	Message   string `json:"message"`
	MaxChunks int    `json:"max_chunks"`
}

func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	var body askBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusUnprocessableEntity, "message is required")
		return
	}
	if body.MaxChunks <= 0 {
		body.MaxChunks = 5
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.chats[id]; !found {
		writeError(w, http.StatusNotFound, "Chat not found.")
		return
	}

	now := s.now()
	s.nextID++
	s.messages[id] = append(s.messages[id], Message{ID: s.nextID, ChatID: id, Role: "user", Content: body.Message, CreatedAt: now})

	answer, sources := s.answerLocked(id, body.Message, body.MaxChunks)
	s.nextID++
	reply := Message{ID: s.nextID, ChatID: id, Role: "assistant", Content: answer, Sources: sources, CreatedAt: now}
	s.messages[id] = append(s.messages[id], reply)

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":     reply.Content,
		"message_id": reply.ID,
		"sources":    reply.Sources,
	})
}

func (s *Server) answerLocked(chatID int64, question string, maxChunks int) (string, []Source) {
	docs := s.docs[chatID]
	if len(docs) == 0 {
		return "No documents have been uploaded to this chat yet.", nil
	}
	var (
		names   []string
		sources []Source
	)
	for _, d := range docs {
		names = append(names, d.Filename)
		for i := 0; i < d.NumChunks && len(sources) < maxChunks; i++ {
			sources = append(sources, Source{DocumentID: d.ID, ChunkIndex: i})
		}
	}
	return fmt.Sprintf("Answer to %q based on %s.", question, strings.Join(names, ", ")), sources
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	id, ok := chatID(w, r)
	if !ok {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Only PDF files are supported.")
		return
	}
	n, err := io.Copy(io.Discard, file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}
	if n == 0 {
		writeError(w, http.StatusBadRequest, "No text found in PDF.")
		return
	}

	s.mu.Lock()
	if _, found := s.chats[id]; !found {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, "Chat not found.")
		return
	}
	s.nextID++
	doc := Document{
		ID:        s.nextID,
		ChatID:    id,
		Filename:  header.Filename,
		Status:    "ready",
		NumChunks: int((n + chunkSize - 1) / chunkSize),
		CreatedAt: s.now(),
	}
	s.docs[id] = append(s.docs[id], doc)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, doc)
}

func chatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Chat not found.")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
