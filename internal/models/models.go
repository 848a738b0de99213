package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

const (
	DefaultChatTitle = "New Chat"
	DefaultMaxChunks = 5
)

// SyncState tells whether the backend knows a chat the way the store holds it.
type SyncState string

const (
	SyncSynced SyncState = "synced" // backend has it as-is
	SyncLocal  SyncState = "local"  // created while the backend was unreachable
	SyncDirty  SyncState = "dirty"  // renamed while the backend was unreachable
)

// ID is an opaque identifier. The backend may send numbers or strings; both
// decode into the same string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

type Source struct {
	DocumentID ID  `json:"document_id"`
	ChunkIndex int `json:"chunk_index"`
}

type Document struct {
	ID         ID        `json:"id,omitempty"`
	Filename   string    `json:"filename"`
	NumChunks  int       `json:"num_chunks"`
	Status     string    `json:"status,omitempty"`
	AttachedAt time.Time `json:"attached_at"`
}

type Message struct {
	ID        ID        `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Sources   []Source  `json:"sources,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Pending is the placeholder shown while a question is in flight. It is never
// part of a Chat, so nothing that serializes chats can write one out.
type Pending struct {
	ID        ID
	ChatID    ID
	StartedAt time.Time
}

type Chat struct {
	ID        ID         `json:"id"`
	Title     string     `json:"title"`
	Documents []Document `json:"documents,omitempty"`
	Messages  []Message  `json:"messages"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Sync      SyncState  `json:"sync,omitempty"`
}

// ActiveDocument returns the most recently attached document, if any.
func (c *Chat) ActiveDocument() (Document, bool) {
	if len(c.Documents) == 0 {
		return Document{}, false
	}
	return c.Documents[len(c.Documents)-1], true
}

// PDFName is the filename of the active document or "".
func (c *Chat) PDFName() string {
	doc, ok := c.ActiveDocument()
	if !ok {
		return ""
	}
	return doc.Filename
}

func (c *Chat) IsLocal() bool { return c.Sync == SyncLocal }

// Clone returns a deep copy that shares no slices with c.
func (c *Chat) Clone() *Chat {
	out := *c
	out.Documents = append([]Document(nil), c.Documents...)
	out.Messages = make([]Message, len(c.Messages))
	for i, m := range c.Messages {
		m.Sources = append([]Source(nil), m.Sources...)
		out.Messages[i] = m
	}
	return &out
}

// Answer is the backend's reply to a question.
type Answer struct {
	MessageID ID
	Content   string
	Sources   []Source
}

// Snapshot is the durable local record of the store.
type Snapshot struct {
	Chats   []Chat `json:"chats"`
	Deleted []ID   `json:"deleted,omitempty"`
}

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// NormalizeTitle trims title and falls back to the default chat title.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return DefaultChatTitle
	}
	return title
}
