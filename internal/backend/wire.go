package backend

import (
	"encoding/json"
	"strings"
	"time"

	"pdfchat/internal/models"
)

// The backend variants disagree on a few field names and on timestamp
// formats; everything is normalized here before it reaches the store.

type wireChat struct {
	ID        models.ID `json:"id"`
	Title     *string   `json:"title"`
	Name      *string   `json:"name"`
	CreatedAt wireTime  `json:"created_at"`
	UpdatedAt wireTime  `json:"updated_at"`
}

type wireMessage struct {
	ID        models.ID       `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Sources   []models.Source `json:"sources"`
	CreatedAt wireTime        `json:"created_at"`
	Timestamp wireTime        `json:"timestamp"`
}

type wireAnswer struct {
	Answer    string          `json:"answer"`
	Sources   []models.Source `json:"sources"`
	MessageID models.ID       `json:"message_id"`
}

type wireDocument struct {
	ID        models.ID `json:"id"`
	Filename  string    `json:"filename"`
	NumChunks int       `json:"num_chunks"`
	Status    string    `json:"status"`
	CreatedAt wireTime  `json:"created_at"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type askRequest struct {
	Message   string `json:"message"`
	MaxChunks int    `json:"max_chunks,omitempty"`
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// wireTime accepts RFC 3339 and the zone-less ISO 8601 form some backends emit.
type wireTime struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		// null, numbers and garbage leave the zero time
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return nil
}

func mapChat(w wireChat) models.Chat {
	title := ""
	if w.Title != nil {
		title = *w.Title
	} else if w.Name != nil {
		title = *w.Name
	}
	return models.Chat{
		ID:        w.ID,
		Title:     models.NormalizeTitle(title),
		Messages:  []models.Message{},
		CreatedAt: w.CreatedAt.Time,
		UpdatedAt: w.UpdatedAt.Time,
		Sync:      models.SyncSynced,
	}
}

func mapMessage(w wireMessage) models.Message {
	created := w.CreatedAt.Time
	if created.IsZero() {
		created = w.Timestamp.Time
	}
	role := strings.ToLower(w.Role)
	if !models.ValidRole(role) {
		role = models.RoleSystem
	}
	return models.Message{
		ID:        w.ID,
		Role:      role,
		Content:   w.Content,
		Sources:   w.Sources,
		CreatedAt: created,
	}
}

func mapDocument(w wireDocument, fallbackName string) models.Document {
	name := w.Filename
	if name == "" {
		name = fallbackName
	}
	return models.Document{
		ID:         w.ID,
		Filename:   name,
		NumChunks:  w.NumChunks,
		Status:     w.Status,
		AttachedAt: w.CreatedAt.Time,
	}
}

// detailText extracts a human readable description from an error body.
func detailText(body []byte) string {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return ""
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var s string
		if err := json.Unmarshal(eb.Detail, &s); err == nil {
			return s
		}
		return string(eb.Detail)
	}
	return string(body)
}
