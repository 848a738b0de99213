package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdfchat/internal/logging"
	"pdfchat/internal/models"
)

// Ask sends question to the backend and appends the answer to the chat.
//
// The user's question is recorded before the request goes out, and a
// placeholder marks the chat busy until the backend replies. The placeholder
// is always cleared; on failure the question stays in the thread and the
// error is returned for the caller to show. A chat created offline is pushed
// to the backend first.
func (s *Store) Ask(ctx context.Context, chatID models.ID, question string, maxChunks int) (*models.Message, error) {
	defer logging.TraceDuration(s.logger, "session.Ask")()
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.InvalidArgumentf("question cannot be empty")
	}
	if maxChunks <= 0 {
		maxChunks = s.maxChunks
	}

	p, err := s.BeginPending(chatID)
	if err != nil {
		return nil, err
	}
	if _, err := s.AppendMessage(ctx, chatID, models.Message{Role: models.RoleUser, Content: question}); err != nil {
		s.RemoveMessage(chatID, p.ID)
		return nil, err
	}

	remoteID, err := s.ensureRemote(ctx, chatID)
	if err != nil {
		s.RemoveMessage(chatID, p.ID)
		s.logger.Warn().Err(err).Str("chat_id", chatID.String()).Msg("question not sent")
		return nil, err
	}

	s.logger.Debug().Str("chat_id", remoteID.String()).Int("max_chunks", maxChunks).Msg("asking backend")
	ans, err := s.backend.Ask(ctx, remoteID, question, maxChunks)
	s.noteRemote(err)
	s.RemoveMessage(remoteID, p.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("chat_id", remoteID.String()).Msg("question failed")
		return nil, err
	}

	reply := models.Message{
		ID:      ans.MessageID,
		Role:    models.RoleAssistant,
		Content: ans.Content,
		Sources: ans.Sources,
	}
	c, err := s.AppendMessage(ctx, remoteID, reply)
	if err != nil {
		s.logger.Info().Str("chat_id", remoteID.String()).Msg("chat deleted before the answer arrived")
		return nil, err
	}
	last := c.Messages[len(c.Messages)-1]
	return &last, nil
}

// UploadDocument sends the PDF at path to the backend and records it as the
// chat's active document. Uploads need the backend; there is no offline
// fallback.
func (s *Store) UploadDocument(ctx context.Context, chatID models.ID, path string) (*models.Document, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, models.InvalidArgumentf("no file selected")
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return nil, models.InvalidArgumentf("only PDF files are supported")
	}
	if _, err := s.Chat(chatID); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidArgument, err)
	}
	if info.IsDir() {
		return nil, models.InvalidArgumentf("%s is a directory", path)
	}

	remoteID, err := s.ensureRemote(ctx, chatID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("chat_id", remoteID.String()).Str("file", filepath.Base(path)).
		Int64("bytes", info.Size()).Msg("uploading document")
	doc, err := s.backend.UploadDocument(ctx, remoteID, path, f)
	s.noteRemote(err)
	if err != nil {
		return nil, err
	}

	c, err := s.AttachDocument(ctx, remoteID, doc)
	if err != nil {
		return nil, err
	}
	out, _ := c.ActiveDocument()
	return &out, nil
}
