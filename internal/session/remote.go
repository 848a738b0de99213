package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"pdfchat/internal/models"
)

var errNoBackend = &models.RemoteError{
	Op:  "backend",
	Err: fmt.Errorf("%w: no backend configured", models.ErrRemoteUnavailable),
}

func (s *Store) remoteCreate(ctx context.Context, title string) (models.Chat, error) {
	if s.backend == nil {
		return models.Chat{}, errNoBackend
	}
	chat, err := s.backend.CreateChat(ctx, title)
	s.noteRemote(err)
	return chat, err
}

func (s *Store) remoteRename(ctx context.Context, id models.ID, title string) (models.Chat, error) {
	if s.backend == nil {
		return models.Chat{}, errNoBackend
	}
	chat, err := s.backend.RenameChat(ctx, id, title)
	s.noteRemote(err)
	return chat, err
}

func (s *Store) remoteDelete(ctx context.Context, id models.ID) error {
	if s.backend == nil {
		return errNoBackend
	}
	err := s.backend.DeleteChat(ctx, id)
	s.noteRemote(err)
	return err
}

// ensureRemote makes sure the backend knows the chat, pushing a chat that was
// created offline. It returns the chat's current id, which differs from id
// once the chat has been pushed.
func (s *Store) ensureRemote(ctx context.Context, id models.ID) (models.ID, error) {
	if s.backend == nil {
		if _, err := s.Chat(id); err != nil {
			return "", err
		}
		return "", errNoBackend
	}
	remoteID, _, err := s.pushLocal(ctx, id)
	return remoteID, err
}

// pushLocal creates an offline chat on the backend and adopts the id it is
// given. Chats the backend already knows are returned as they are; created
// reports whether this call made the backend create one.
func (s *Store) pushLocal(ctx context.Context, id models.ID) (_ models.ID, created bool, _ error) {
	s.mu.Lock()
	id = s.resolveLocked(id)
	c, _ := s.find(id)
	if c == nil {
		s.mu.Unlock()
		return "", false, models.NotFoundf("chat %s", id)
	}
	local := c.IsLocal()
	s.mu.Unlock()
	if !local {
		return id, false, nil
	}

	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	// another caller may have pushed it while we waited
	s.mu.Lock()
	id = s.resolveLocked(id)
	c, _ = s.find(id)
	if c == nil {
		s.mu.Unlock()
		return "", false, models.NotFoundf("chat %s", id)
	}
	if !c.IsLocal() {
		s.mu.Unlock()
		return id, false, nil
	}
	title := c.Title
	s.mu.Unlock()

	remote, err := s.remoteCreate(ctx, title)
	if err != nil {
		return "", false, err
	}

	s.mu.Lock()
	err = s.adoptLocked(id, remote)
	if err == nil {
		s.persistLocked(ctx)
	}
	s.mu.Unlock()
	if errors.Is(err, models.ErrNotFound) {
		// deleted locally while the create was in flight
		s.logger.Warn().Err(err).Str("chat_id", remote.ID.String()).Msg("offline chat vanished during push")
		if derr := s.remoteDelete(ctx, remote.ID); derr != nil && !isNotFoundStatus(derr) {
			s.logger.Warn().Err(derr).Str("chat_id", remote.ID.String()).Msg("could not remove orphaned chat")
		}
		return "", false, err
	}
	if err != nil {
		return "", false, err
	}
	return remote.ID, true, nil
}

// adoptLocked replaces a local chat's identity with the one the backend
// assigned, keeping its messages and documents. The active pointer and any
// placeholder follow the chat.
func (s *Store) adoptLocked(localID models.ID, remote models.Chat) error {
	c, _ := s.find(localID)
	if c == nil {
		return models.NotFoundf("chat %s", localID)
	}
	if other, _ := s.find(remote.ID); other != nil && other != c {
		return fmt.Errorf("backend assigned id %s which is already in use", remote.ID)
	}
	c.ID = remote.ID
	if !remote.CreatedAt.IsZero() {
		c.CreatedAt = remote.CreatedAt
	}
	if !remote.UpdatedAt.IsZero() {
		c.UpdatedAt = remote.UpdatedAt
	}
	c.Sync = models.SyncSynced

	if s.active == localID {
		s.active = remote.ID
	}
	if p := s.pending[localID]; p != nil {
		delete(s.pending, localID)
		p.ChatID = remote.ID
		s.pending[remote.ID] = p
	}
	delete(s.loaded, localID)
	// the backend has no copy of messages written offline
	s.loaded[remote.ID] = true
	if localID != remote.ID {
		s.pushed[localID] = remote.ID
	}
	return nil
}

func isNotFoundStatus(err error) bool {
	return models.StatusOf(err) == http.StatusNotFound
}
