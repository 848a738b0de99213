package session

import (
	"context"
	"errors"
	"sort"

	"pdfchat/internal/logging"
	"pdfchat/internal/models"
)

// SyncReport counts what Sync pushed to the backend.
type SyncReport struct {
	Created int
	Renamed int
	Deleted int
	Failed  int
}

func (r SyncReport) Empty() bool {
	return r.Created == 0 && r.Renamed == 0 && r.Deleted == 0 && r.Failed == 0
}

// Load reads the snapshot and merges the backend's chat list into it. When
// the backend is unreachable or refuses the list the snapshot alone is used;
// a refusal is kept for LoadError. Chats created or renamed offline survive
// the merge; chats deleted offline stay hidden.
func (s *Store) Load(ctx context.Context) error {
	var snap models.Snapshot
	if s.snapshot != nil {
		var err error
		snap, err = s.snapshot.Load(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("could not read local snapshot, starting empty")
			snap = models.Snapshot{}
		}
	}

	var (
		remote    []models.Chat
		remoteErr error
	)
	if s.backend == nil {
		remoteErr = errNoBackend
	} else {
		remote, remoteErr = s.backend.ListChats(ctx)
		s.noteRemote(remoteErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted = append([]models.ID(nil), snap.Deleted...)
	s.pending = map[models.ID]*models.Pending{}
	s.loaded = map[models.ID]bool{}
	s.active = ""
	s.listed = true
	s.listErr = nil

	if remoteErr != nil {
		switch {
		case models.IsRejected(remoteErr):
			s.listErr = remoteErr
			s.logger.Warn().Err(remoteErr).Int("chats", len(snap.Chats)).Msg("backend refused chat list, using local snapshot")
		case s.backend != nil:
			s.logger.Warn().Err(remoteErr).Int("chats", len(snap.Chats)).Msg("backend unavailable, using local snapshot")
		}
		s.chats = make([]*models.Chat, 0, len(snap.Chats))
		for i := range snap.Chats {
			c := snap.Chats[i].Clone()
			if c.Sync == "" {
				c.Sync = models.SyncSynced
			}
			s.chats = append(s.chats, c)
		}
		sortChats(s.chats)
		return nil
	}

	s.chats = mergeChats(snap, remote)
	sortChats(s.chats)
	s.logger.Debug().Int("chats", len(s.chats)).Int("remote", len(remote)).Msg("chat list loaded")
	s.persistLocked(ctx)
	return nil
}

// Loaded reports whether Load has run.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listed
}

// LoadError is the backend's refusal of the chat list during the last Load,
// or nil. An unreachable backend is reported by Degraded instead.
func (s *Store) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listErr
}

// mergeChats combines the backend's list with the cached snapshot. The
// backend decides which synced chats exist; the snapshot contributes cached
// messages, documents, offline titles and offline chats.
func mergeChats(snap models.Snapshot, remote []models.Chat) []*models.Chat {
	cached := make(map[models.ID]*models.Chat, len(snap.Chats))
	for i := range snap.Chats {
		cached[snap.Chats[i].ID] = &snap.Chats[i]
	}
	tombstoned := make(map[models.ID]bool, len(snap.Deleted))
	for _, id := range snap.Deleted {
		tombstoned[id] = true
	}

	out := make([]*models.Chat, 0, len(remote)+len(snap.Chats))
	for i := range remote {
		r := remote[i]
		if tombstoned[r.ID] {
			continue
		}
		c := r.Clone()
		c.Sync = models.SyncSynced
		if prev, ok := cached[r.ID]; ok && !prev.IsLocal() {
			c.Messages = append([]models.Message(nil), prev.Clone().Messages...)
			c.Documents = append([]models.Document(nil), prev.Documents...)
			if prev.Sync == models.SyncDirty {
				c.Title = prev.Title
				c.UpdatedAt = prev.UpdatedAt
				c.Sync = models.SyncDirty
			}
		}
		if c.Messages == nil {
			c.Messages = []models.Message{}
		}
		out = append(out, c)
	}
	for i := range snap.Chats {
		if snap.Chats[i].IsLocal() {
			out = append(out, snap.Chats[i].Clone())
		}
	}
	return out
}

func sortChats(chats []*models.Chat) {
	sort.SliceStable(chats, func(i, j int) bool {
		return chats[i].CreatedAt.After(chats[j].CreatedAt)
	})
}

// Sync replays offline changes against the backend: tombstoned deletes,
// chats created offline and offline renames. It stops at the first
// unreachable-backend error and reports what went through.
func (s *Store) Sync(ctx context.Context) (SyncReport, error) {
	defer logging.TraceDuration(s.logger, "session.Sync")()
	var report SyncReport
	if s.backend == nil {
		return report, errNoBackend
	}
	defer func() {
		s.mu.Lock()
		s.persistLocked(ctx)
		s.mu.Unlock()
	}()

	s.mu.Lock()
	tombstones := append([]models.ID(nil), s.deleted...)
	s.mu.Unlock()
	for _, id := range tombstones {
		err := s.remoteDelete(ctx, id)
		switch {
		case err == nil:
			report.Deleted++
		case isNotFoundStatus(err):
		case models.IsUnavailable(err):
			return report, err
		default:
			s.logger.Warn().Err(err).Str("chat_id", id.String()).Msg("backend refused queued delete, dropping it")
			report.Failed++
		}
		s.dropTombstone(id)
	}

	for _, c := range s.chatsIn(models.SyncLocal) {
		_, created, err := s.pushLocal(ctx, c.ID)
		switch {
		case err == nil:
			if created {
				report.Created++
			}
		case models.IsUnavailable(err):
			return report, err
		case errors.Is(err, models.ErrNotFound):
			// deleted locally before or while it was pushed
		default:
			s.logger.Warn().Err(err).Str("chat_id", c.ID.String()).Msg("backend refused offline chat")
			report.Failed++
		}
	}

	for _, c := range s.chatsIn(models.SyncDirty) {
		remote, err := s.remoteRename(ctx, c.ID, c.Title)
		s.mu.Lock()
		cur, _ := s.find(c.ID)
		switch {
		case err == nil:
			if cur != nil && cur.Sync == models.SyncDirty {
				cur.Sync = models.SyncSynced
				if !remote.UpdatedAt.IsZero() {
					cur.UpdatedAt = remote.UpdatedAt
				}
			}
			report.Renamed++
		case isNotFoundStatus(err):
			// gone on the backend; push it again as a new chat next time
			if cur != nil {
				cur.Sync = models.SyncLocal
				delete(s.loaded, cur.ID)
			}
			report.Failed++
		case models.IsUnavailable(err):
			s.mu.Unlock()
			return report, err
		default:
			s.logger.Warn().Err(err).Str("chat_id", c.ID.String()).Msg("backend refused offline rename")
			report.Failed++
		}
		s.mu.Unlock()
	}

	s.logger.Info().Int("created", report.Created).Int("renamed", report.Renamed).
		Int("deleted", report.Deleted).Int("failed", report.Failed).Msg("sync finished")
	return report, nil
}

// PendingChanges reports how many offline changes are waiting for Sync.
func (s *Store) PendingChanges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.deleted)
	for _, c := range s.chats {
		if c.Sync == models.SyncLocal || c.Sync == models.SyncDirty {
			n++
		}
	}
	return n
}

func (s *Store) chatsIn(state models.SyncState) []models.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Chat
	for _, c := range s.chats {
		if c.Sync == state {
			out = append(out, *c.Clone())
		}
	}
	return out
}

func (s *Store) dropTombstone(id models.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.deleted {
		if d == id {
			s.deleted = append(s.deleted[:i], s.deleted[i+1:]...)
			return
		}
	}
}
