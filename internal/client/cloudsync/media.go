package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/client/mapper"
	"github.com/dmitrijs2005/gophjournal/internal/client/models"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/docstore"
	"github.com/dmitrijs2005/gophjournal/internal/filex"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

// MediaStore is the per-user binary object store. Keys are relative to the
// user's namespace.
type MediaStore interface {
	Upload(ctx context.Context, key, localPath string) error
	Download(ctx context.Context, key, localPath string) error
	Delete(ctx context.Context, prefix string) (int, error)
}

// MediaSync moves entry attachments between the media dir and the media
// store. Its failures never affect text sync.
type MediaSync struct {
	store  MediaStore
	remote docstore.Store
	dir    string
	logger logging.Logger
	now    func() time.Time
}

func NewMediaSync(store MediaStore, remote docstore.Store, dir string, l logging.Logger) *MediaSync {
	return &MediaSync{
		store:  store,
		remote: remote,
		dir:    dir,
		logger: l.With("module", "media_sync"),
		now:    time.Now,
	}
}

// LocalPath maps a media key to its file under the media dir.
func (m *MediaSync) LocalPath(key string) string {
	return filepath.Join(m.dir, filepath.FromSlash(key))
}

// UploadEntryMedia uploads the entry's attachments unless the remote
// document already records this exact set as uploaded, then stamps
// mediaUploadedAt with an Update so the entry's own fields are untouched.
func (m *MediaSync) UploadEntryMedia(ctx context.Context, e *models.Entry) error {
	keys := e.MediaKeys()
	if len(keys) == 0 {
		return nil
	}

	ref := docstore.Ref{Collection: string(models.FamilyEntries), ID: e.ID}
	doc, err := m.remote.Get(ctx, ref)
	if err != nil {
		return fmt.Errorf("read entry document: %w", err)
	}
	if _, done := doc.Data[mapper.FieldMediaUploadedAt]; done && doc.Data[mapper.FieldMediaKeys] == mapper.MediaKeysValue(keys) {
		return nil
	}

	uploaded := make([]string, 0, len(keys))
	for _, key := range keys {
		path := m.LocalPath(key)
		if !filex.Exists(path) {
			m.logger.Warn(ctx, "attachment missing locally, skipped", "key", key)
			continue
		}
		if err := m.store.Upload(ctx, key, path); err != nil {
			return fmt.Errorf("upload %s: %w", key, err)
		}
		uploaded = append(uploaded, key)
	}
	if len(uploaded) == 0 {
		return nil
	}

	return m.remote.Update(ctx, ref, map[string]any{
		mapper.FieldMediaUploadedAt: timex.UnixMillis(m.now()),
		mapper.FieldMediaKeys:       mapper.MediaKeysValue(uploaded),
	})
}

// FetchEntryMedia downloads attachments not yet present locally. It keeps
// going after a failed key and returns the joined errors.
func (m *MediaSync) FetchEntryMedia(ctx context.Context, e *models.Entry) error {
	var errs []error
	for _, key := range e.MediaKeys() {
		path := m.LocalPath(key)
		if filex.Exists(path) {
			continue
		}
		if err := m.store.Download(ctx, key, path); err != nil {
			if errors.Is(err, common.ErrNotFound) {
				m.logger.Info(ctx, "attachment not in media store", "key", key)
				continue
			}
			errs = append(errs, fmt.Errorf("download %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// EntryPrefix is the media prefix owned by one entry.
func EntryPrefix(entryID string) string {
	return string(models.FamilyEntries) + "/" + entryID + "/"
}

// EntryMediaKey builds the key for an attachment, e.g. entries/<id>/image.jpg.
func EntryMediaKey(entryID, kind, ext string) string {
	return EntryPrefix(entryID) + kind + ext
}
