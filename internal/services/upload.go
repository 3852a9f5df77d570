package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jjudge-oj/todolist/internal/storage"
	"github.com/jjudge-oj/todolist/internal/store"
	"github.com/jjudge-oj/todolist/types"
	"go.uber.org/zap"
)

// UploadsPath is the public prefix under which stored uploads are served.
const UploadsPath = "/uploads/"

const (
	MsgUnauthenticated = "User not authenticated"
	MsgNoFile          = "No file uploaded."
	MsgUploaded        = "File uploaded and profile updated successfully!"
)

const maxBaseNameLen = 100

// Upload is a received file.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Body        io.Reader
}

// UploadService stores profile pictures and points users at them.
type UploadService struct {
	users   UserRepository
	objects storage.ObjectStorage
	events  activity
	log     *zap.Logger
	now     func() time.Time
}

func NewUploadService(users UserRepository, objects storage.ObjectStorage, publisher Publisher, log *zap.Logger) *UploadService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UploadService{
		users:   users,
		objects: objects,
		events:  newActivity(publisher, log),
		log:     log,
		now:     time.Now,
	}
}

// UploadProfileImage stores file under a collision resistant key and sets
// it as the user's image. userID is empty for anonymous callers.
func (s *UploadService) UploadProfileImage(ctx context.Context, userID string, file *Upload) (types.User, error) {
	if userID == "" {
		return types.User{}, newError(ErrAuth, MsgUnauthenticated)
	}
	if file == nil || file.Body == nil {
		return types.User{}, newError(ErrBadRequest, MsgNoFile)
	}

	key := ObjectKey(s.now(), file.Filename)
	if err := s.objects.Put(ctx, key, file.Body, file.Size, file.ContentType); err != nil {
		return types.User{}, fmt.Errorf("store upload: %w", err)
	}

	user, err := s.users.UpdateImagePath(ctx, userID, UploadsPath+key)
	if err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.log.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, &Error{Kind: ErrAuth, Messages: []string{MsgUnauthenticated}, Err: err}
		}
		return types.User{}, fmt.Errorf("update image path: %w", err)
	}

	s.events.publish(ctx, EventUserImageUpdated, UserEvent{
		ID:        user.ID,
		Username:  user.Username,
		ImagePath: user.ImagePath,
		At:        user.UpdatedAt,
	})
	return user, nil
}

// Open returns a stored upload by key.
func (s *UploadService) Open(ctx context.Context, key string) (storage.Object, error) {
	obj, err := s.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.Object{}, &Error{Kind: ErrNotFound, Err: err}
		}
		return storage.Object{}, fmt.Errorf("open upload: %w", err)
	}
	return obj, nil
}

// ObjectKey builds "<unix millis>-<8 hex>-<sanitised base name>".
func ObjectKey(now time.Time, filename string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), suffix, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	cleaned := strings.TrimLeft(b.String(), ".")
	if len(cleaned) > maxBaseNameLen {
		cleaned = cleaned[len(cleaned)-maxBaseNameLen:]
	}
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}
