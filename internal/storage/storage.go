// AngelaMos | 2026
// storage.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/angelamos/consultancy-api/internal/config"
)

var ErrUnsupportedDocument = errors.New("unsupported document type")

// Store persists uploaded documents and returns the key they were saved under.
type Store interface {
	Save(
		ctx context.Context,
		key string,
		r io.Reader,
		size int64,
		contentType string,
	) (string, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

var documentTypes = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// DocumentKey builds a collision-free key for an uploaded CV and reports the
// content type implied by its extension.
func DocumentKey(prefix, filename string) (string, string, error) {
	ext := strings.ToLower(path.Ext(filename))
	contentType, ok := documentTypes[ext]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedDocument, ext)
	}

	return path.Join(prefix, uuid.New().String()+ext), contentType, nil
}

func NewStore(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "minio":
		store, err := NewObjectStore(cfg)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "local", "":
		return NewLocalStore(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}
