// Package archive keeps rendered documents in a blob store: a local
// directory or an S3-compatible bucket.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/nhle/sitebook/internal/model"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("document not found")

// Info describes a stored document.
type Info struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// Store is a flat key/value blob store. Put replaces an existing key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Info, error)
	Get(ctx context.Context, key string) ([]byte, Info, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Info, error)
}

// Open returns the store selected by cfg.Driver, or nil when archiving is
// disabled. secret is the S3 secret access key, if any.
func Open(ctx context.Context, cfg model.ArchiveConfig, secret string) (Store, error) {
	switch cfg.Driver {
	case "":
		return nil, nil
	case "fs":
		fs, err := NewFSStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "s3":
		s3, err := NewS3Store(ctx, S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			PathStyle:       cfg.PathStyle,
			AccessKeyID:     cfg.AccessKey,
			SecretAccessKey: secret,
		})
		if err != nil {
			return nil, err
		}
		return s3, nil
	}
	return nil, fmt.Errorf("unknown archive driver %q", cfg.Driver)
}

// InvoiceKey is the key of an invoice PDF.
func InvoiceKey(fileName string) string {
	return path.Join("invoices", fileName)
}

// TimesheetKey is the key of a client's timesheet PDF.
func TimesheetKey(clientID, fileName string) string {
	return path.Join("timesheets", clientID, fileName)
}

// cleanKey rejects keys that are empty, absolute or climb out of the root.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid absolute key %q", key)
	}
	clean := path.Clean(key)
	if clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return clean, nil
}
