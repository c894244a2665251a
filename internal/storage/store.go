// Package storage keeps uploaded document bytes outside the database.
//
// A FileStore hands out opaque keys; callers persist the key and never build
// paths themselves.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// ErrInvalidKey is returned for keys this store could not have issued.
var ErrInvalidKey = errors.New("storage: invalid key")

// ErrNotExist is returned when no object is stored under a key.
var ErrNotExist = errors.New("storage: object does not exist")

// StoredFile describes an object written by Save.
type StoredFile struct {
	Key      string
	Filename string
	SHA256   string
	Size     int64
}

// FileStore persists uploaded content.
type FileStore interface {
	Save(ctx context.Context, r io.Reader, originalName string) (StoredFile, error)
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
	DetectContentType(key string) (string, error)
}

// LocalStore is a FileStore on the local filesystem. Objects are written to a
// temporary file first and renamed into place once fully copied.
type LocalStore struct {
	dir string
}

var _ FileStore = (*LocalStore)(nil)

// NewLocalStore creates dir when missing.
func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage: empty directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string { return s.dir }

// Save copies r into the store and returns its key, SHA-256 and size. The
// copy stops early when ctx is cancelled.
func (s *LocalStore) Save(ctx context.Context, r io.Reader, originalName string) (StoredFile, error) {
	name := CleanFilename(originalName)
	key := uuid.NewString() + strings.ToLower(filepath.Ext(name))

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return StoredFile{}, err
	}
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmp.Name())
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return StoredFile{}, err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return StoredFile{}, err
	}

	return StoredFile{
		Key:      key,
		Filename: name,
		SHA256:   hex.EncodeToString(h.Sum(nil)),
		Size:     n,
	}, nil
}

// Open returns the object stored under key.
func (s *LocalStore) Open(key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotExist
	}
	return f, err
}

// Delete removes the object; a missing object is not an error.
func (s *LocalStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DetectContentType sniffs the stored bytes (not the filename).
func (s *LocalStore) DetectContentType(key string) (string, error) {
	rc, err := s.Open(key)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	m, err := mimetype.DetectReader(rc)
	if err != nil {
		return "", err
	}
	return m.String(), nil
}

func (s *LocalStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, key), nil
}

const maxFilenameBytes = 255

// CleanFilename reduces a client-supplied filename to its base name in NFC
// form, without control characters, capped at 255 bytes. An unusable name
// becomes "upload".
func CleanFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	for len(name) > maxFilenameBytes {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return name
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
