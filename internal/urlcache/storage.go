// ABOUTME: Durable storage backends for URL caches
// ABOUTME: FileStorage keeps one newline-delimited text file per (chat, feed) pair

package urlcache

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

// Storage persists serialized caches at locations derived from a
// (chat ID, feed URL) pair. Read must return an error satisfying
// errors.Is(err, fs.ErrNotExist) when nothing is stored at location.
type Storage interface {
	Location(chatID, feedURL string) string
	Read(ctx context.Context, location string) ([]byte, error)
	Write(ctx context.Context, location string, data []byte) error
}

// maxFileNameLen is the common per-component limit of Linux and macOS filesystems.
const maxFileNameLen = 255

// FileStorage stores each cache as a text file inside Dir.
// Dir is expected to exist; FileStorage never creates directories.
type FileStorage struct {
	Dir string
}

// NewFileStorage returns a FileStorage rooted at dir.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{Dir: dir}
}

// Location returns "<Dir>/<chatID>-<form-encoded feed URL>.txt". Names too
// long for the filesystem fall back to a BLAKE2b-256 digest of the feed URL.
func (s *FileStorage) Location(chatID, feedURL string) string {
	name := fmt.Sprintf("%s-%s.txt", chatID, FormEncode(feedURL))
	if len(name) > maxFileNameLen {
		sum := blake2b.Sum256([]byte(feedURL))
		name = fmt.Sprintf("%s-%s.txt", chatID, hex.EncodeToString(sum[:]))
	}
	return filepath.Join(s.Dir, name)
}

// Read returns the file contents at location.
func (s *FileStorage) Read(_ context.Context, location string) ([]byte, error) {
	return os.ReadFile(location)
}

// Write replaces the file at location. The data is written to a temporary
// file in the same directory and renamed over the target, so a reader sees
// either the old or the new contents.
func (s *FileStorage) Write(_ context.Context, location string, data []byte) error {
	dir := filepath.Dir(location)
	tmp, err := os.CreateTemp(dir, ".urlcache-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, location); err != nil {
		cleanup()
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
