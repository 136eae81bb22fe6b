// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package mediastore

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/relaydesk/relaydesk/lib/sanitize"
	"github.com/relaydesk/relaydesk/lib/storage"
)

// indexFile maps hex content hashes to absolute stored paths.
const indexFile = "file_index.json"

// Store is the per-instance deduplicating media store. Safe for
// concurrent use. The hash index is flushed synchronously after every
// new blob.
type Store struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	index map[string]string
}

// Open loads (or initializes) the media store rooted at dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store := &Store{
		root:   dir,
		logger: logger,
		index:  map[string]string{},
	}
	if err := storage.LoadJSON(store.indexPath(), &store.index); err != nil {
		return nil, fmt.Errorf("mediastore: loading %s: %w", store.indexPath(), err)
	}
	return store, nil
}

func (s *Store) indexPath() string {
	return filepath.Join(s.root, indexFile)
}

// userDir returns the media directory for a phone/name pair.
func (s *Store) userDir(phoneKey, displayName string) string {
	return filepath.Join(s.root, phoneKey, sanitize.Name(displayName), "media")
}

// Save stores data for the given user, deduplicating by content hash.
// On a hash hit the existing path is returned and the new copy is
// discarded, regardless of the filename it arrived under. On a miss
// the blob is written into the user's media directory and indexed.
// The returned bool reports whether a new file was created.
func (s *Store) Save(data []byte, phoneKey, displayName, filename string) (string, bool, error) {
	hash := FormatHash(HashBytes(data))

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.index[hash]; ok {
		return existing, false, nil
	}

	directory := s.userDir(phoneKey, displayName)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return "", false, fmt.Errorf("mediastore: creating %s: %w", directory, err)
	}

	path := filepath.Join(directory, storedName(hash, filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", false, fmt.Errorf("mediastore: writing %s: %w", path, err)
	}

	s.index[hash] = path
	s.flushLocked()
	return path, true, nil
}

// Lookup returns the stored path for a content hash, if indexed.
func (s *Store) Lookup(hash Hash) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.index[FormatHash(hash)]
	return path, ok
}

// RenameUser migrates the user's storage directory from the old
// display name to the new one, then rewrites every index entry and
// every transcript back-reference that pointed under the old
// directory. If the old directory does not exist, the new one is
// ensured and no error is returned — the operation is idempotent so a
// replayed cascade step is harmless.
func (s *Store) RenameUser(phoneKey, oldName, newName string) error {
	oldDir := filepath.Join(s.root, phoneKey, sanitize.Name(oldName))
	newDir := filepath.Join(s.root, phoneKey, sanitize.Name(newName))
	if oldDir == newDir {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(oldDir); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Join(newDir, "media"), 0755); err != nil {
			return fmt.Errorf("mediastore: ensuring %s: %w", newDir, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(newDir), 0755); err != nil {
		return fmt.Errorf("mediastore: preparing %s: %w", newDir, err)
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("mediastore: renaming %s to %s: %w", oldDir, newDir, err)
	}

	prefix := oldDir + string(filepath.Separator)
	rewritten := 0
	for hash, path := range s.index {
		if strings.HasPrefix(path, prefix) {
			s.index[hash] = filepath.Join(newDir, strings.TrimPrefix(path, prefix))
			rewritten++
		}
	}
	if rewritten > 0 {
		s.flushLocked()
	}

	// Transcript files share the user directory and reference stored
	// blobs by absolute path; those back-references must follow the
	// move or they point at paths that no longer exist.
	references, err := rewriteTranscriptReferences(newDir, prefix, newDir+string(filepath.Separator))
	if err != nil {
		return fmt.Errorf("mediastore: rewriting transcript references under %s: %w", newDir, err)
	}

	s.logger.Info("media directory migrated",
		"phone", phoneKey,
		"old_dir", oldDir,
		"new_dir", newDir,
		"index_entries_rewritten", rewritten,
		"transcript_references_rewritten", references,
	)
	return nil
}

// rewriteTranscriptReferences replaces oldPrefix with newPrefix inside
// every transcript file directly under dir, returning how many files
// changed. Updated files are written via temp-file+rename with their
// original mode preserved, so read-only snapshots stay read-only and a
// crash mid-rewrite never tears a transcript.
func rewriteTranscriptReferences(dir, oldPrefix, newPrefix string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	rewritten := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "transcript-") || !strings.HasSuffix(name, ".md") {
			continue
		}
		path := filepath.Join(dir, name)

		data, err := os.ReadFile(path)
		if err != nil {
			return rewritten, err
		}
		if !bytes.Contains(data, []byte(oldPrefix)) {
			continue
		}
		updated := bytes.ReplaceAll(data, []byte(oldPrefix), []byte(newPrefix))

		info, err := entry.Info()
		if err != nil {
			return rewritten, err
		}
		temp, err := os.CreateTemp(dir, name+".tmp-*")
		if err != nil {
			return rewritten, err
		}
		tempPath := temp.Name()
		_, writeErr := temp.Write(updated)
		if writeErr == nil {
			writeErr = temp.Sync()
		}
		closeErr := temp.Close()
		if writeErr == nil {
			writeErr = closeErr
		}
		if writeErr == nil {
			writeErr = os.Chmod(tempPath, info.Mode().Perm())
		}
		if writeErr == nil {
			writeErr = os.Rename(tempPath, path)
		}
		if writeErr != nil {
			os.Remove(tempPath)
			return rewritten, writeErr
		}
		rewritten++
	}
	return rewritten, nil
}

// FileCount returns the number of blobs stored under the user's
// current media directory.
func (s *Store) FileCount(phoneKey, displayName string) (int, error) {
	entries, err := os.ReadDir(s.userDir(phoneKey, displayName))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("mediastore: reading media dir: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			count++
		}
	}
	return count, nil
}

// Purge removes every stored blob and the index from memory and disk.
func (s *Store) Purge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range s.index {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Error("purge: removing blob failed", "path", path, "error", err)
		}
	}
	s.index = map[string]string{}
	if err := storage.SaveJSON(s.indexPath(), s.index); err != nil {
		return fmt.Errorf("mediastore: purging index: %w", err)
	}
	return nil
}

// storedName derives the on-disk filename: a short hash prefix for
// uniqueness plus the sanitized original filename for operators
// browsing the directory.
func storedName(hexHash, filename string) string {
	base := sanitize.Name(strings.TrimSuffix(filename, filepath.Ext(filename)))
	extension := strings.ToLower(filepath.Ext(filename))
	if base == sanitize.UnknownUser {
		base = "blob"
	}
	return hexHash[:12] + "-" + base + extension
}

// flushLocked persists the hash index. Called with s.mu held.
func (s *Store) flushLocked() {
	if err := storage.SaveJSON(s.indexPath(), s.index); err != nil {
		s.logger.Error("media index flush failed", "path", s.indexPath(), "error", err)
	}
}
