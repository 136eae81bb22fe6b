// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package transcript maintains one continuously-appended master
// transcript per user plus immutable timestamped snapshots taken at
// ticket close. Every transcript file opens with an instance tag
// line; lookups reject files tagged with a different instance as a
// tenant-isolation safety net, even if a misconfiguration points two
// instances at overlapping directories.
package transcript

import (
	"bufio"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/relaydesk/relaydesk/lib/clock"
	"github.com/relaydesk/relaydesk/lib/sanitize"
)

const (
	// masterName is the continuously-overwritten transcript file.
	masterName = "transcript-master.md"

	// tagPrefix opens every transcript file and names the owning
	// instance.
	tagPrefix = "<!-- relaydesk-instance: "
	tagSuffix = " -->"

	// snapshotTimeFormat timestamps snapshot filenames.
	snapshotTimeFormat = "20060102-150405"

	// maxScanEntries bounds the recursive fallback scan in FindLatest
	// so a huge storage root cannot stall a lookup after a
	// partially-completed rename.
	maxScanEntries = 4096
)

// Store is the per-instance transcript store. Safe for concurrent use
// at the filesystem level; appends to the same user should already be
// serialized by the router's per-channel queue.
type Store struct {
	root       string
	instanceID string
	clock      clock.Clock
	logger     *slog.Logger
}

// Open returns a transcript store rooted at dir, tagging every file
// it writes with instanceID.
func Open(dir, instanceID string, clk clock.Clock, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{root: dir, instanceID: instanceID, clock: clk, logger: logger}
}

// userDir returns the storage directory for a phone/name pair.
func (s *Store) userDir(phoneKey, displayName string) string {
	return filepath.Join(s.root, phoneKey, sanitize.Name(displayName))
}

// MasterPath returns the master transcript path for a phone/name pair.
func (s *Store) MasterPath(phoneKey, displayName string) string {
	return filepath.Join(s.userDir(phoneKey, displayName), masterName)
}

// Append adds one entry line to the user's master transcript,
// creating the file (with its instance tag) on first write.
func (s *Store) Append(phoneKey, displayName, entry string) error {
	path := s.MasterPath(phoneKey, displayName)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("transcript: creating %s: %w", filepath.Dir(path), err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("transcript: opening %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("transcript: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		header := tagPrefix + s.instanceID + tagSuffix + "\n\n"
		if _, err := file.WriteString(header); err != nil {
			return fmt.Errorf("transcript: writing header to %s: %w", path, err)
		}
	}

	line := fmt.Sprintf("- [%s] %s\n", s.clock.Now().UTC().Format("2006-01-02 15:04:05"), entry)
	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("transcript: appending to %s: %w", path, err)
	}
	// Synchronous flush: transcripts are the record of the ticket.
	if err := file.Sync(); err != nil {
		return fmt.Errorf("transcript: syncing %s: %w", path, err)
	}
	return nil
}

// Snapshot copies the current master transcript into an immutable
// timestamped file for the closing ticket. A missing master (ticket
// with no recorded traffic) produces no snapshot and no error.
func (s *Store) Snapshot(phoneKey, displayName, ticketID string) (string, error) {
	master := s.MasterPath(phoneKey, displayName)
	data, err := os.ReadFile(master)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("transcript: reading master %s: %w", master, err)
	}

	stamp := s.clock.Now().UTC().Format(snapshotTimeFormat)
	name := fmt.Sprintf("transcript-%s-%s.md", sanitize.Name(ticketID), stamp)
	path := filepath.Join(filepath.Dir(master), name)
	if err := os.WriteFile(path, data, 0444); err != nil {
		return "", fmt.Errorf("transcript: writing snapshot %s: %w", path, err)
	}
	return path, nil
}

// FindLatest locates the most relevant transcript for a user. It
// prefers the master file, falls back to the newest snapshot in the
// user's directory, and finally falls back to a bounded recursive
// scan of the whole root matching phone/name substrings — the escape
// hatch for a partially-completed rename that left files under a
// stale directory. Files tagged with a different instance are skipped.
func (s *Store) FindLatest(phoneKey, displayName string) (string, error) {
	master := s.MasterPath(phoneKey, displayName)
	if s.ownedFile(master) {
		return master, nil
	}

	if newest := s.newestSnapshot(filepath.Dir(master)); newest != "" {
		return newest, nil
	}

	if found := s.scanForUser(phoneKey, displayName); found != "" {
		return found, nil
	}
	return "", fmt.Errorf("transcript: no transcript found for %s (%s)", phoneKey, displayName)
}

// RenameUser migrates the user's directory to the new sanitized name.
// When the media store has already moved the shared user directory,
// the source is absent and this step only ensures the destination
// exists — replaying the cascade is harmless.
func (s *Store) RenameUser(phoneKey, oldName, newName string) error {
	oldDir := s.userDir(phoneKey, oldName)
	newDir := s.userDir(phoneKey, newName)
	if oldDir == newDir {
		return nil
	}

	if _, err := os.Stat(oldDir); os.IsNotExist(err) {
		if err := os.MkdirAll(newDir, 0755); err != nil {
			return fmt.Errorf("transcript: ensuring %s: %w", newDir, err)
		}
		return nil
	}
	if err := os.Rename(oldDir, newDir); err != nil {
		return fmt.Errorf("transcript: renaming %s to %s: %w", oldDir, newDir, err)
	}
	return nil
}

// Purge removes every transcript file owned by this instance.
func (s *Store) Purge() error {
	var firstErr error
	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if name != masterName && !strings.HasPrefix(name, "transcript-") {
			return nil
		}
		if !s.ownedFile(path) {
			return nil
		}
		if removeErr := os.Remove(path); removeErr != nil && firstErr == nil {
			firstErr = removeErr
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transcript: purging %s: %w", s.root, err)
	}
	if firstErr != nil {
		return fmt.Errorf("transcript: purging %s: %w", s.root, firstErr)
	}
	return nil
}

// ownedFile reports whether path exists and carries this instance's
// tag line.
func (s *Store) ownedFile(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return false
	}
	line := scanner.Text()
	if !strings.HasPrefix(line, tagPrefix) || !strings.HasSuffix(line, tagSuffix) {
		return false
	}
	tagged := strings.TrimSuffix(strings.TrimPrefix(line, tagPrefix), tagSuffix)
	if tagged != s.instanceID {
		s.logger.Warn("transcript tagged with different instance, skipping",
			"path", path,
			"tagged_instance", tagged,
			"this_instance", s.instanceID,
		)
		return false
	}
	return true
}

// newestSnapshot returns the newest owned snapshot in dir, or "".
// Recency comes from the timestamp embedded in the filename, not the
// inode, so copies and restores do not reorder history.
func (s *Store) newestSnapshot(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	var newest, newestStamp string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == masterName || !strings.HasPrefix(name, "transcript-") {
			continue
		}
		path := filepath.Join(dir, name)
		if !s.ownedFile(path) {
			continue
		}
		stamp := snapshotStamp(name)
		if newest == "" || stamp > newestStamp {
			newest = path
			newestStamp = stamp
		}
	}
	return newest
}

// snapshotStamp extracts the trailing "20060102-150405" stamp from a
// snapshot filename. Returns "" for names too short to carry one.
func snapshotStamp(name string) string {
	trimmed := strings.TrimSuffix(name, ".md")
	if len(trimmed) < len(snapshotTimeFormat) {
		return ""
	}
	return trimmed[len(trimmed)-len(snapshotTimeFormat):]
}

// scanForUser walks the root looking for any owned transcript whose
// path mentions the phone or the sanitized display name. The walk is
// bounded by maxScanEntries.
func (s *Store) scanForUser(phoneKey, displayName string) string {
	nameSlug := sanitize.Name(displayName)
	visited := 0
	var newest string
	var newestModTime int64

	filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		visited++
		if visited > maxScanEntries {
			return fs.SkipAll
		}
		if entry.IsDir() {
			return nil
		}
		name := entry.Name()
		if name != masterName && !strings.HasPrefix(name, "transcript-") {
			return nil
		}
		if !strings.Contains(path, phoneKey) && !strings.Contains(path, nameSlug) {
			return nil
		}
		if !s.ownedFile(path) {
			return nil
		}
		info, infoErr := entry.Info()
		if infoErr != nil {
			return nil
		}
		if modTime := info.ModTime().UnixNano(); newest == "" || modTime > newestModTime {
			newest = path
			newestModTime = modTime
		}
		return nil
	})
	return newest
}
