// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package storage persists the bridge's flat JSON state files. Every
// mutation of an in-memory store is flushed synchronously through
// SaveJSON — durability over throughput at expected bridge volumes.
// There is no transactional guarantee between memory and disk: when a
// flush fails the in-memory state stays authoritative for the running
// process and the failure is reported as a *PersistenceError for the
// caller to log.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PersistenceError reports a failed disk write or read for a state
// file. Callers log it and continue; in-memory state remains
// authoritative.
type PersistenceError struct {
	// Path is the state file involved.
	Path string
	// Op is "save" or "load".
	Op string
	// Err is the underlying filesystem or encoding error.
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistence reports whether err is a *PersistenceError.
func IsPersistence(err error) bool {
	var persistenceError *PersistenceError
	return errors.As(err, &persistenceError)
}

// SaveJSON writes v as indented JSON to path via SaveBytes.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &PersistenceError{Path: path, Op: "save", Err: err}
	}
	return SaveBytes(path, data)
}

// SaveBytes writes data to path via a temporary file in the same
// directory, fsyncs, then renames into place. The rename makes a torn
// write impossible; the fsync makes the flush synchronous. Every
// persisted state file, whatever its encoding, goes through here.
func SaveBytes(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &PersistenceError{Path: path, Op: "save", Err: err}
	}

	temp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return &PersistenceError{Path: path, Op: "save", Err: err}
	}
	tempPath := temp.Name()

	_, writeErr := temp.Write(data)
	if writeErr == nil {
		writeErr = temp.Sync()
	}
	closeErr := temp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tempPath)
		return &PersistenceError{Path: path, Op: "save", Err: writeErr}
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return &PersistenceError{Path: path, Op: "save", Err: err}
	}
	return nil
}

// LoadJSON reads the JSON state file at path into v. A missing file
// is not an error: v is left untouched so the caller starts from its
// zero state.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &PersistenceError{Path: path, Op: "load", Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &PersistenceError{Path: path, Op: "load", Err: err}
	}
	return nil
}
