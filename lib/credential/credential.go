// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential seals the contact-platform session credentials
// (auth tokens, pairing state) at rest with age encryption. Each
// instance generates its own x25519 keypair at registration; a full
// tenant disconnect purges both the sealed bundle and the key, so no
// re-pairing state survives.
package credential

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
)

const (
	// bundleFile holds the age-encrypted credential bundle.
	bundleFile = "credentials.age"

	// keyFile holds the instance's private key, mode 0600. The key
	// never leaves the instance's storage root.
	keyFile = "instance.key"
)

// Vault seals and unseals one instance's credential bundle. Safe for
// concurrent use.
type Vault struct {
	dir string

	mu       sync.Mutex
	identity *age.X25519Identity
}

// Open loads the vault rooted at dir, generating a fresh keypair on
// first use.
func Open(dir string) (*Vault, error) {
	vault := &Vault{dir: dir}

	keyPath := filepath.Join(dir, keyFile)
	data, err := os.ReadFile(keyPath)
	switch {
	case err == nil:
		identity, parseErr := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if parseErr != nil {
			return nil, fmt.Errorf("credential: parsing %s: %w", keyPath, parseErr)
		}
		vault.identity = identity

	case os.IsNotExist(err):
		identity, genErr := age.GenerateX25519Identity()
		if genErr != nil {
			return nil, fmt.Errorf("credential: generating keypair: %w", genErr)
		}
		if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
			return nil, fmt.Errorf("credential: creating %s: %w", dir, mkErr)
		}
		if writeErr := os.WriteFile(keyPath, []byte(identity.String()+"\n"), 0600); writeErr != nil {
			return nil, fmt.Errorf("credential: writing %s: %w", keyPath, writeErr)
		}
		vault.identity = identity

	default:
		return nil, fmt.Errorf("credential: reading %s: %w", keyPath, err)
	}

	return vault, nil
}

// Recipient returns the instance's public key (age1... format). Safe
// to log or publish.
func (v *Vault) Recipient() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.identity.Recipient().String()
}

// Seal encrypts the credential bundle to the instance key and writes
// it to disk, replacing any previous bundle.
func (v *Vault) Seal(plaintext []byte) error {
	v.mu.Lock()
	recipient := v.identity.Recipient()
	v.mu.Unlock()

	var sealed bytes.Buffer
	writer, err := age.Encrypt(&sealed, recipient)
	if err != nil {
		return fmt.Errorf("credential: starting encryption: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return fmt.Errorf("credential: encrypting bundle: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("credential: finalizing encryption: %w", err)
	}

	path := filepath.Join(v.dir, bundleFile)
	if err := os.WriteFile(path, sealed.Bytes(), 0600); err != nil {
		return fmt.Errorf("credential: writing %s: %w", path, err)
	}
	return nil
}

// Unseal reads and decrypts the stored bundle. The bool is false when
// no bundle exists (fresh instance, nothing paired yet).
func (v *Vault) Unseal() ([]byte, bool, error) {
	path := filepath.Join(v.dir, bundleFile)
	sealed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("credential: reading %s: %w", path, err)
	}

	v.mu.Lock()
	identity := v.identity
	v.mu.Unlock()

	reader, err := age.Decrypt(bytes.NewReader(sealed), identity)
	if err != nil {
		return nil, false, fmt.Errorf("credential: decrypting %s: %w", path, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, false, fmt.Errorf("credential: reading decrypted bundle: %w", err)
	}
	return plaintext, true, nil
}

// Purge removes the sealed bundle and the instance key.
func (v *Vault) Purge() error {
	for _, name := range []string{bundleFile, keyFile} {
		path := filepath.Join(v.dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("credential: purging %s: %w", path, err)
		}
	}
	return nil
}
