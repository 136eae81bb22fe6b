// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package mediastore

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte keyed BLAKE3 digest of a media payload.
type Hash [32]byte

// blobDomainKey is the BLAKE3 key for media blob hashing. Domain
// separation keeps media hashes distinct from any other hash domain
// that may share storage. The bytes are the ASCII domain name,
// zero-padded to the 32 bytes keyed mode requires; readable ASCII
// keeps the key inspectable in hex dumps.
var blobDomainKey = [32]byte{
	'r', 'e', 'l', 'a', 'y', 'd', 'e', 's', 'k', '.',
	'm', 'e', 'd', 'i', 'a', '.', 'b', 'l', 'o', 'b',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashBytes computes the blob-domain content hash used for
// deduplication.
func HashBytes(data []byte) Hash {
	// NewKeyed only fails for a wrong key length, which the fixed-size
	// array rules out.
	hasher, err := blake3.NewKeyed(blobDomainKey[:])
	if err != nil {
		panic("mediastore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}

// FormatHash returns the canonical hex encoding of a hash. This is
// the key format of file_index.json.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// ParseHash parses the canonical hex encoding back into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("mediastore: parsing content hash: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("mediastore: content hash is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}
