// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

// Package mediastore stores each unique media payload exactly once
// per user. Blobs are addressed by a keyed BLAKE3 content hash: a
// save whose hash is already indexed returns the existing path and
// discards the new copy. Blobs live under
// <root>/<phone>/<sanitized-name>/media/ and the hash → path index is
// persisted in file_index.json.
//
// Display-name renames migrate the user's directory and rewrite every
// index entry under the old path. A rename whose source directory is
// absent is a no-op on the directory and still ensures the new one
// exists, so replaying a partially-completed cascade is safe.
package mediastore
