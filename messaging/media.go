// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"path/filepath"
	"strings"
)

// MediaKind is the exhaustive classification of a media payload. It
// is produced exactly once per attachment, at the ClassifyMedia
// boundary; downstream code switches on the kind and never re-derives
// it from filenames or MIME types.
type MediaKind int

const (
	// KindDocument is the catch-all: anything not recognized below.
	// Every platform can carry a generic document, which makes it the
	// universal degrade target.
	KindDocument MediaKind = iota
	// KindImage is a still image (jpeg, png, webp, ...).
	KindImage
	// KindVideo is a video clip.
	KindVideo
	// KindGIF is an animated image, kept distinct because contact
	// platforms transcode it differently from stills and videos.
	KindGIF
	// KindVoiceNote is a push-to-talk voice message.
	KindVoiceNote
	// KindAudio is any other audio payload.
	KindAudio
)

// String returns the lowercase kind name.
func (k MediaKind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindGIF:
		return "gif"
	case KindVoiceNote:
		return "voice-note"
	case KindAudio:
		return "audio"
	}
	return "unknown"
}

// ClassifyMedia maps a declared MIME type plus filename heuristics to
// a MediaKind. The declared type wins when present; the filename
// extension is the fallback for platforms that omit or garble types.
func ClassifyMedia(declaredType, filename string) MediaKind {
	mime := strings.ToLower(strings.TrimSpace(declaredType))
	if semicolon := strings.IndexByte(mime, ';'); semicolon >= 0 {
		params := mime[semicolon+1:]
		mime = strings.TrimSpace(mime[:semicolon])
		// Opus-in-ogg with a ptt marker is the common voice-note shape.
		if strings.Contains(params, "ptt") {
			return KindVoiceNote
		}
	}

	switch {
	case mime == "image/gif":
		return KindGIF
	case strings.HasPrefix(mime, "image/"):
		return KindImage
	case strings.HasPrefix(mime, "video/"):
		return KindVideo
	case mime == "audio/ogg":
		// Contact platforms deliver voice notes as ogg/opus.
		return KindVoiceNote
	case strings.HasPrefix(mime, "audio/"):
		return KindAudio
	case mime != "" && mime != "application/octet-stream":
		return KindDocument
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gif":
		return KindGIF
	case ".jpg", ".jpeg", ".png", ".webp", ".bmp":
		return KindImage
	case ".mp4", ".mov", ".webm", ".mkv", ".avi":
		return KindVideo
	case ".ogg", ".opus":
		return KindVoiceNote
	case ".mp3", ".m4a", ".wav", ".flac", ".aac":
		return KindAudio
	}
	return KindDocument
}
