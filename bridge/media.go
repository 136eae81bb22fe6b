// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/relaydesk/relaydesk/messaging"
)

// zstdEncoder compresses payloads for the degrade pipeline's retry
// tier. Stateless EncodeAll use, shared process-wide.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic("bridge: zstd encoder initialization failed: " + err.Error())
	}
}

// TierFailure records one failed stage of the media degrade pipeline.
type TierFailure struct {
	Tier string
	Err  error
}

// MediaError reports that every tier of the degrade pipeline failed
// for one attachment. Intermediate tier failures are carried for the
// log; only a fully exhausted pipeline surfaces to the user.
type MediaError struct {
	Filename string
	Tiers    []TierFailure
}

func (e *MediaError) Error() string {
	parts := make([]string, len(e.Tiers))
	for i, tier := range e.Tiers {
		parts[i] = fmt.Sprintf("%s: %v", tier.Tier, tier.Err)
	}
	return fmt.Sprintf("media %q undeliverable: %s", e.Filename, strings.Join(parts, "; "))
}

// IsMediaError reports whether err is a *MediaError.
func IsMediaError(err error) bool {
	var mediaError *MediaError
	return errors.As(err, &mediaError)
}

// sendMediaToContact delivers one ticket attachment to the contact,
// degrading through fallback tiers: native send for the classified
// kind, zstd-compressed document, generic document, and finally the
// caption plus a bare reference URL. Each tier fails independently;
// the first success wins. Classification happens exactly once, here.
func (in *Instance) sendMediaToContact(ctx context.Context, phoneKey string, attachment messaging.Attachment, caption string) error {
	failure := &MediaError{Filename: attachment.Filename}

	data, err := in.tickets.DownloadMedia(ctx, attachment.Ref)
	if err != nil {
		failure.Tiers = append(failure.Tiers, TierFailure{Tier: "download", Err: err})
		return in.sendMediaReference(ctx, phoneKey, attachment, caption, failure)
	}

	kind := messaging.ClassifyMedia(attachment.DeclaredType, attachment.Filename)

	nativeErr := in.contact.SendMedia(ctx, phoneKey, messaging.MediaUpload{
		Kind:         kind,
		Filename:     attachment.Filename,
		DeclaredType: attachment.DeclaredType,
		Data:         data,
		Caption:      caption,
	})
	if nativeErr == nil {
		return nil
	}
	failure.Tiers = append(failure.Tiers, TierFailure{Tier: "native", Err: nativeErr})
	in.logger.Warn("native media send failed, degrading",
		"phone", phoneKey,
		"kind", kind.String(),
		"error", nativeErr,
	)

	compressed := zstdEncoder.EncodeAll(data, nil)
	compressedErr := in.contact.SendMedia(ctx, phoneKey, messaging.MediaUpload{
		Kind:         messaging.KindDocument,
		Filename:     attachment.Filename + ".zst",
		DeclaredType: "application/zstd",
		Data:         compressed,
		Caption:      caption,
	})
	if compressedErr == nil {
		return nil
	}
	failure.Tiers = append(failure.Tiers, TierFailure{Tier: "compressed", Err: compressedErr})

	documentErr := in.contact.SendMedia(ctx, phoneKey, messaging.MediaUpload{
		Kind:         messaging.KindDocument,
		Filename:     attachment.Filename,
		DeclaredType: "application/octet-stream",
		Data:         data,
		Caption:      caption,
	})
	if documentErr == nil {
		return nil
	}
	failure.Tiers = append(failure.Tiers, TierFailure{Tier: "document", Err: documentErr})

	return in.sendMediaReference(ctx, phoneKey, attachment, caption, failure)
}

// sendMediaReference is the last tier: caption text plus a bare
// reference URL. Failing this too exhausts the pipeline.
func (in *Instance) sendMediaReference(ctx context.Context, phoneKey string, attachment messaging.Attachment, caption string, failure *MediaError) error {
	var parts []string
	if caption != "" {
		parts = append(parts, caption)
	}
	if attachment.Filename != "" {
		parts = append(parts, attachment.Filename)
	}
	if attachment.URL != "" {
		parts = append(parts, attachment.URL)
	}
	if len(parts) == 0 {
		failure.Tiers = append(failure.Tiers, TierFailure{
			Tier: "reference",
			Err:  errors.New("attachment has no reference URL"),
		})
		return failure
	}

	if err := in.contact.SendText(ctx, phoneKey, strings.Join(parts, " ")); err != nil {
		failure.Tiers = append(failure.Tiers, TierFailure{Tier: "reference", Err: err})
		return failure
	}
	return nil
}
