// Copyright 2026 The Relaydesk Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

func init() {
	// Default scoring scheme; must run before any FuzzyMatchV2 call.
	algo.Init("default")
}

// matchSlab allocates the scratch memory fzf's matcher reuses across
// candidates. One slab per FindByPartialName call; the store lock
// keeps it single-threaded.
func matchSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

// fuzzyScore runs fzf's FuzzyMatchV2 against the candidate text.
// The pattern must already be lowercased — with caseSensitive=false
// that makes the match case-insensitive, matching fzf's own smart-case
// handling. Returns the score and whether the pattern matched at all.
func fuzzyScore(text string, pattern []rune, slab *util.Slab) (int, bool) {
	chars := util.ToChars([]byte(text))
	result, _ := algo.FuzzyMatchV2(false, true, true, &chars, pattern, false, slab)
	if result.Start < 0 {
		return 0, false
	}
	return result.Score, true
}
