// Package match scores how similar two names are and picks the best
// canonical name for an extracted candidate.
//
// The score is built from two parts:
//
//  1. Block ratio: the characters covered by the longest common contiguous
//     blocks (found recursively on both sides of each block) as a fraction of
//     the combined length, 2*M/(len(a)+len(b)). This is difflib's
//     SequenceMatcher ratio over runes. Comparison is case-insensitive and
//     whitespace is collapsed.
//
//  2. Token coverage: the fraction of words that align one-to-one between the
//     two names, divided by the larger word count. Two words align when their
//     own block ratio reaches the token threshold, when they share a Double
//     Metaphone code ("Smith" and "Smyth"), or when the shorter one of at
//     least three letters starts the longer one ("Jon" and "Jonathan").
//
// The final score is the product of the two. Coverage keeps a short name from
// matching a longer, more specific one ("Winter Gala" vs "Winter Gala 2024")
// while still tolerating misspelt words.
package match

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
	"github.com/pmezard/go-difflib/difflib"
)

const defaultTokenThreshold = 0.75

// minPrefixLen is the shortest word that aligns with a longer word it
// starts ("Sam" and "Samantha").
const minPrefixLen = 3

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithTokenThreshold sets the minimum block ratio for two words to count as
// aligned when computing token coverage. Default: 0.75.
func WithTokenThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.tokenThreshold = threshold
	}
}

// WithPhonetic enables or disables Double Metaphone word alignment.
// Default: enabled.
func WithPhonetic(enabled bool) Option {
	return func(m *Matcher) {
		m.phonetic = enabled
	}
}

// Matcher finds the best canonical name for a candidate. It holds no mutable
// state and is safe for concurrent use.
type Matcher struct {
	tokenThreshold float64
	phonetic       bool
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		tokenThreshold: defaultTokenThreshold,
		phonetic:       true,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Result is the outcome of a successful [Matcher.Match].
type Result struct {
	// Index is the position of the winning name in the pool.
	Index int

	// Name is the pool entry exactly as supplied.
	Name string

	// Score is the similarity in [0, 1].
	Score float64
}

// Match returns the pool entry most similar to candidate when its score is
// at least cutoff. Ties are won by the entry that appears first in pool, so
// callers that need deterministic output must supply a stable order.
// Blank candidates and blank pool entries never match.
func (m *Matcher) Match(candidate string, pool []string, cutoff float64) (Result, bool) {
	cand := normalize(candidate)
	if cand == "" {
		return Result{}, false
	}

	best := Result{Index: -1, Score: -1}
	for i, name := range pool {
		norm := normalize(name)
		if norm == "" {
			continue
		}
		score := m.score(cand, norm)
		if score > best.Score {
			best = Result{Index: i, Name: name, Score: score}
		}
	}

	if best.Index < 0 || best.Score < cutoff {
		return Result{}, false
	}
	return best, true
}

// Score returns the similarity of a and b in [0, 1].
func (m *Matcher) Score(a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == "" && nb == "" {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	return m.score(na, nb)
}

func (m *Matcher) score(a, b string) float64 {
	if a == b {
		return 1
	}
	return Ratio(a, b) * m.coverage(strings.Fields(a), strings.Fields(b))
}

// coverage aligns the words of a against the words of b greedily, each b word
// used at most once, and returns aligned/max(len(a), len(b)).
func (m *Matcher) coverage(ta, tb []string) float64 {
	n := max(len(ta), len(tb))
	if n == 0 {
		return 1
	}

	used := make([]bool, len(tb))
	aligned := 0
	for _, wa := range ta {
		bestIdx, bestScore := -1, -1.0
		for j, wb := range tb {
			if used[j] {
				continue
			}
			s := Ratio(wa, wb)
			if s < m.tokenThreshold && !isPrefix(wa, wb) && !(m.phonetic && soundsAlike(wa, wb)) {
				continue
			}
			if s > bestScore {
				bestIdx, bestScore = j, s
			}
		}
		if bestIdx >= 0 {
			used[bestIdx] = true
			aligned++
		}
	}
	return float64(aligned) / float64(n)
}

// isPrefix reports whether the shorter of a and b starts the other and has
// at least minPrefixLen runes.
func isPrefix(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	return utf8.RuneCountInString(a) >= minPrefixLen && strings.HasPrefix(b, a)
}

// soundsAlike reports whether two words share a non-empty Double Metaphone
// code. Words without consonants (e.g. digits) never sound alike.
func soundsAlike(a, b string) bool {
	pa, sa := matchr.DoubleMetaphone(a)
	pb, sb := matchr.DoubleMetaphone(b)
	for _, x := range []string{pa, sa} {
		if x == "" {
			continue
		}
		if x == pb || x == sb {
			return true
		}
	}
	return false
}

// normalize lowercases s, trims it and collapses inner whitespace runs.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Ratio returns the block ratio 2*M/(len(a)+len(b)) of a and b, measured in
// runes, with M counted over difflib's matching blocks. Two empty strings
// have ratio 1. The comparison is case-sensitive; callers normalise first.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}
