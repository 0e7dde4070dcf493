// Package answer canonicalizes free-text answers so stored keys and submissions compare equal.
package answer

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxLen bounds the normalized answer that is compared and stored.
const MaxLen = 120

// Delimiter separates acceptable answers within a source cell.
const Delimiter = "||"

type rewrite struct {
	re *regexp.Regexp
	to string
}

// Order matters: earlier rewrites may expose text for later ones (umol/l -> μmol/l -> μm).
// Every replacement is already lowercase and NFKC-stable so Normalize is idempotent.
var unitRewrites = []rewrite{
	{regexp.MustCompile(`\bm/s\b`), "m s^-1"},
	{regexp.MustCompile(`\bg/ml\b`), "g ml^-1"},
	{regexp.MustCompile(`\bul\b`), "μl"},
	{regexp.MustCompile(`\bumol\b`), "μmol"},
	{regexp.MustCompile(`\bmol/l\b`), "m"},
	{regexp.MustCompile(`\bdeg\b`), "°"},
}

// Normalize lowercases, applies NFKC, collapses whitespace, then the unit
// rewrites. Stereo descriptors (cis, trans, (e), (z)) only need the casing
// already applied; spacing inside them is left as typed. It is pure and idempotent.
func Normalize(raw string) string {
	out := strings.ToLower(raw)
	out = norm.NFKC.String(out)
	// compatibility forms can decompose to capitals (e.g. U+210C)
	out = strings.ToLower(out)
	out = strings.Join(strings.Fields(out), " ")
	for _, r := range unitRewrites {
		out = r.re.ReplaceAllString(out, r.to)
	}
	return out
}

// Truncate cuts s to at most n runes (code points, not UTF-16 units).
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Prepare is the submission path: normalize then bound to MaxLen.
func Prepare(raw string) string {
	return Truncate(Normalize(raw), MaxLen)
}

// Acceptable splits a source cell on Delimiter, normalizes each segment and
// drops empties. Order is preserved; the first entry is the canonical answer.
func Acceptable(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, Delimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := Normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
