package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	hashtag    = regexp.MustCompile(`#(\w+)`)
)

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Tokenize lowercases s and splits it on whitespace.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// Words returns the distinct tokens of s longer than three characters,
// in first-seen order, capped at max entries.
func Words(s string, max int) []string {
	out := make([]string, 0, max)
	for _, tok := range Tokenize(s) {
		if utf8.RuneCountInString(tok) <= 3 {
			continue
		}
		out = AppendUnique(out, max, tok)
		if len(out) >= max {
			break
		}
	}
	return out
}

// Hashtags extracts #word tokens (without the #), lowercased and distinct, capped at max.
func Hashtags(s string, max int) []string {
	out := make([]string, 0)
	for _, m := range hashtag.FindAllStringSubmatch(strings.ToLower(s), -1) {
		out = AppendUnique(out, max, m[1])
		if len(out) >= max {
			break
		}
	}
	return out
}

// AppendUnique appends v to set unless it is already present or the set is full.
func AppendUnique(set []string, max int, v string) []string {
	if v == "" || len(set) >= max {
		return set
	}
	for _, s := range set {
		if s == v {
			return set
		}
	}
	return append(set, v)
}
