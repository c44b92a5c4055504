package ui

import (
	"sort"
	"strings"

	"ssh-session-launcher/pkg/manager"
)

// candidate is a host ready for searching and display.
type candidate struct {
	Index   int // position in the caller's host slice
	Host    manager.HostProfile
	Group   string
	Name    string   // lowercased display name
	Tags    []string // lowercased tags
	Display string
}

// buildCandidates returns hosts in menu order: grouped by first tag, groups
// sorted, untagged last.
func buildCandidates(hosts []manager.HostProfile) []candidate {
	cands := make([]candidate, 0, len(hosts))
	for i, h := range hosts {
		group := ""
		if len(h.Tags) > 0 {
			group = h.Tags[0]
		}
		// Hostname and username are not searchable.
		tags := make([]string, len(h.Tags))
		for j, t := range h.Tags {
			tags[j] = strings.ToLower(t)
		}
		cands = append(cands, candidate{
			Index:   i,
			Host:    h,
			Group:   group,
			Name:    strings.ToLower(h.Name),
			Tags:    tags,
			Display: manager.HostLine(h),
		})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		gi, gj := cands[i].Group, cands[j].Group
		if (gi == "") != (gj == "") {
			return gj == ""
		}
		return gi < gj
	})
	return cands
}

// Match tiers. Every token is scored against the name and each tag on its
// own; a contiguous hit always outranks a scattered one.
const (
	scoreExact     = 400
	scorePrefix    = 300
	scoreWordStart = 200
	scoreSubstring = 100
	scoreScattered = 0
	nameBonus      = 20
)

// rankMatches keeps candidates matching every whitespace-separated token of
// query and orders them best first, ties by name. An empty query keeps menu
// order.
func rankMatches(cands []candidate, query string) []candidate {
	tokens := strings.Fields(strings.ToLower(query))
	out := make([]candidate, 0, len(cands))
	if len(tokens) == 0 {
		return append(out, cands...)
	}

	scores := make(map[int]int, len(cands))
	for _, c := range cands {
		total, ok := scoreCandidate(c, tokens)
		if !ok {
			continue
		}
		scores[c.Index] = total
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := scores[out[i].Index], scores[out[j].Index]
		if si != sj {
			return si > sj
		}
		return out[i].Host.Name < out[j].Host.Name
	})
	return out
}

func scoreCandidate(c candidate, tokens []string) (int, bool) {
	total := 0
	for _, tok := range tokens {
		best, found := 0, false
		if s, ok := matchField(tok, c.Name); ok {
			best, found = s+nameBonus, true
		}
		for _, tag := range c.Tags {
			if s, ok := matchField(tok, tag); ok && (!found || s > best) {
				best, found = s, true
			}
		}
		if !found {
			return 0, false
		}
		total += best
	}
	return total, true
}

// matchField scores one lowercased token against one lowercased field.
func matchField(tok, field string) (int, bool) {
	switch {
	case tok == field:
		return scoreExact, true
	case strings.HasPrefix(field, tok):
		return scorePrefix - (len(field) - len(tok)), true
	}
	if at := wordStart(tok, field); at >= 0 {
		return scoreWordStart - at, true
	}
	if at := strings.Index(field, tok); at >= 0 {
		return scoreSubstring - at, true
	}
	return scattered(tok, field)
}

// wordStart returns the byte offset of the first word in field that begins
// with tok, or -1.
func wordStart(tok, field string) int {
	for i := 1; i < len(field); i++ {
		if isWordSep(field[i-1]) && strings.HasPrefix(field[i:], tok) {
			return i
		}
	}
	return -1
}

// scattered matches tok as an in-order subsequence of field. Fewer skipped
// characters score higher, but never reach the substring tier.
func scattered(tok, field string) (int, bool) {
	rt := []rune(field)
	gaps, pos := 0, 0
	for _, q := range tok {
		i := pos
		for i < len(rt) && rt[i] != q {
			i++
		}
		if i == len(rt) {
			return 0, false
		}
		if pos > 0 {
			gaps += i - pos
		}
		pos = i + 1
	}
	s := scoreScattered + 50 - gaps
	if s < 1 {
		s = 1
	}
	return s, true
}

func isWordSep(b byte) bool {
	switch b {
	case ' ', '-', '_', '.', '/', '(', ')':
		return true
	}
	return false
}
