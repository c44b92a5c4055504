package manager

import (
	"fmt"
	"sort"
	"strings"
)

// HostGroup is a set of hosts sharing a primary (first) tag.
// Tag is empty for the untagged group.
type HostGroup struct {
	Tag   string
	Hosts []HostProfile
}

// FilterHosts returns hosts whose name or tags contain term (case-insensitive).
// Hostname and username are not searched. An empty term returns hosts unchanged.
func FilterHosts(hosts []HostProfile, term string) []HostProfile {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return hosts
	}
	var out []HostProfile
	for _, h := range hosts {
		if strings.Contains(strings.ToLower(h.Name), term) ||
			strings.Contains(strings.ToLower(strings.Join(h.Tags, " ")), term) {
			out = append(out, h)
		}
	}
	return out
}

// FilterByTag returns hosts carrying tag (exact, case-insensitive).
func FilterByTag(hosts []HostProfile, tag string) []HostProfile {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return hosts
	}
	var out []HostProfile
	for _, h := range hosts {
		for _, t := range h.Tags {
			if strings.EqualFold(t, tag) {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// GroupByPrimaryTag groups hosts by their first tag. Groups are sorted by tag;
// the untagged group comes last. Host order inside a group is preserved.
func GroupByPrimaryTag(hosts []HostProfile) []HostGroup {
	idx := map[string]int{}
	var groups []HostGroup
	var untagged []HostProfile
	for _, h := range hosts {
		if len(h.Tags) == 0 {
			untagged = append(untagged, h)
			continue
		}
		t := h.Tags[0]
		i, ok := idx[t]
		if !ok {
			i = len(groups)
			idx[t] = i
			groups = append(groups, HostGroup{Tag: t})
		}
		groups[i].Hosts = append(groups[i].Hosts, h)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Tag < groups[j].Tag })
	if len(untagged) > 0 {
		groups = append(groups, HostGroup{Hosts: untagged})
	}
	return groups
}

// UniqueTags returns every tag used by hosts, sorted.
func UniqueTags(hosts []HostProfile) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, h := range hosts {
		for _, t := range h.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// HostLine renders "name (user@host:port) [tags]" for menus.
func HostLine(h HostProfile) string {
	s := fmt.Sprintf("%s (%s:%d)", h.Name, h.Destination(), h.Port)
	if len(h.Tags) > 0 {
		s += " [" + strings.Join(h.Tags, ", ") + "]"
	}
	return s
}

// ListLine renders "name - user@host:port (auth) [tags]" for the list command.
func ListLine(h HostProfile) string {
	s := fmt.Sprintf("%s - %s:%d (%s)", h.Name, h.Destination(), h.Port, h.Auth)
	if len(h.Tags) > 0 {
		s += " [" + strings.Join(h.Tags, ", ") + "]"
	}
	return s
}
