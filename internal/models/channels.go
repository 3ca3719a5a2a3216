package models

import (
	"net/url"
	"strings"

	"bitbucket.org/creachadair/stringset"
	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// NormalizeChannel trims whitespace and strips leading "r/" or "/r/" prefixes. It is idempotent.
func NormalizeChannel(name string) string {
	name = strings.TrimSpace(name)
	for {
		stripped := strings.TrimPrefix(name, "/r/")
		stripped = strings.TrimSpace(strings.TrimPrefix(stripped, "r/"))
		if stripped == name {
			return name
		}
		name = stripped
	}
}

// ParseChannels splits comma-separated channel input into canonical channel names.
//
// Entries may be bare names, "r/name", "/r/name/" or full reddit URLs. Empty entries are dropped and
// case-insensitive duplicates keep their first occurrence.
func ParseChannels(input string) []string {
	seen := stringset.New()
	channels := []string{}

	for _, raw := range strings.Split(input, ",") {
		name := channelFromEntry(raw)
		if name == "" {
			continue
		}

		key := folder.String(name)
		if seen.Contains(key) {
			continue
		}
		seen.Add(key)
		channels = append(channels, name)
	}
	return channels
}

// channelFromEntry extracts the channel from a single list entry.
func channelFromEntry(entry string) string {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return ""
	}

	if strings.Contains(entry, "://") || strings.HasPrefix(entry, "www.") || strings.HasPrefix(entry, "reddit.com") {
		if !strings.Contains(entry, "://") {
			entry = "https://" + entry
		}
		u, err := url.Parse(entry)
		if err != nil {
			return ""
		}
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segments) < 2 || segments[0] != "r" {
			return ""
		}
		return NormalizeChannel(segments[1])
	}

	return strings.Trim(NormalizeChannel(entry), "/")
}
