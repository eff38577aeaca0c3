// Package logstore persists per-page log lists and the page registry on
// top of a fail-soft key/value adapter.
//
// Every list is kept in append order and bounded by age and count. Reads
// upgrade legacy entries in place and write the upgraded list back once.
package logstore

import (
	"encoding/json"
	"net/url"
	"time"
)

// Storage keys.
const (
	IndexKey      = "pages-index"
	LogsKeyPrefix = "logs::"
	UIStateKey    = "ui-state"
	GlobalUIKey   = "ui-global"
)

// AllPages selects every page in exports and presenter selections.
const AllPages = "__all__"

// Entry tags.
const (
	TagTick = "tick"
	TagStop = "stop"
)

// DateTimeLayout is the wall-clock format stored in Entry.Datetime.
const DateTimeLayout = "2006-01-02 15:04:05"

// Entry is one persisted log line.
type Entry struct {
	TS       int64  `json:"ts"`
	Datetime string `json:"datetime"`
	Time     string `json:"time"`
	Text     string `json:"text"`
	Tag      string `json:"tag,omitempty"`
}

// IsTick reports whether e is an elapsed-time tick (no text).
func (e Entry) IsTick() bool { return e.Text == "" }

// IsStop reports whether e is the entry written when a timer stops.
func (e Entry) IsStop() bool { return e.Tag == TagStop }

// RawEntry is an entry as found in storage, possibly written by an older
// version: ts may be a string, datetime may be missing and the tag may live
// under "_tag".
type RawEntry struct {
	TS        json.RawMessage `json:"ts"`
	Datetime  string          `json:"datetime"`
	Time      string          `json:"time"`
	Text      string          `json:"text"`
	Tag       string          `json:"tag,omitempty"`
	LegacyTag string          `json:"_tag,omitempty"`
}

// PageInfo is one page registry record.
type PageInfo struct {
	PageKey   string `json:"pageKey"`
	FirstSeen int64  `json:"firstSeen"`
	LastSeen  int64  `json:"lastSeen"`
}

// FormatDateTime renders t as "YYYY-MM-DD HH:MM:SS".
func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeLayout)
}

// PageKeyFromURL returns path plus query of rawURL. Fragments and hosts are
// ignored; an empty path becomes "/". Unparseable input is returned as-is.
func PageKeyFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" || u.ForceQuery {
		return path + "?" + u.RawQuery
	}
	return path
}

func logsKey(pageKey string) string {
	return LogsKeyPrefix + pageKey
}
