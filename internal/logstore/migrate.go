package logstore

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Migrate upgrades raw entries to the current shape. It fills a missing
// datetime from ts (or from now when ts is missing or not a number), moves
// a legacy "_tag" onto Tag and normalises string timestamps. changed
// reports whether any entry differs from its stored form. Migrate is pure
// and idempotent.
func Migrate(entries []RawEntry, now time.Time, loc *time.Location) (out []Entry, changed bool) {
	out, n := migrate(entries, now, loc)
	return out, n > 0
}

func migrate(entries []RawEntry, now time.Time, loc *time.Location) ([]Entry, int) {
	if loc == nil {
		loc = time.Local
	}
	out := make([]Entry, 0, len(entries))
	migrated := 0
	for _, raw := range entries {
		e := Entry{
			Datetime: raw.Datetime,
			Time:     raw.Time,
			Text:     raw.Text,
			Tag:      raw.Tag,
		}
		changed := false

		ts, numeric, ok := parseTS(raw.TS)
		if ok {
			e.TS = ts
		}
		if ok && !numeric {
			changed = true
		}

		if raw.LegacyTag != "" {
			if e.Tag == "" {
				e.Tag = raw.LegacyTag
			}
			changed = true
		}

		if e.Datetime == "" {
			if ok {
				e.Datetime = FormatDateTime(time.UnixMilli(ts).In(loc))
			} else {
				e.Datetime = FormatDateTime(now.In(loc))
			}
			changed = true
		}

		if changed {
			migrated++
		}
		out = append(out, e)
	}
	return out, migrated
}

// parseTS decodes a stored timestamp. numeric is true when it was stored as
// a JSON integer; ok is false when no usable timestamp exists.
func parseTS(raw json.RawMessage) (ts int64, numeric, ok bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false, false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false, false
		}
		return int64(f), false, true
	}

	if n, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
		return n, true, true
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, false
	}
	return int64(f), false, true
}

// decodeList parses a stored list element by element. Elements that are
// not objects of the expected shape are skipped and counted.
func decodeList(data string) (entries []RawEntry, skipped int, err error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(data), &elems); err != nil {
		return nil, 0, err
	}
	entries = make([]RawEntry, 0, len(elems))
	for _, elem := range elems {
		var r RawEntry
		if err := json.Unmarshal(elem, &r); err != nil || bytes.Equal(bytes.TrimSpace(elem), []byte("null")) {
			skipped++
			continue
		}
		entries = append(entries, r)
	}
	return entries, skipped, nil
}
