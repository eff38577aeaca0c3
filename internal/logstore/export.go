package logstore

import (
	"strconv"
	"strings"
	"unicode"
)

// ExportText renders the target page (or every page for AllPages) as
// "[datetime] [time] text" lines. Pages are separated by
// "--- PAGE: <key> ---" headers in registry order.
func (s *Store) ExportText(target string) string {
	if target != AllPages {
		return FormatText(s.Read(target))
	}

	var out []string
	for _, p := range s.ListPageKeys() {
		out = append(out, "--- PAGE: "+p+" ---", FormatText(s.Read(p)))
	}
	return strings.Join(out, "\n")
}

// FormatText renders entries one per line. The datetime segment is omitted
// when empty; ticks keep an empty text segment.
func FormatText(entries []Entry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = FormatLine(e)
	}
	return strings.Join(lines, "\n")
}

// FormatLine renders a single entry as "[datetime] [time] text".
func FormatLine(e Entry) string {
	var b strings.Builder
	if e.Datetime != "" {
		b.WriteString("[" + e.Datetime + "] ")
	}
	b.WriteString("[" + e.Time + "] ")
	b.WriteString(e.Text)
	return b.String()
}

var csvHeader = []string{"datetime", "time", "text", "timestamp"}

// ExportCSV renders entries as CSV with every field quoted. Text is
// sanitized and entries without meaningful text, ticks included, are
// skipped.
func ExportCSV(entries []Entry) string {
	rows := []string{csvRow(csvHeader)}
	for _, e := range entries {
		txt := SanitizeText(e.Text)
		if !IsMeaningful(txt) {
			continue
		}
		rows = append(rows, csvRow([]string{e.Datetime, e.Time, txt, strconv.FormatInt(e.TS, 10)}))
	}
	return strings.Join(rows, "\n")
}

// csvRow quotes every field. encoding/csv only quotes when required.
func csvRow(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

// SanitizeText replaces non-breaking spaces (literal or "&nbsp;") with
// spaces, drops control and format characters, then collapses whitespace
// and trims.
func SanitizeText(s string) string {
	s = replaceFoldNBSP(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if isOther(r) {
			continue
		}
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// IsMeaningful reports whether s has visible content that is not only
// punctuation or symbols.
func IsMeaningful(s string) bool {
	s = SanitizeText(s)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return true
		}
	}
	return false
}

// isOther matches Unicode category C (control, format, private use,
// surrogate, unassigned). Tabs and newlines are controls and are dropped,
// not collapsed.
func isOther(r rune) bool {
	return !unicode.In(r, unicode.L, unicode.M, unicode.N, unicode.P, unicode.S, unicode.Z)
}

func replaceFoldNBSP(s string) string {
	const entity = "&nbsp;"
	lower := strings.ToLower(s)
	if !strings.Contains(lower, entity) {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(lower, entity)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteByte(' ')
		s = s[i+len(entity):]
		lower = lower[i+len(entity):]
	}
}
