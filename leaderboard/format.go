package leaderboard

import (
	"strconv"
	"strings"
	"time"
)

const (
	UnknownAddress = "Unknown"
	InvalidDate    = "Invalid Date"
	dateLayout     = "2006-01-02"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02 15:04:05",
	dateLayout,
}

/*
FormatAddress shortens wallet address for display: first four and last four
characters joined by "...". Addresses shorter than eight characters are
returned as is.
*/
func FormatAddress(addr string) string {
	switch {
	case addr == "":
		return UnknownAddress
	case len(addr) < 8:
		return addr
	default:
		return addr[:4] + "..." + addr[len(addr)-4:]
	}
}

/*
FormatDate renders the loosely structured "last updated" value as date.
Supported are common timestamp layouts and unix time in milliseconds, when
the value can't be parsed it's returned as is.
*/
func FormatDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return InvalidDate
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC().Format(dateLayout)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(dateLayout)
		}
	}
	return s
}
