package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatAddress(t *testing.T) {
	require.Equal(t, "Unknown", FormatAddress(""))
	require.Equal(t, "abc", FormatAddress("abc"))
	require.Equal(t, "abcdefg", FormatAddress("abcdefg"))
	require.Equal(t, "abcd...efgh", FormatAddress("abcdefgh"))
	require.Equal(t, "0x03...aca3", FormatAddress("0x03c30573dc0c7fd43fcb801289a6a96cb78c27f4ba398b89da91ece23e9a99aca3"))
}

func TestFormatDate(t *testing.T) {
	var tests = []struct {
		in   string
		want string
	}{
		{in: "", want: "Invalid Date"},
		{in: "  ", want: "Invalid Date"},
		{in: "2024-03-01T10:00:00Z", want: "2024-03-01"},
		{in: "2024-03-01T23:30:00.123-02:00", want: "2024-03-02"},
		{in: "Fri, 01 Mar 2024 10:00:00 GMT", want: "2024-03-01"},
		{in: "2024-03-01 10:00:00", want: "2024-03-01"},
		{in: "2024-03-01", want: "2024-03-01"},
		{in: "1709287200000", want: "2024-03-01"},
		{in: "yesterday", want: "yesterday"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, FormatDate(tt.in), "input %q", tt.in)
	}
}
