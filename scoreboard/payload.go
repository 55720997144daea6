package scoreboard

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fruitslash/scorekeeper/leaderboard"
)

// ErrMalformedResponse is returned when the process responds with data which can't be decoded.
var ErrMalformedResponse = errors.New("malformed response")

/*
parseLeaderboard decodes leaderboard payload. Absent payload is empty
leaderboard. Well formed JSON which is not an array is treated as empty
leaderboard too, array elements which are not objects are dropped.
*/
func parseLeaderboard(data string, present bool) ([]leaderboard.RawEntry, error) {
	if !present {
		return []leaderboard.RawEntry{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("%w: decoding leaderboard: %w", ErrMalformedResponse, err)
	}
	items, ok := v.([]any)
	if !ok {
		return []leaderboard.RawEntry{}, nil
	}
	res := make([]leaderboard.RawEntry, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			res = append(res, m)
		}
	}
	return res, nil
}

/*
parsePlayerScore decodes player score payload, absent payload means the
process has no record of the wallet. Payload must be an object with numeric
(or missing) "score".
*/
func parsePlayerScore(data string, present bool, wallet string) (*PlayerScore, error) {
	if !present {
		return &PlayerScore{Score: 0, Wallet: wallet}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("%w: decoding player score: %w", ErrMalformedResponse, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: player score must be an object, got %T", ErrMalformedResponse, v)
	}
	ps := &PlayerScore{Wallet: wallet}
	switch score := m["score"].(type) {
	case nil:
	case float64:
		ps.Score = score
	default:
		return nil, fmt.Errorf("%w: score must be a number, got %T", ErrMalformedResponse, score)
	}
	if w, ok := m["wallet"].(string); ok && w != "" {
		ps.Wallet = w
	}
	return ps, nil
}
