package rewards

import "encoding/json"

// maxHistoryEntries caps the history metafield; the oldest entries beyond the
// cap are dropped on write.
const maxHistoryEntries = 100

// HistoryEntry is one audit record in the rewards/history metafield,
// newest first.
type HistoryEntry struct {
	Date         string `json:"date"`
	Action       string `json:"action"`
	PointsUsed   int64  `json:"points_used"`
	DiscountCode string `json:"discount_code"`
	AmountVND    int64  `json:"amount_vnd"`
}

// DecodeHistory parses a raw history metafield value. Older writers stored
// the list JSON-encoded inside a JSON string, so both shapes are accepted.
// Unparseable values read as an empty list.
func DecodeHistory(raw json.RawMessage) []HistoryEntry {
	if len(raw) == 0 {
		return nil
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if json.Unmarshal([]byte(s), &entries) == nil {
			return entries
		}
	}
	return nil
}

// PrependHistory puts entry first and truncates to the newest
// maxHistoryEntries, returning the serialized list.
func PrependHistory(raw json.RawMessage, entry HistoryEntry) json.RawMessage {
	entries := append([]HistoryEntry{entry}, DecodeHistory(raw)...)
	if len(entries) > maxHistoryEntries {
		entries = entries[:maxHistoryEntries]
	}
	out, _ := json.Marshal(entries)
	return out
}
