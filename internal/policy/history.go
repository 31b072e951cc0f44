package policy

// IsReused reports whether plaintext matches any stored hash. History is
// scanned most-recent-first and the scan stops at the first match.
func IsReused(plaintext string, history []string, verify func(plaintext, hash string) bool) bool {
	for _, hash := range history {
		if verify(plaintext, hash) {
			return true
		}
	}
	return false
}

// RecordChange returns the history with newHash prepended and truncated
// to limit entries. If newHash is already the head the history is
// returned unchanged, so profile edits that keep the password never add
// an entry. The input slice is never modified.
func RecordChange(history []string, newHash string, limit int) []string {
	if limit < 0 {
		limit = 0
	}
	if len(history) > 0 && history[0] == newHash {
		out := make([]string, len(history))
		copy(out, history)
		return out
	}

	out := make([]string, 0, len(history)+1)
	out = append(out, newHash)
	out = append(out, history...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// HistoryChanged reports whether RecordChange produced a different
// sequence, i.e. whether the caller needs to persist anything.
func HistoryChanged(before, after []string) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if before[i] != after[i] {
			return true
		}
	}
	return false
}
