package capture

import "github.com/bowerhall/recall/internal/store"

// signature identifies a message for dedup purposes. Timestamp is the
// platform-supplied string, empty when absent.
func signature(role, timestamp, content string) string {
	return role + "|" + timestamp + "|" + content
}

// NewSuffix merges a freshly re-parsed full message list against the stored
// history and returns only the genuinely new trailing messages, in order.
//
// The scraper re-captures the entire visible chat, so the common case is
// that the new list ends with messages the store has never seen. The last
// stored message is located by scanning the new list backward; everything
// after that match is new. When no backward match exists (the window
// scrolled past the stored tail), the fallback scans forward for the first
// message whose signature is absent from the whole stored set. This is a
// deliberate suffix heuristic, not an LCS diff: messages edited in place
// earlier in the history are not reconciled.
func NewSuffix(stored []*store.Message, parsed []store.NewMessage) []store.NewMessage {
	if len(parsed) == 0 {
		return nil
	}

	if len(stored) == 0 {
		return parsed
	}

	last := stored[len(stored)-1]
	lastSig := signature(last.Role, last.Timestamp, last.Content)

	for i := len(parsed) - 1; i >= 0; i-- {
		m := parsed[i]
		if signature(m.Role, m.Timestamp, m.Content) == lastSig {
			return parsed[i+1:]
		}
	}

	// No backward match: insert from the first message the store has never
	// seen. If every parsed message is already present, nothing is new.
	seen := make(map[string]bool, len(stored))
	for _, m := range stored {
		seen[signature(m.Role, m.Timestamp, m.Content)] = true
	}

	for i, m := range parsed {
		if !seen[signature(m.Role, m.Timestamp, m.Content)] {
			return parsed[i:]
		}
	}

	return nil
}
