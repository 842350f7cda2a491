package chat

import (
	"cmp"
	"slices"
)

// SortConversations orders conversations most recently updated first, with
// ties broken by ascending local id so the order is stable across providers.
func SortConversations(conversations []Conversation) {
	slices.SortStableFunc(conversations, func(a, b Conversation) int {
		if byTime := b.UpdatedAt.Compare(a.UpdatedAt); byTime != 0 {
			return byTime
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
