package wishlist

import "strings"

// NormalizeItem folds an item name into the aggregate key: trimmed,
// lowercased, internal whitespace runs collapsed to a single space.
// Two submissions differing only in case or spacing converge to the same
// counter. Punctuation variants intentionally do not merge.
func NormalizeItem(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}
