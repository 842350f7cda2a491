package chat

import (
	"strings"

	"github.com/google/uuid"
)

// LocalID namespaces a backend-native id with its provider prefix.
func LocalID(provider ID, nativeID string) string {
	return string(provider) + "_" + nativeID
}

// SplitLocalID recovers the provider and native id from a [LocalID]. It
// reports false for ids without a provider prefix, such as locally created
// conversations.
func SplitLocalID(localID string) (ID, string, bool) {
	provider, nativeID, found := strings.Cut(localID, "_")
	if !found || provider == "" || nativeID == "" {
		return "", "", false
	}
	return ID(provider), nativeID, true
}

// NewLocalID returns a fresh random id for locally created records.
func NewLocalID() string {
	return uuid.NewString()
}
