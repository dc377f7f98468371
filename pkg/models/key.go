package models

import "strings"

// TitleKey folds a song title into the store lookup key: trimmed, lower-cased,
// inner whitespace collapsed to single spaces.
func TitleKey(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}
