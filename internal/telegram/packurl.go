package telegram

import (
	"fmt"
	"strings"
)

// packURLPrefixes are the recognized forms of a sticker pack reference.
// The bare pack name follows the prefix in all three.
var packURLPrefixes = []string{
	"https://t.me/addstickers/",
	"t.me/addstickers/",
	"tg://addstickers?set=",
}

// PackURLToName extracts the bare pack name from a pack url.
// It fails with an error naming the accepted prefixes if the string does
// not match any of them.
func PackURLToName(packURL string) (string, error) {
	for _, prefix := range packURLPrefixes {
		if name, ok := strings.CutPrefix(packURL, prefix); ok && name != "" {
			return name, nil
		}
	}
	return "", fmt.Errorf(
		"%q does not look like a Telegram sticker pack; pack url should start with %q, %q or %q",
		packURL, packURLPrefixes[0], packURLPrefixes[1], packURLPrefixes[2],
	)
}
