// Package strings holds small string helpers shared across packages.
package strings

// minMaskableLen is the shortest secret that keeps any cleartext when
// masked. Shorter secrets are fully masked so the remainder cannot be
// guessed from the visible edges.
const minMaskableLen = 12

// MaskSecret returns a loggable form of a secret: the first and last four
// characters with the middle elided. It operates on runes so multi-byte
// characters are never split.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	if len(runes) < minMaskableLen {
		return "****"
	}
	return string(runes[:4]) + "..." + string(runes[len(runes)-4:])
}
