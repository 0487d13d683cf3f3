// Package codec turns integer ids into fixed-width base-62 short codes.
package codec

import "strings"

const (
	// Alphabet must stay stable for the lifetime of a deployment: every stored
	// short code was derived from it.
	Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

	// Width is the minimum length of a short code.
	Width = 6

	base = uint64(len(Alphabet))
)

// Encode returns the base-62 form of id, left-padded with the zero symbol to at
// least width characters. Longer representations are never truncated.
func Encode(id uint64, width int) string {
	// 11 digits cover the full uint64 range in base 62.
	var buf [11]byte
	i := len(buf)
	for {
		i--
		buf[i] = Alphabet[id%base]
		id /= base
		if id == 0 {
			break
		}
	}

	digits := buf[i:]
	if pad := width - len(digits); pad > 0 {
		return strings.Repeat(Alphabet[:1], pad) + string(digits)
	}
	return string(digits)
}

// Valid reports whether code is non-empty and uses only alphabet symbols.
func Valid(code string) bool {
	if code == "" {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(Alphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
