// Package charclass classifies the trailing character of committed text.
package charclass

// IsLastCharAlnum reports whether the last complete character of s is an
// ASCII letter or digit.
//
// The scan works on raw bytes: continuation bytes (10xxxxxx) are skipped
// to find the lead byte of the final character. Empty strings, strings made
// only of continuation bytes and any multi-byte character return false.
func IsLastCharAlnum(s string) bool {
	i := len(s) - 1
	for i >= 0 && s[i]&0xC0 == 0x80 {
		i--
	}
	if i < 0 {
		return false
	}

	c := s[i]
	if c&0x80 != 0 {
		return false
	}
	return isASCIIAlnum(c)
}

// IsASCIIAlnum reports whether r is an ASCII letter or digit.
func IsASCIIAlnum(r rune) bool {
	return r >= 0 && r < 0x80 && isASCIIAlnum(byte(r))
}

func isASCIIAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
