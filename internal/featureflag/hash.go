package featureflag

import "unicode/utf16"

// hashString is the 32-bit polynomial string hash h = h*31 + c over UTF-16
// code units, wrapping on overflow. Bucket assignments depend on this exact
// function, so it must not change.
func hashString(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}
	return h
}

// bucket maps s onto 0..modulus-1.
func bucket(s string, modulus int) int {
	h := int64(hashString(s))
	if h < 0 {
		h = -h
	}
	return int(h % int64(modulus))
}
