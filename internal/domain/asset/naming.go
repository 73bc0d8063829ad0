package asset

import (
	"crypto/md5" //nolint:gosec // naming only, not security
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
)

// Name and directory limits for derived asset files.
const (
	Extension = ".webp"

	ImagesDir  = "images"
	BannersDir = "banners"

	maxCleanLen       = 50
	maxTitleLen       = 20
	maxDescriptionLen = 15
	stemLen           = 12
)

// DeriveFilename builds the file name for an uploaded asset from human text
// fields and the operation timestamp. The same inputs always give the same
// name; there is no content dedup, a new timestamp gives a new name.
func DeriveFilename(title, description string, tsMillis int64, suffix string) string {
	t := truncate(clean(title), maxTitleLen)
	d := truncate(clean(description), maxDescriptionLen)
	key := t + "_" + d + "_" + strconv.FormatInt(tsMillis, 10) + "_" + suffix

	sum := md5.Sum([]byte(key)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:stemLen] + Extension
}

// clean keeps word characters, whitespace and hyphens, turns every run of
// whitespace or hyphens into a single underscore, caps the length and
// lowercases the result.
func clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	sep := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r) || r == '-':
			sep = true
		case isWordRune(r):
			if sep {
				b.WriteByte('_')
				sep = false
			}
			b.WriteRune(r)
		}
	}
	if sep {
		b.WriteByte('_')
	}

	out := strings.Trim(truncate(b.String(), maxCleanLen), "_")
	return strings.ToLower(out)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
