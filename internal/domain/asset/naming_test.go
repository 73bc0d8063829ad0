package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveFilename(t *testing.T) {
	for _, tt := range []struct {
		name        string
		title, desc string
		ts          int64
		suffix      string
		want        string
	}{
		{"Basic", "Red Shoes!", "Comfy running shoe", 1700000000000, "img_0", "e749cadec797.webp"},
		{"Empty", "", "", 1700000000000, "bulk_0", "9f52e598ecd7.webp"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveFilename(tt.title, tt.desc, tt.ts, tt.suffix)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, DeriveFilename(tt.title, tt.desc, tt.ts, tt.suffix))
		})
	}

	base := DeriveFilename("Red Shoes", "x", 1, "img_0")
	assert.NotEqual(t, base, DeriveFilename("Red Shoes", "x", 2, "img_0"))
	assert.NotEqual(t, base, DeriveFilename("Red Shoes", "x", 1, "img_1"))
	assert.Len(t, base, 12+len(Extension))
}

func TestClean(t *testing.T) {
	for in, want := range map[string]string{
		"":                   "",
		"  Hello -- World!! ": "hello_world",
		"Ünïcode Tëst":       "ünïcode_tëst",
		"a-!-b":              "a_b",
		"a!b":                "ab",
		"__x__":              "x",
		"cafe\u0301 bar":     "cafe_bar",
		"नमस्ते":             "नमसत",
		"x½ Ⅻ":               "x½_ⅻ",
	} {
		assert.Equal(t, want, clean(in), in)
	}
	long := clean("abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij abcdefghij")
	assert.Equal(t, 50, len([]rune(long)))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "ünï", truncate("ünïcode", 3))
	assert.Equal(t, "abc", truncate("abc", 10))
}

func TestLocation(t *testing.T) {
	loc := Location{RawHost: "raw.example.com", Repository: "acme/shop", Branch: "main"}

	u := loc.URL("images/x.webp")
	assert.Equal(t, "https://raw.example.com/acme/shop/main/images/x.webp", u)

	p, ok := loc.PathFromURL(u)
	assert.True(t, ok)
	assert.Equal(t, "images/x.webp", p)

	for _, foreign := range []string{
		"",
		"https://other.com/x.webp",
		"https://raw.example.com/acme/other/main/x.webp",
		"https://raw.example.com/acme/shop/dev/x.webp",
		"https://raw.example.com/acme/shop/main/",
	} {
		_, ok := loc.PathFromURL(foreign)
		assert.False(t, ok, foreign)
	}

	assert.Equal(t, "images/a.webp", ImagePath("a.webp"))
	assert.Equal(t, "banners/a.webp", BannerPath("a.webp"))
}
