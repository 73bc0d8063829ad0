package asset

import (
	"path"
	"strings"
)

// DefaultRawHost serves committed files of public repositories.
const DefaultRawHost = "raw.githubusercontent.com"

// Location maps repository paths to public raw-content URLs and back.
type Location struct {
	RawHost    string
	Repository string
	Branch     string
}

func (l Location) prefix() string {
	return "https://" + l.RawHost + "/" + l.Repository + "/" + l.Branch + "/"
}

// URL returns the public URL of a committed file.
func (l Location) URL(p string) string {
	return l.prefix() + strings.TrimPrefix(p, "/")
}

// PathFromURL recovers the repository path from a URL produced by URL. It
// reports false for empty input, other hosts, other repositories or other
// branches, so foreign images are never resolved to a deletable path.
func (l Location) PathFromURL(u string) (string, bool) {
	if u == "" || l.RawHost == "" || l.Repository == "" {
		return "", false
	}
	rest, ok := strings.CutPrefix(u, l.prefix())
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// ImagePath is the repository path for a product image.
func ImagePath(name string) string {
	return path.Join(ImagesDir, name)
}

// BannerPath is the repository path for a banner image.
func BannerPath(name string) string {
	return path.Join(BannersDir, name)
}
