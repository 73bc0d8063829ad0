package web

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPages(t *testing.T) {
	for _, name := range []string{"setup.html", "admin.html"} {
		t.Run(name, func(t *testing.T) {
			data, err := fs.ReadFile(Pages, name)
			require.NoError(t, err)
			page := string(data)

			assert.Contains(t, page, "<!DOCTYPE html>")
			// Catalog values are user supplied and must reach the DOM as text.
			assert.NotContains(t, page, "innerHTML")
			assert.NotContains(t, page, "outerHTML")
			assert.NotContains(t, page, "insertAdjacentHTML")
			assert.NotContains(t, page, "document.write")
		})
	}
}
