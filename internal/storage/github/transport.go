package github

import "net/http"

// tokenTransport authenticates every request against the GitHub REST API.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTrippers must not mutate the caller's request.
	r := req.Clone(req.Context())
	if t.token != "" {
		r.Header.Set("Authorization", "Bearer "+t.token)
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", mediaTypeJSON)
	}
	r.Header.Set("X-GitHub-Api-Version", apiVersion)
	return t.base.RoundTrip(r)
}
