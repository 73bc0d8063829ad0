// Package github implements document.Store on top of the GitHub Contents API.
//
// Every call is a single attempt bounded by its own timeout: reads use
// ReadTimeout, writes use WriteTimeout because their payloads may carry image
// bytes. Nothing is retried; callers restart the whole read-modify-write cycle.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/vpecom/shop-admin/internal/domain/document"
)

const (
	DefaultAPIURL       = "https://api.github.com"
	DefaultBranch       = "main"
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 30 * time.Second

	mediaTypeJSON = "application/vnd.github+json"
	mediaTypeRaw  = "application/vnd.github.raw"
	apiVersion    = "2022-11-28"

	instrumentationName = "github.com/vpecom/shop-admin/internal/storage/github"
)

var _ document.Store = (*Client)(nil)

// Options configures a Client. Repository and Token are required.
type Options struct {
	// Repository is "owner/name".
	Repository string
	Token      string

	APIURL       string
	Branch       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Transport is the base round tripper; http.DefaultTransport when nil.
	Transport      http.RoundTripper
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

func (o *Options) setDefaults() {
	if o.APIURL == "" {
		o.APIURL = DefaultAPIURL
	}
	o.APIURL = strings.TrimRight(o.APIURL, "/")
	if o.Branch == "" {
		o.Branch = DefaultBranch
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.Transport == nil {
		o.Transport = http.DefaultTransport
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = noop.NewMeterProvider()
	}
}

// Client talks to one repository.
type Client struct {
	http         *http.Client
	repoURL      string
	branch       string
	readTimeout  time.Duration
	writeTimeout time.Duration

	tracer   trace.Tracer
	requests metric.Int64Counter
}

// New builds a Client for opts.Repository.
func New(opts Options) (*Client, error) {
	owner, name, ok := strings.Cut(opts.Repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, errors.Errorf("invalid repository %q: want owner/name", opts.Repository)
	}
	opts.setDefaults()

	requests, err := opts.MeterProvider.Meter(instrumentationName).Int64Counter(
		"shopadmin.store.requests",
		metric.WithDescription("GitHub Contents API calls by operation and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create request counter")
	}

	base := otelhttp.NewTransport(opts.Transport,
		otelhttp.WithTracerProvider(opts.TracerProvider),
		otelhttp.WithMeterProvider(opts.MeterProvider),
	)

	return &Client{
		http: &http.Client{
			Transport: &tokenTransport{token: opts.Token, base: base},
		},
		repoURL:      opts.APIURL + "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(name),
		branch:       opts.Branch,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
		tracer:       opts.TracerProvider.Tracer(instrumentationName),
		requests:     requests,
	}, nil
}

// Check implements document.Store by reading the repository metadata.
func (c *Client) Check(ctx context.Context) (rerr error) {
	ctx, end := c.begin(ctx, "check", "")
	defer func() { end(rerr) }()

	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, c.repoURL, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return newStatusError("check", "", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Get implements document.Store.
func (c *Client) Get(ctx context.Context, path string) (_ document.File, rerr error) {
	ctx, end := c.begin(ctx, "get", path)
	defer func() { end(rerr) }()

	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, c.contentsURL(path, true), nil, "")
	if err != nil {
		return document.File{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return document.File{}, newStatusError("get", path, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return document.File{}, unavailable("read "+path, err)
	}
	meta, err := decodeContents(body)
	if err != nil {
		return document.File{}, errors.Wrapf(err, "decode contents of %s", path)
	}

	var content []byte
	switch meta.Encoding {
	case "base64":
		content, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(meta.Content, "\n", ""))
		if err != nil {
			return document.File{}, errors.Wrapf(err, "decode base64 of %s", path)
		}
	default:
		// Files above 1 MB come back without inline content.
		content, err = c.getRaw(ctx, path)
		if err != nil {
			return document.File{}, err
		}
	}

	return document.File{Content: content, SHA: meta.SHA}, nil
}

func (c *Client) getRaw(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, c.contentsURL(path, true), nil, mediaTypeRaw)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError("get", path, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable("read "+path, err)
	}
	return data, nil
}

// Put implements document.Store.
func (c *Client) Put(ctx context.Context, path string, content []byte, sha, message string) (_ string, rerr error) {
	ctx, end := c.begin(ctx, "put", path)
	defer func() { end(rerr) }()

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		e.Field("content", func(e *jx.Encoder) { e.Base64(content) })
		e.Field("branch", func(e *jx.Encoder) { e.Str(c.branch) })
		if sha != "" {
			e.Field("sha", func(e *jx.Encoder) { e.Str(sha) })
		}
	})

	resp, err := c.do(ctx, http.MethodPut, c.contentsURL(path, false), e.Bytes(), "")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", newStatusError("put", path, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", unavailable("read put response for "+path, err)
	}
	newSHA, err := decodeCommitSHA(body)
	if err != nil {
		return "", errors.Wrapf(err, "decode put response for %s", path)
	}
	return newSHA, nil
}

// Delete implements document.Store.
func (c *Client) Delete(ctx context.Context, path, sha, message string) (rerr error) {
	ctx, end := c.begin(ctx, "delete", path)
	defer func() { end(rerr) }()

	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		e.Field("sha", func(e *jx.Encoder) { e.Str(sha) })
		e.Field("branch", func(e *jx.Encoder) { e.Str(c.branch) })
	})

	resp, err := c.do(ctx, http.MethodDelete, c.contentsURL(path, false), e.Bytes(), "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return newStatusError("delete", path, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) contentsURL(path string, withRef bool) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	u := c.repoURL + "/contents/" + strings.Join(segments, "/")
	if withRef {
		u += "?ref=" + url.QueryEscape(c.branch)
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, accept string) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, unavailable(method+" "+u, err)
	}
	return resp, nil
}

// begin opens a span for op and returns a finisher that records the outcome.
func (c *Client) begin(ctx context.Context, op, path string) (context.Context, func(error)) {
	ctx, span := c.tracer.Start(ctx, "github.contents."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("document.path", path)),
	)
	return ctx, func(err error) {
		outcome := outcomeOf(err)
		c.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("outcome", outcome),
		))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, document.ErrNotFound):
		return "not_found"
	case errors.Is(err, document.ErrConflict):
		return "conflict"
	case errors.Is(err, document.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, document.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", document.ErrUnavailable, op, err)
}

type contentsMeta struct {
	SHA      string
	Content  string
	Encoding string
}

func decodeContents(data []byte) (contentsMeta, error) {
	var m contentsMeta
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "sha":
			return optStr(d, &m.SHA)
		case "content":
			return optStr(d, &m.Content)
		case "encoding":
			return optStr(d, &m.Encoding)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return m, err
	}
	if m.SHA == "" {
		return m, errors.New("response has no sha")
	}
	return m, nil
}

// decodeCommitSHA extracts content.sha from a PUT response.
func decodeCommitSHA(data []byte) (string, error) {
	var sha string
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "content" || d.Next() != jx.Object {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) == "sha" {
				return optStr(d, &sha)
			}
			return d.Skip()
		})
	})
	if err != nil {
		return "", err
	}
	if sha == "" {
		return "", errors.New("response has no content sha")
	}
	return sha, nil
}

func optStr(d *jx.Decoder, dst *string) error {
	if d.Next() == jx.Null {
		return d.Null()
	}
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
