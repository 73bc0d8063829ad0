package asset

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vpecom/shop-admin/internal/domain/document"
	"github.com/vpecom/shop-admin/internal/storage/memory"
)

var testLoc = Location{RawHost: "raw.example.com", Repository: "acme/shop", Branch: "main"}

// faultStore fails Put or Delete for selected paths.
type faultStore struct {
	*memory.Store
	failPut    map[string]error
	failDelete map[string]error
}

func (f *faultStore) Put(ctx context.Context, path string, content []byte, sha, message string) (string, error) {
	if err := f.failPut[path]; err != nil {
		return "", err
	}
	return f.Store.Put(ctx, path, content, sha, message)
}

func (f *faultStore) Delete(ctx context.Context, path, sha, message string) error {
	if err := f.failDelete[path]; err != nil {
		return err
	}
	return f.Store.Delete(ctx, path, sha, message)
}

func newFaultStore() *faultStore {
	return &faultStore{Store: memory.New(), failPut: map[string]error{}, failDelete: map[string]error{}}
}

func TestUploadAll(t *testing.T) {
	ctx := context.Background()
	store := newFaultStore()
	store.failPut["images/b.webp"] = document.ErrUnavailable

	var sleeps []time.Duration
	m := NewManager(store, testLoc)
	m.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}

	urls, err := m.UploadAll(ctx, []Upload{
		{Path: "images/a.webp", Data: []byte{1}, Message: "Upload product image"},
		{Path: "images/b.webp", Data: []byte{2}, Message: "Upload product image"},
		{Path: "images/c.webp", Data: []byte{3}, Message: "Upload product image"},
	})

	assert.Equal(t, []string{
		"https://raw.example.com/acme/shop/main/images/a.webp",
		"https://raw.example.com/acme/shop/main/images/c.webp",
	}, urls)
	var pe *PartialError
	require.ErrorAs(t, err, &pe)
	require.Len(t, pe.Failures, 1)
	assert.Equal(t, "images/b.webp", pe.Failures[0].Path)
	assert.ErrorIs(t, pe.Failures[0].Err, document.ErrUnavailable)

	assert.Equal(t, []time.Duration{DefaultThrottle, DefaultThrottle}, sleeps)
	assert.Equal(t, []string{"images/a.webp", "images/c.webp"}, store.Paths())
}

func TestUploadAll_NoThrottle(t *testing.T) {
	m := NewManager(memory.New(), testLoc, WithThrottle(0))
	m.sleep = func(context.Context, time.Duration) error {
		t.Fatal("unexpected sleep")
		return nil
	}
	urls, err := m.UploadAll(context.Background(), []Upload{
		{Path: "images/a.webp", Data: []byte{1}},
		{Path: "images/b.webp", Data: []byte{2}},
	})
	require.NoError(t, err)
	assert.Len(t, urls, 2)
}

func TestUploadAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewManager(memory.New(), testLoc, WithThrottle(time.Hour))

	urls, err := m.UploadAll(ctx, []Upload{
		{Path: "images/a.webp", Data: []byte{1}},
		{Path: "images/b.webp", Data: []byte{2}},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, urls, 1)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newFaultStore()
	m := NewManager(store, testLoc, WithThrottle(0))

	u, err := m.Upload(ctx, Upload{Path: "images/a.webp", Data: []byte{1}})
	require.NoError(t, err)

	t.Run("Foreign", func(t *testing.T) {
		deleted, err := m.Delete(ctx, "https://other.com/x.webp")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
	t.Run("Existing", func(t *testing.T) {
		deleted, err := m.Delete(ctx, u)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.Empty(t, store.Paths())

		commits := store.Commits()
		assert.Equal(t, "Delete file: images/a.webp", commits[len(commits)-1].Message)
	})
	t.Run("AlreadyGone", func(t *testing.T) {
		deleted, err := m.Delete(ctx, u)
		require.NoError(t, err)
		assert.True(t, deleted)
	})
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	store := newFaultStore()
	m := NewManager(store, testLoc, WithThrottle(0))

	a, err := m.Upload(ctx, Upload{Path: "images/a.webp", Data: []byte{1}})
	require.NoError(t, err)
	b, err := m.Upload(ctx, Upload{Path: "images/b.webp", Data: []byte{2}})
	require.NoError(t, err)
	store.failDelete["images/a.webp"] = document.ErrUnauthorized

	err = m.DeleteAll(ctx, []string{a, "https://cdn.test/z.webp", b})
	var pe *PartialError
	require.ErrorAs(t, err, &pe)
	require.Len(t, pe.Failures, 1)
	assert.Equal(t, a, pe.Failures[0].Path)
	assert.Equal(t, []string{"images/a.webp"}, store.Paths())
}

func TestMergePartial(t *testing.T) {
	assert.NoError(t, MergePartial(nil, errors.New("not partial")))

	merged := MergePartial(
		&PartialError{Failures: []Failure{{Op: "delete", Path: "a"}}},
		nil,
		errors.Wrap(&PartialError{Failures: []Failure{{Op: "upload", Path: "b"}}}, "wrapped"),
	)
	var pe *PartialError
	require.ErrorAs(t, merged, &pe)
	assert.Equal(t, []string{"a", "b"}, []string{pe.Failures[0].Path, pe.Failures[1].Path})
	assert.Contains(t, merged.Error(), "2 asset operation(s) failed")
}
