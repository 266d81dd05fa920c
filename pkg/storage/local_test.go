package storage

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	l, err := NewLocal(t.TempDir(), "http://localhost:8080", "test-secret")
	require.NoError(t, err)
	return l
}

func TestLocalPutGetDelete(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Put(ctx, "uploads/doc.pdf", strings.NewReader("content")))

	rc, err := l.Get(ctx, "uploads/doc.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "content", string(data))

	require.NoError(t, l.Delete(ctx, "uploads/doc.pdf"))
	_, err = l.Get(ctx, "uploads/doc.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("deleting a missing key is fine", func(t *testing.T) {
		assert.NoError(t, l.Delete(ctx, "uploads/gone.pdf"))
	})
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	for _, key := range []string{"../outside", "a/../../b", ""} {
		err := l.Put(ctx, key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestLocalPresignRoundTrip(t *testing.T) {
	l := newTestLocal(t)

	signed, err := l.PresignGet("outputs/abc/report.xlsx", time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.Path, "/files/outputs/abc/report.xlsx"))

	expires := u.Query().Get("expires")
	sig := u.Query().Get("signature")
	assert.NoError(t, l.Verify("GET", "outputs/abc/report.xlsx", expires, sig))

	t.Run("wrong method fails", func(t *testing.T) {
		assert.ErrorIs(t, l.Verify("PUT", "outputs/abc/report.xlsx", expires, sig), ErrBadSignature)
	})
	t.Run("tampered key fails", func(t *testing.T) {
		assert.ErrorIs(t, l.Verify("GET", "outputs/abc/other.xlsx", expires, sig), ErrBadSignature)
	})
	t.Run("expired link fails", func(t *testing.T) {
		past, err := l.PresignGet("outputs/abc/report.xlsx", -time.Minute)
		require.NoError(t, err)
		pu, err := url.Parse(past)
		require.NoError(t, err)
		assert.ErrorIs(t,
			l.Verify("GET", "outputs/abc/report.xlsx", pu.Query().Get("expires"), pu.Query().Get("signature")),
			ErrBadSignature)
	})
}

func TestLocalPrune(t *testing.T) {
	l := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, l.Put(ctx, "outputs/old/report.xlsx", strings.NewReader("old")))
	require.NoError(t, l.Put(ctx, "outputs/new/report.xlsx", strings.NewReader("new")))

	oldPath := filepath.Join(l.basePath, "outputs", "old", "report.xlsx")
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	removed, err := l.Prune(ctx, "outputs", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = l.Get(ctx, "outputs/old/report.xlsx")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Get(ctx, "outputs/new/report.xlsx")
	assert.NoError(t, err)

	t.Run("missing prefix prunes nothing", func(t *testing.T) {
		removed, err := l.Prune(ctx, "nothing-here", time.Hour)
		assert.NoError(t, err)
		assert.Zero(t, removed)
	})
}
