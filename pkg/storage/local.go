package storage

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Local implements Storage on the local filesystem. Signed links are plain
// HTTP URLs under /files/ carrying an HMAC over method, key and expiry; the
// HTTP layer calls Verify before touching the filesystem.
type Local struct {
	basePath string
	baseURL  string
	secret   []byte
}

// NewLocal creates the filesystem storage rooted at basePath. When secret is
// empty a random one is generated, which makes signed links valid only for
// the lifetime of the process.
func NewLocal(basePath, baseURL, secret string) (*Local, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}

	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
	}

	return &Local{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		secret:   key,
	}, nil
}

// resolve maps a key to a filesystem path, rejecting anything that would
// escape the storage root.
func (l *Local) resolve(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if cleaned == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(l.basePath, filepath.FromSlash(cleaned)), nil
}

func (l *Local) Put(ctx context.Context, key string, r io.Reader) error {
	p, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("write object: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close object: %w", err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

func (l *Local) Delete(ctx context.Context, key string) error {
	p, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (l *Local) PresignPut(key string, ttl time.Duration) (string, error) {
	return l.presign("PUT", key, ttl)
}

func (l *Local) PresignGet(key string, ttl time.Duration) (string, error) {
	return l.presign("GET", key, ttl)
}

func (l *Local) presign(method, key string, ttl time.Duration) (string, error) {
	if _, err := l.resolve(key); err != nil {
		return "", err
	}
	expires := strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)
	sig := l.sign(method, key, expires)

	q := url.Values{}
	q.Set("expires", expires)
	q.Set("signature", sig)
	return fmt.Sprintf("%s/files/%s?%s", l.baseURL, key, q.Encode()), nil
}

// Verify checks the signature and expiry of a signed-link request.
func (l *Local) Verify(method, key, expires, signature string) error {
	ts, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || time.Now().Unix() > ts {
		return ErrBadSignature
	}
	want := l.sign(method, key, expires)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

func (l *Local) sign(method, key, expires string) string {
	mac := hmac.New(sha256.New, l.secret)
	fmt.Fprintf(mac, "%s\n%s\n%s", method, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// Prune walks prefix and removes regular files older than the retention
// window, then drops directories it emptied.
func (l *Local) Prune(ctx context.Context, prefix string, olderThan time.Duration) (int, error) {
	root, err := l.resolve(prefix)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)

	removed := 0
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(p); err == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("prune %s: %w", prefix, err)
	}

	// Sweep empty directories left behind; os.Remove refuses non-empty ones.
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || p == root {
			return nil
		}
		_ = os.Remove(p)
		return nil
	})
	return removed, nil
}
