package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalURLPrefix is where the server mounts the local upload directory.
const LocalURLPrefix = "/files"

// LocalStore keeps attachments under a directory on disk.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates root if needed. baseURL prefixes returned URLs.
func NewLocalStore(root, baseURL string) (*LocalStore, error) {
	if root == "" {
		root = "./uploads"
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, &Error{Code: CodeIO, Key: root, Err: err}
	}
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the directory served under LocalURLPrefix.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || clean != "/"+key {
		return "", &Error{Code: CodeInvalidKey, Key: key, Err: errors.New("key must be a clean relative path")}
	}
	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return wrapFS(key, err)
	}
	dst, err := os.Create(p)
	if err != nil {
		return wrapFS(key, err)
	}
	_, err = io.Copy(dst, r)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(p)
		return wrapFS(key, err)
	}
	return nil
}

func (s *LocalStore) URL(ctx context.Context, key string) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", wrapFS(key, err)
	}
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segs, "/"), nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapFS(key, err)
	}
	return nil
}

func wrapFS(key string, err error) error {
	code := CodeIO
	switch {
	case errors.Is(err, fs.ErrPermission):
		code = CodeAccessDenied
	case errors.Is(err, fs.ErrNotExist):
		code = CodeNoSuchKey
	}
	return &Error{Code: code, Key: key, Err: err}
}
