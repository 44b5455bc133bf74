package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"usage-reports/utils"
)

var (
	ErrBadSignature = errors.New("artifact: invalid signature")
	ErrExpiredURL   = errors.New("artifact: signed URL expired")
	ErrInvalidKey   = errors.New("artifact: invalid key")
)

// FileSystemStore conserve les artefacts sous un dossier local et les expose via
// GET /artifacts/<key>?expires=..&name=..&sig=..
type FileSystemStore struct {
	baseDir    string
	publicBase string
	signingKey string
	now        func() time.Time
}

func NewFileSystemStore(baseDir, publicBaseURL, signingKey string) (*FileSystemStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &FileSystemStore{
		baseDir:    baseDir,
		publicBase: strings.TrimRight(publicBaseURL, "/"),
		signingKey: signingKey,
		now:        time.Now,
	}, nil
}

// Path retourne le chemin local d'une clé, en refusant toute sortie de baseDir.
func (s *FileSystemStore) Path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

func (s *FileSystemStore) Upload(ctx context.Context, localPath, key string, public bool) (string, error) {
	if key == "" {
		return "", ErrEmptyReference
	}
	dst, err := s.Path(key)
	if err != nil {
		return "", err
	}
	if err := utils.EnsureDirExists(filepath.Dir(dst)); err != nil {
		return "", err
	}
	in, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	if err := os.Rename(out.Name(), dst); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return key, nil
}

func (s *FileSystemStore) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return ErrEmptyReference
	}
	p, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}
	// dossier de la requête, s'il est vide
	if dir := filepath.Dir(p); dir != filepath.Clean(s.baseDir) {
		os.Remove(dir)
	}
	return nil
}

func (s *FileSystemStore) SignedURL(ctx context.Context, ref string, ttl time.Duration, downloadName string) (string, error) {
	if ref == "" {
		return "", ErrEmptyReference
	}
	if _, err := s.Path(ref); err != nil {
		return "", err
	}
	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("name", downloadName)
	q.Set("sig", utils.SignHex(s.signingKey, signedPayload(ref, expires, downloadName)))
	return s.publicBase + "/artifacts/" + ref + "?" + q.Encode(), nil
}

// Verify contrôle la signature et l'expiration d'une URL émise par SignedURL.
func (s *FileSystemStore) Verify(ref string, q url.Values) error {
	expires := q.Get("expires")
	if !utils.VerifyHex(s.signingKey, signedPayload(ref, expires, q.Get("name")), q.Get("sig")) {
		return ErrBadSignature
	}
	ts, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if s.now().Unix() > ts {
		return ErrExpiredURL
	}
	return nil
}

func signedPayload(ref, expires, name string) string {
	return ref + "\n" + expires + "\n" + name
}
