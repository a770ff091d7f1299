package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	clierrors "github.com/kubiyabot/storyboard/internal/errors"
	"github.com/kubiyabot/storyboard/internal/pterm"
	"github.com/kubiyabot/storyboard/internal/replicate"
)

const (
	DefaultTTL      = time.Hour
	DefaultRoute    = "/api/files"
	DefaultMaxBytes = 100 << 20
)

var (
	// ErrUploadExpired is returned for ids whose credential expired or never existed
	ErrUploadExpired = errors.New("upload expired or unknown")
	// ErrInvalidSignature is returned for a URL signature that does not verify
	ErrInvalidSignature = errors.New("invalid upload signature")
	errTooLarge         = errors.New("upload exceeds the size limit")
)

// Remote is the provider file API
type Remote interface {
	UploadFile(ctx context.Context, token, filename, contentType string, r io.Reader) (*replicate.File, error)
	DownloadFile(ctx context.Context, token, id string) (io.ReadCloser, string, error)
}

// Options configures a Service
type Options struct {
	Remote Remote
	Store  CredentialStore
	// Fs and Dir hold uploads made without a provider token
	Fs  afero.Fs
	Dir string
	// Secret signs file URLs; it must not be empty
	Secret   []byte
	TTL      time.Duration
	Route    string
	MaxBytes int64
	Logger   *pterm.Logger
}

// Upload describes a stored file
type Upload struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	RemoteURL   string    `json:"remoteUrl,omitempty"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Local       bool      `json:"local"`
}

// InputURL is the URL a model should read the file from: the provider URL
// when the file lives there, else the signed proxy URL
func (u Upload) InputURL() string {
	if u.RemoteURL != "" {
		return u.RemoteURL
	}
	return u.URL
}

// Service stores user uploads and serves them behind signed, expiring URLs
type Service struct {
	remote   Remote
	store    CredentialStore
	fs       afero.Fs
	dir      string
	secret   []byte
	ttl      time.Duration
	route    string
	maxBytes int64
	logger   *pterm.Logger
}

// NewService creates a Service
func NewService(opts Options) (*Service, error) {
	if len(opts.Secret) == 0 {
		return nil, clierrors.ConfigError(errors.New("upload signing secret is empty"))
	}
	s := &Service{
		remote:   opts.Remote,
		store:    opts.Store,
		fs:       opts.Fs,
		dir:      opts.Dir,
		secret:   opts.Secret,
		ttl:      opts.TTL,
		route:    strings.TrimRight(opts.Route, "/"),
		maxBytes: opts.MaxBytes,
		logger:   opts.Logger,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.store == nil {
		s.store = NewMemoryStore(s.ttl)
	}
	if s.fs == nil {
		s.fs = afero.NewMemMapFs()
	}
	if s.dir == "" {
		s.dir = "uploads"
	}
	if s.route == "" {
		s.route = DefaultRoute
	}
	if s.maxBytes <= 0 {
		s.maxBytes = DefaultMaxBytes
	}
	return s, nil
}

// Upload stores r. With a token and a remote the file goes to the provider and
// the token is kept for reading it back; otherwise it is written locally.
func (s *Service) Upload(ctx context.Context, token, filename, contentType string, r io.Reader) (Upload, error) {
	filename = cleanName(filename)
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := uuid.NewString()
	expires := time.Now().Add(s.ttl)
	body := &limitReader{r: r, left: s.maxBytes}
	up := Upload{ID: id, Filename: filename, ContentType: contentType, ExpiresAt: expires}
	cred := Credential{Filename: filename, ContentType: contentType}

	if token != "" && s.remote != nil {
		f, err := s.remote.UploadFile(ctx, token, filename, contentType, body)
		if err != nil {
			if errors.Is(err, errTooLarge) || body.exceeded {
				return Upload{}, tooLarge(s.maxBytes)
			}
			return Upload{}, fmt.Errorf("upload %s: %w", filename, err)
		}
		cred.Token = token
		cred.RemoteID = f.ID
		up.RemoteURL = f.URLs.Get
		up.Size = f.Size
	} else {
		p := filepath.Join(s.dir, id+path.Ext(filename))
		if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
			return Upload{}, fmt.Errorf("create %s: %w", s.dir, err)
		}
		if err := afero.WriteReader(s.fs, p, body); err != nil {
			_ = s.fs.Remove(p)
			if body.exceeded {
				return Upload{}, tooLarge(s.maxBytes)
			}
			return Upload{}, fmt.Errorf("store %s: %w", filename, err)
		}
		cred.Path = p
		up.Local = true
		up.Size = body.read
	}

	sig, err := s.Sign(id, expires)
	if err != nil {
		return Upload{}, err
	}
	s.store.Put(id, cred, s.ttl)
	up.URL = fmt.Sprintf("%s/%s?sig=%s", s.route, id, sig)
	s.logger.Info("File uploaded", "id", id, "name", filename, "size", up.Size, "local", up.Local)
	return up, nil
}

// Open verifies sig and streams the file. The caller closes the reader.
func (s *Service) Open(ctx context.Context, id, sig string) (io.ReadCloser, string, error) {
	if err := s.Verify(id, sig); err != nil {
		return nil, "", err
	}
	cred, ok := s.store.Get(id)
	if !ok {
		return nil, "", ErrUploadExpired
	}

	if cred.Local() {
		f, err := s.fs.Open(cred.Path)
		if err != nil {
			return nil, "", ErrUploadExpired
		}
		return f, cred.ContentType, nil
	}
	if s.remote == nil {
		return nil, "", ErrUploadExpired
	}
	body, ctype, err := s.remote.DownloadFile(ctx, cred.Token, cred.RemoteID)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", cred.Filename, err)
	}
	if ctype == "" {
		ctype = cred.ContentType
	}
	return body, ctype, nil
}

// Sign returns a signature for id that expires at exp
func (s *Service) Sign(id string, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign upload url: %w", err)
	}
	return signed, nil
}

// Verify checks that sig was issued for id and has not expired
func (s *Service) Verify(id, sig string) error {
	if sig == "" {
		return ErrInvalidSignature
	}
	var claims jwt.RegisteredClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(sig, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrUploadExpired
	case err != nil:
		return ErrInvalidSignature
	case claims.Subject != id:
		return ErrInvalidSignature
	}
	return nil
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}

func tooLarge(limit int64) error {
	return clierrors.ValidationError(errTooLarge, fmt.Sprintf("Files are limited to %d MB.", limit>>20))
}

// limitReader fails once more than left bytes were read
type limitReader struct {
	r        io.Reader
	left     int64
	read     int64
	exceeded bool
}

func (l *limitReader) Read(p []byte) (int, error) {
	if l.left < 0 {
		l.exceeded = true
		return 0, errTooLarge
	}
	if int64(len(p)) > l.left+1 {
		p = p[:l.left+1]
	}
	n, err := l.r.Read(p)
	l.read += int64(n)
	l.left -= int64(n)
	if l.left < 0 {
		l.exceeded = true
		return n, errTooLarge
	}
	return n, err
}
