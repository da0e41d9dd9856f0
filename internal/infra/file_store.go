package infra

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxUniqueSuffix = 1000

var (
	ErrEmptyContent   = errors.New("empty content")
	ErrContentTooBig  = errors.New("content exceeds upload limit")
	unsafeFilenameRun = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	dashRun           = regexp.MustCompile(`-{2,}`)
)

// StoredFile describes bytes written under the uploads directory.
type StoredFile struct {
	Path     string // absolute path on disk
	RelPath  string // yyyy/mm/name.ext
	URL      string
	Name     string
	MimeType string
	Size     int
}

// FileStore writes uploads into dated subdirectories, the way a media
// library lays them out: <dir>/<yyyy>/<mm>/<name>.
type FileStore struct {
	dir      string
	baseURL  string
	maxBytes int64
	now      func() time.Time
}

func NewFileStore(dir, baseURL string, maxBytes int64) *FileStore {
	return &FileStore{
		dir:      dir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

func (s *FileStore) Save(content []byte, filenameHint string) (*StoredFile, error) {
	if len(content) == 0 {
		return nil, ErrEmptyContent
	}
	if s.maxBytes > 0 && int64(len(content)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrContentTooBig, len(content), s.maxBytes)
	}

	detected := mimetype.Detect(content)
	name := SanitizeFilename(filenameHint)
	if path.Ext(name) == "" {
		name += detected.Extension()
	}

	sub := s.now().Format("2006/01")
	absDir := filepath.Join(s.dir, filepath.FromSlash(sub))
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir uploads: %w", err)
	}

	f, finalName, err := createUnique(absDir, name)
	if err != nil {
		return nil, err
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("close upload: %w", err)
	}

	rel := sub + "/" + finalName
	return &StoredFile{
		Path:     f.Name(),
		RelPath:  rel,
		URL:      s.baseURL + "/" + rel,
		Name:     finalName,
		MimeType: mimeTypeFor(detected, finalName),
		Size:     len(content),
	}, nil
}

// Remove deletes a stored file; used to roll back when the record insert fails.
func (s *FileStore) Remove(f *StoredFile) {
	if f != nil && f.Path != "" {
		_ = os.Remove(f.Path)
	}
}

func createUnique(dir, name string) (*os.File, string, error) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxUniqueSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create upload: %w", err)
		}
	}
	return nil, "", fmt.Errorf("create upload: no free name for %s", name)
}

// SanitizeFilename folds accents, replaces unsafe characters with dashes
// and falls back to a random name when nothing usable is left.
func SanitizeFilename(hint string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(hint), "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}

	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		base,
	)
	if err == nil {
		base = folded
	}

	base = unsafeFilenameRun.ReplaceAllString(base, "-")
	base = dashRun.ReplaceAllString(base, "-")

	ext := path.Ext(base)
	stem := strings.Trim(strings.TrimSuffix(base, ext), "-.")
	if ext == "." {
		ext = ""
	}
	if stem == "" {
		stem = uuid.NewString()
	}
	return stem + strings.ToLower(ext)
}

func mimeTypeFor(detected *mimetype.MIME, name string) string {
	mt := detected.String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	if mt == "" || mt == "application/octet-stream" {
		if byExt := mime.TypeByExtension(path.Ext(name)); byExt != "" {
			mt = byExt
			if i := strings.IndexByte(mt, ';'); i >= 0 {
				mt = mt[:i]
			}
		}
	}
	return strings.TrimSpace(mt)
}
