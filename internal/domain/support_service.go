package domain

import (
	"context"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/Vovarama1992/featured-media/internal/config"
	"github.com/Vovarama1992/featured-media/internal/ports"
)

const OptionSysinfoOptIn = "tribe_systeminfo_optin"

var (
	ErrNotOptedIn = errors.New("invalid opt-in key")
	ErrInvalidKey = errors.New("invalid system info key")
)

type indexStatter interface {
	Stats() ports.IndexStats
}

type SupportService struct {
	cfg      *config.Config
	options  ports.OptionRepository
	index    indexStatter
	dbStats  func() map[string]any
	random   io.Reader
	location func() *time.Location
}

// NewSupportService collects diagnostics. dbStats may be nil.
func NewSupportService(
	cfg *config.Config,
	options ports.OptionRepository,
	index indexStatter,
	dbStats func() map[string]any,
) *SupportService {
	return &SupportService{
		cfg:      cfg,
		options:  options,
		index:    index,
		dbStats:  dbStats,
		random:   rand.Reader,
		location: func() *time.Location { return time.Local },
	}
}

func (s *SupportService) Stats(ctx context.Context) (map[string]any, error) {
	settings := map[string]string{}
	for _, prefix := range s.cfg.Support.SettingsPrefixes {
		opts, err := s.options.ListOptions(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("support stats: %w", err)
		}
		for k, v := range opts {
			settings[k] = v
		}
	}

	info := map[string]any{
		"Home URL":        s.cfg.HomeURL,
		"Site URL":        s.cfg.SiteURL,
		"install keys":    s.obfuscateAll(s.cfg.Support.InstallKeys),
		"app version":     s.cfg.Version,
		"Go version":      runtime.Version(),
		"OS":              runtime.GOOS + "/" + runtime.GOARCH,
		"goroutines":      runtime.NumGoroutine(),
		"settings":        s.obfuscateAll(settings),
		"server timezone": s.location().String(),
		"uploads dir":     s.cfg.Uploads.Dir,
	}
	if s.index != nil {
		info["media index"] = s.index.Stats()
	}
	if s.dbStats != nil {
		info["database"] = s.dbStats()
	}
	return info, nil
}

// OptIn stores a fresh sysinfo key when generate is set, otherwise removes
// the stored one.
func (s *SupportService) OptIn(ctx context.Context, generate bool) (string, error) {
	if !generate {
		if err := s.options.DeleteOption(ctx, OptionSysinfoOptIn); err != nil {
			return "", fmt.Errorf("opt out: %w", err)
		}
		return "", nil
	}

	seed := make([]byte, 16)
	if _, err := io.ReadFull(s.random, seed); err != nil {
		return "", fmt.Errorf("opt in: random: %w", err)
	}
	sum := sha1.Sum(seed)
	key := hex.EncodeToString(sum[:])

	if err := s.options.UpdateOption(ctx, OptionSysinfoOptIn, key); err != nil {
		return "", fmt.Errorf("opt in: %w", err)
	}
	return key, nil
}

func (s *SupportService) SysInfo(ctx context.Context, key string) (map[string]any, error) {
	stored, ok, err := s.options.GetOption(ctx, OptionSysinfoOptIn)
	if err != nil {
		return nil, fmt.Errorf("sysinfo: %w", err)
	}
	if !ok || stored == "" {
		return nil, ErrNotOptedIn
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(key)) != 1 {
		return nil, ErrInvalidKey
	}
	return s.Stats(ctx)
}

func (s *SupportService) obfuscateAll(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if s.mustObfuscate(k) {
			v = Obfuscate(v)
		}
		out[k] = v
	}
	return out
}

func (s *SupportService) mustObfuscate(key string) bool {
	for _, prefix := range s.cfg.Support.ObfuscatePrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Obfuscate keeps the last four characters of v.
func Obfuscate(v string) string {
	const visible = 4
	r := []rune(v)
	if len(r) <= visible {
		return strings.Repeat("#", len(r))
	}
	return strings.Repeat("#", len(r)-visible) + string(r[len(r)-visible:])
}
