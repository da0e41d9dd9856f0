package models

import (
	"strconv"
	"strings"
)

type MediaRefKind int

const (
	MediaRefNone MediaRefKind = iota
	MediaRefURL
	MediaRefID
)

func (k MediaRefKind) String() string {
	switch k {
	case MediaRefURL:
		return "url"
	case MediaRefID:
		return "id"
	default:
		return "none"
	}
}

// MediaRef points at a featured image: either a remote URL or an existing
// attachment id, never both.
type MediaRef struct {
	kind MediaRefKind
	url  string
	id   int
}

func RefFromURL(u string) MediaRef {
	u = strings.TrimSpace(u)
	if u == "" {
		return MediaRef{}
	}
	return MediaRef{kind: MediaRefURL, url: u}
}

func RefFromID(id int) MediaRef {
	if id <= 0 {
		return MediaRef{}
	}
	return MediaRef{kind: MediaRefID, id: id}
}

// ParseMediaRef treats numeric input as an attachment id and anything else
// as a URL.
func ParseMediaRef(raw string) MediaRef {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return MediaRef{}
	}
	if id, err := strconv.Atoi(raw); err == nil {
		return RefFromID(id)
	}
	return RefFromURL(raw)
}

func (r MediaRef) Kind() MediaRefKind { return r.kind }
func (r MediaRef) URL() string        { return r.url }
func (r MediaRef) ID() int            { return r.id }
func (r MediaRef) IsEmpty() bool      { return r.kind == MediaRefNone }

func (r MediaRef) String() string {
	switch r.kind {
	case MediaRefURL:
		return r.url
	case MediaRefID:
		return strconv.Itoa(r.id)
	default:
		return ""
	}
}
