// Package imaging turns uploaded product images into inline base64 data URLs.
package imaging

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfrund/storefront/internal/domain"
)

// DefaultMaxBytes is the largest accepted upload.
const DefaultMaxBytes = 5 * 1024 * 1024

// legacyPrefix is prepended to stored values that carry bare base64.
const legacyPrefix = "data:image/jpeg;base64,"

// Upload is an image file received from the seller form.
type Upload struct {
	Filename string
	Data     []byte
}

// Encode validates the upload and returns it as a data URL. The MIME type
// is sniffed from the content rather than trusted from the client.
func Encode(u *Upload, maxBytes int64) (string, error) {
	if u == nil || len(u.Data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrInvalidImage)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(u.Data)) > maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes, limit is %d", domain.ErrInvalidImage, u.Filename, len(u.Data), maxBytes)
	}

	mtype := mimetype.Detect(u.Data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%w: %s has type %s", domain.ErrInvalidImage, u.Filename, mtype.String())
	}

	return "data:" + mtype.String() + ";base64," + base64.StdEncoding.EncodeToString(u.Data), nil
}

// Display normalizes a stored image value into something an <img> tag can
// show. Values already in data URL form are returned unchanged.
func Display(stored string) string {
	if stored == "" {
		return ""
	}
	if strings.HasPrefix(stored, "data:image") {
		return stored
	}
	return legacyPrefix + stored
}

// Report describes one stored image, for diagnostics.
type Report struct {
	Present     bool
	Length      int
	ValidPrefix bool
	Prefix      string
}

// Inspect builds a Report for a stored image value.
func Inspect(stored *string) Report {
	if stored == nil || *stored == "" {
		return Report{}
	}
	s := *stored
	prefix := s
	if len(prefix) > 30 {
		prefix = prefix[:30]
	}
	return Report{
		Present:     true,
		Length:      len(s),
		ValidPrefix: strings.HasPrefix(s, "data:image"),
		Prefix:      prefix,
	}
}
