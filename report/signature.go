package report

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ImageFormat is the encoding of a stored signature image.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
)

var ErrNoSignatureImage = errors.New("signature has no image")

// Decode returns the raw image of a signed slot. Signatures are stored as
// base64 data URLs, e.g. "data:image/png;base64,iVBOR...".
func (s Signature) Decode() ([]byte, ImageFormat, error) {
	if !s.Signed {
		return nil, "", ErrNoSignatureImage
	}
	meta, payload, ok := strings.Cut(s.Image, ",")
	if !ok || !strings.HasPrefix(meta, "data:") || !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("%s signature: not a base64 data url", s.Party)
	}
	var format ImageFormat
	switch mime := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64"); mime {
	case "image/png":
		format = FormatPNG
	case "image/jpeg", "image/jpg":
		format = FormatJPEG
	default:
		return nil, "", fmt.Errorf("%s signature: unsupported image type %q", s.Party, mime)
	}
	b, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%s signature: %w", s.Party, err)
	}
	return b, format, nil
}
