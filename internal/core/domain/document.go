package domain

import (
	"path/filepath"
	"strings"
)

type MediaType string

const (
	MediaTypePDF  MediaType = "pdf"
	MediaTypeJPG  MediaType = "jpg"
	MediaTypeJPEG MediaType = "jpeg"
	MediaTypePNG  MediaType = "png"
)

// AllowedMediaTypes is the upload allow-list.
var AllowedMediaTypes = map[MediaType]struct{}{
	MediaTypePDF:  {},
	MediaTypeJPG:  {},
	MediaTypeJPEG: {},
	MediaTypePNG:  {},
}

var mimeAliases = map[string]MediaType{
	"application/pdf": MediaTypePDF,
	"image/jpeg":      MediaTypeJPEG,
	"image/jpg":       MediaTypeJPG,
	"image/png":       MediaTypePNG,
}

// NormalizeMediaType lowercases and trims the dot from an extension, and maps
// known MIME types onto their short form.
func NormalizeMediaType(raw string) MediaType {
	v := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(v, ";"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	if mt, ok := mimeAliases[v]; ok {
		return mt
	}
	return MediaType(strings.TrimPrefix(v, "."))
}

// MediaTypeFromFilename falls back to the file extension when the picker
// supplies no usable type.
func MediaTypeFromFilename(name string) MediaType {
	return NormalizeMediaType(filepath.Ext(name))
}

func (m MediaType) Allowed() bool {
	_, ok := AllowedMediaTypes[m]
	return ok
}

type UploadedDocument struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MediaType MediaType `json:"media_type"`
	PageCount int       `json:"page_count,omitempty"`

	Content []byte `json:"-"`
}
