package constants

import "strings"

// Format is the text-extraction strategy an upload maps to.
type Format string

const (
	PDF   Format = "PDF"
	IMAGE Format = "IMAGE"
)

// AllowedExtensions holds the file extensions accepted by the auto-fill pipeline.
var AllowedExtensions = map[string]Format{
	"pdf":  PDF,
	"png":  IMAGE,
	"jpg":  IMAGE,
	"jpeg": IMAGE,
}

// AllowedMIMETypes holds the declared content types accepted by the auto-fill pipeline.
var AllowedMIMETypes = map[string]Format{
	"application/pdf": PDF,
	"image/png":       IMAGE,
	"image/jpeg":      IMAGE,
	"image/jpg":       IMAGE,
	"image/pjpeg":     IMAGE,
}

// SupportedTypesLabel is the human readable list used in the unsupported file type message.
const SupportedTypesLabel = "PDF, PNG, JPG, JPEG"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat returns the format for an extension, or "" when unsupported.
func MapExtToFormat(ext string) Format {
	return AllowedExtensions[NormalizeExt(ext)]
}

// NormalizeMIME lowercases a content type and drops parameters such as charset.
func NormalizeMIME(contentType string) string {
	mt := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// MapMIMEToFormat returns the format for a content type, or "" when unsupported.
func MapMIMEToFormat(contentType string) Format {
	return AllowedMIMETypes[NormalizeMIME(contentType)]
}
