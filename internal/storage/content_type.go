package storage

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// DetectContentType determines the MIME type of an object. The explicitly
// provided type wins; then the key's extension; then sniffing the first
// 512 bytes; application/octet-stream as a last resort.
func DetectContentType(providedType, filename string, data io.Reader) string {
	if providedType != "" {
		return providedType
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}

	if data != nil {
		buffer := make([]byte, 512)
		n, err := io.ReadFull(data, buffer)
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return http.DetectContentType(buffer[:n])
		}
	}

	return "application/octet-stream"
}

// AllowedAttachmentTypes are the formats accepted for attendance-sheet
// uploads: the scans come from phones (JPEG/PNG) or office scanners (PDF).
var AllowedAttachmentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"application/pdf": true,
}

// IsAllowedAttachmentType checks whether a content type may be uploaded as
// an attendance sheet.
func IsAllowedAttachmentType(contentType string) bool {
	return AllowedAttachmentTypes[normalize(contentType)]
}

// IsImageType reports whether the content type is any image format.
func IsImageType(contentType string) bool {
	return strings.HasPrefix(normalize(contentType), "image/")
}

// normalize strips parameters (charset etc.) and case from a MIME type.
func normalize(contentType string) string {
	baseType := strings.Split(contentType, ";")[0]
	return strings.TrimSpace(strings.ToLower(baseType))
}

// extensionForContentType picks a filename extension for a MIME type when
// generating archive keys.
func extensionForContentType(contentType string) string {
	switch normalize(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "application/pdf":
		return ".pdf"
	}

	exts, err := mime.ExtensionsByType(contentType)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
