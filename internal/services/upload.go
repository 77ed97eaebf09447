package services

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Upload is a file received from a multipart form.
type Upload struct {
	Filename string
	Data     []byte
}

// Empty reports whether the browser sent an empty file input.
func (u Upload) Empty() bool {
	return len(u.Data) == 0
}

// nonEmpty drops empty file inputs.
func nonEmpty(uploads []Upload) []Upload {
	kept := make([]Upload, 0, len(uploads))
	for _, upload := range uploads {
		if !upload.Empty() {
			kept = append(kept, upload)
		}
	}
	return kept
}

// detectImage sniffs the upload content and returns its MIME type when it
// is an image.
func detectImage(upload Upload) (string, bool) {
	if upload.Empty() {
		return "", false
	}
	mime := mimetype.Detect(upload.Data)
	contentType := mime.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return contentType, strings.HasPrefix(contentType, "image/")
}
