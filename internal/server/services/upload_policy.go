package services

import (
	"fmt"
	"mime"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/casevault/internal/common"
)

// Field limits.
const (
	maxFilenameRunes    = 256
	maxTitleRunes       = 200
	maxCategoryRunes    = 64
	maxNotesRunes       = 20000
	maxContentTypeRunes = 128
	maxKeyLength        = 1024
	maxVersion          = 10000
)

// allowedTypes maps accepted content types to the extensions they may carry.
var allowedTypes = map[string][]string{
	"application/pdf":    {".pdf"},
	"application/msword": {".doc"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {".docx"},
	"text/plain": {".txt"},
}

var typeByExtension = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".txt":  "text/plain",
}

// normalizeContentType lower-cases ct and strips parameters.
// Unparseable values normalize to "".
func normalizeContentType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return strings.ToLower(mediaType)
}

func extensionOf(filename string) string {
	return strings.ToLower(path.Ext(filename))
}

// resolveContentType returns the normalized allow-listed type for filename.
// An empty declared type is inferred from the extension.
func resolveContentType(filename, declared string) (string, error) {
	ct := normalizeContentType(declared)
	if strings.TrimSpace(declared) != "" && ct == "" {
		return "", fmt.Errorf("%w: malformed content type %q", common.ErrUnsupportedType, declared)
	}

	ext := extensionOf(filename)
	if ct == "" {
		ct = typeByExtension[ext]
		if ct == "" {
			return "", fmt.Errorf("%w: cannot infer type of %q", common.ErrUnsupportedType, filename)
		}
	}

	exts, ok := allowedTypes[ct]
	if !ok {
		return "", fmt.Errorf("%w: %s", common.ErrUnsupportedType, ct)
	}

	// a known extension must agree with the declared type
	if _, known := typeByExtension[ext]; known {
		agree := false
		for _, e := range exts {
			if e == ext {
				agree = true
			}
		}
		if !agree {
			return "", fmt.Errorf("%w: %s does not match extension %s", common.ErrUnsupportedType, ct, ext)
		}
	}

	return ct, nil
}

func allowedType(ct string) bool {
	_, ok := allowedTypes[normalizeContentType(ct)]
	return ok
}

func checkLength(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%w: %s longer than %d characters", common.ErrInvalidInput, field, max)
	}
	return nil
}

func validateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: filename is required", common.ErrInvalidInput)
	}
	return checkLength("filename", name, maxFilenameRunes)
}

func (s *UploadService) validateSize(size int64) error {
	if size <= 0 {
		return common.ErrFileEmpty
	}
	if size > s.policy.MaxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", common.ErrFileTooLarge, size, s.policy.MaxFileSize)
	}
	return nil
}

// DocumentMeta is the descriptive metadata merged into a document.
type DocumentMeta struct {
	Title    string
	Category string
	Notes    string
}

func (m DocumentMeta) validate() error {
	if err := checkLength("title", m.Title, maxTitleRunes); err != nil {
		return err
	}
	if err := checkLength("category", m.Category, maxCategoryRunes); err != nil {
		return err
	}
	return checkLength("notes", m.Notes, maxNotesRunes)
}

func (m DocumentMeta) trimmed() DocumentMeta {
	return DocumentMeta{
		Title:    strings.TrimSpace(m.Title),
		Category: strings.TrimSpace(m.Category),
		Notes:    strings.TrimSpace(m.Notes),
	}
}
