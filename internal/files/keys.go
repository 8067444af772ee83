package files

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotExist is returned when a key has no stored file.
var ErrNotExist = errors.New("file does not exist")

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ErrExists is returned when saving to a key that already holds a file.
var ErrExists = errors.New("file already exists")

// ReportKey returns the key of one uploaded report file. uploadID keeps two
// uploads of the same file name apart. Only the base name of filename is used.
func ReportKey(ownerID int64, uploadID, filename string) string {
	return fmt.Sprintf("%d/report_files/%s/%s", ownerID, baseName(uploadID), baseName(filename))
}

// baseName strips any directory part, whichever separator the client used.
func baseName(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	return path.Base(filename)
}

// cleanKey normalizes key and rejects absolute or parent-relative keys.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
