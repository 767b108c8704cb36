package reports

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const stampLayout = "20060102150405"

// SanitizeFilename keeps only ASCII letters, digits, '.', '_' and '-' of the base name.
// Runs of other characters become a single '_'; an empty base becomes "photo".
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := filepath.Ext(name)
	base := cleanPart(strings.TrimSuffix(name, ext))
	ext = cleanPart(strings.TrimPrefix(ext, "."))
	if base == "" {
		base = "photo"
	}
	if ext == "" {
		return base
	}
	return base + "." + ext
}

func cleanPart(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "._-")
}

// StampedFilename appends a timestamp to the sanitized base name to avoid collisions.
func StampedFilename(original string, now time.Time) string {
	safe := SanitizeFilename(original)
	ext := filepath.Ext(safe)
	base := strings.TrimSuffix(safe, ext)
	return fmt.Sprintf("%s_%s%s", base, now.Format(stampLayout), ext)
}

const maxNameAttempts = 100

// SavePhoto writes src into dir under a stamped name and returns that name.
// When the stamped name is taken, a _2, _3, ... suffix is tried.
func SavePhoto(dir, original string, src io.Reader, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	stamped := StampedFilename(original, now)
	ext := filepath.Ext(stamped)
	base := strings.TrimSuffix(stamped, ext)

	var (
		f    *os.File
		name string
		err  error
	)
	for n := 1; n <= maxNameAttempts; n++ {
		name = stamped
		if n > 1 {
			name = fmt.Sprintf("%s_%d%s", base, n, ext)
		}
		f, err = os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if !errors.Is(err, fs.ErrExist) {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("create photo file: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write photo: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close photo: %w", err)
	}
	return name, nil
}

// RemovePhoto deletes a photo saved by SavePhoto. A missing file is not an error.
func RemovePhoto(dir, name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(filepath.Join(dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
