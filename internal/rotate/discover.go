package rotate

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
)

// FallbackExtensions are tried in order when the primary extension filter
// matches nothing in the input directory.
var FallbackExtensions = []string{".pgm", ".ppm", ".jpg", ".png", ".bmp"}

// FindImages walks dir recursively and returns the paths of regular files
// whose extension matches ext (case-insensitive). The extension may be given
// with or without the leading dot.
func FindImages(dir, ext string) ([]string, error) {
	ext = NormalizeExtension(ext)

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) == ext {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// FindImagesWithFallback looks for files matching ext, then falls back to
// the common image extensions when nothing matches. It returns the file list
// together with the extension that produced it.
func FindImagesWithFallback(dir, ext string) ([]string, string, error) {
	ext = NormalizeExtension(ext)

	files, err := FindImages(dir, ext)
	if err != nil {
		return nil, ext, err
	}
	if len(files) > 0 {
		return files, ext, nil
	}

	for _, alt := range FallbackExtensions {
		if alt == ext {
			continue
		}
		files, err = FindImages(dir, alt)
		if err != nil {
			return nil, ext, err
		}
		if len(files) > 0 {
			slog.Info("Primary extension matched nothing, using fallback",
				"requested", ext,
				"fallback", alt,
				"count", len(files),
			)
			return files, alt, nil
		}
	}

	return nil, ext, nil
}

// NormalizeExtension lowercases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
