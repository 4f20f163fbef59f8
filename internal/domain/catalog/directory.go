package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/okian/formeval/internal/domain/model"
)

// VideoExtensions lists the file extensions picked up by FromDirectory.
var VideoExtensions = []string{".mp4", ".mov", ".avi"}

// FromDirectory builds a catalog from the video files in dir. The exercise is
// taken from the file name up to the first separator or digit, and the URL is
// the file name resolved against baseURL (or the file path when baseURL is
// empty). Items are returned sorted by file name.
func FromDirectory(ctx context.Context, dir, baseURL string) ([]model.CatalogItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, dir)
		}
		return nil, fmt.Errorf("read video dir %s: %w", dir, err)
	}

	var items []model.CatalogItem
	for _, entry := range entries {
		if entry.IsDir() || !isVideo(entry.Name()) {
			continue
		}
		name := entry.Name()
		items = append(items, model.CatalogItem{
			Exercise:  exerciseFromName(name),
			VideoName: name,
			URL:       videoURL(dir, baseURL, name),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].VideoName < items[j].VideoName })
	return items, nil
}

func isVideo(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range VideoExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

func exerciseFromName(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	end := strings.IndexFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.' || unicode.IsDigit(r)
	})
	if end > 0 {
		stem = stem[:end]
	}
	if stem == "" {
		return "unknown"
	}
	return strings.ToLower(stem)
}

func videoURL(dir, baseURL, name string) string {
	if baseURL == "" {
		return filepath.Join(dir, name)
	}
	u, err := url.JoinPath(baseURL, name)
	if err != nil {
		return strings.TrimSuffix(baseURL, "/") + "/" + name
	}
	return u
}
