package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"
)

type Asset struct {
	Filename string
	Data     []byte
}

// WriteArchive streams assets into a zip written to w. Repeated file names
// get a numeric suffix so no entry shadows another.
func WriteArchive(w io.Writer, assets []Asset) error {
	zw := zip.NewWriter(w)
	used := map[string]int{}
	for _, asset := range assets {
		name := uniqueName(asset.Filename, used)
		fw, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := fw.Write(asset.Data); err != nil {
			return fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	return zw.Close()
}

func uniqueName(name string, used map[string]int) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	ext := path.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n+1, ext)
}
