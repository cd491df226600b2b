package image

import (
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".webp": true,
}

// Info describes a saved image file.
type Info struct {
	Path    string
	Format  string
	Width   int
	Height  int
	Size    int64
	ModTime time.Time
}

// Inspect decodes only the header of the image at path.
func Inspect(path string) (Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	info := Info{Path: path, Size: st.Size(), ModTime: st.ModTime()}

	f, err := os.Open(path)
	if err != nil {
		return info, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cfg, format, err := stdimage.DecodeConfig(f)
	if err != nil {
		return info, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	info.Format = format
	info.Width = cfg.Width
	info.Height = cfg.Height
	return info, nil
}

// Recent lists up to limit images in dir, newest first. Files that cannot be
// decoded are still listed with zero dimensions.
func Recent(dir string, limit int) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		st, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			Path:    filepath.Join(dir, e.Name()),
			Size:    st.Size(),
			ModTime: st.ModTime(),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModTime.After(infos[j].ModTime)
	})
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}

	for i := range infos {
		if decoded, err := Inspect(infos[i].Path); err == nil {
			infos[i] = decoded
		}
	}
	return infos, nil
}
