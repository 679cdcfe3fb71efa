package docxcompose

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ImageAsset is an image file embedded in the package.
type ImageAsset struct {
	// Name is the package entry, e.g. "word/media/image3.png".
	Name string
	// Target is Name relative to word/, as relationships reference it.
	Target string
	// Width and Height are the pixel dimensions, when the format could be
	// decoded.
	Width, Height int
	Probed        bool
}

// MediaManager copies image files into the package, once per distinct
// source file, under fresh word/media/imageN names.
type MediaManager struct {
	scratch string
	taken   map[string]bool
	counter int
	assets  map[string]ImageAsset
	added   []string
	log     *zap.Logger
}

// NewMediaManager returns a manager writing below the scratch directory.
// templateParts are the entries already in the package; numbering starts
// after the template's media.
func NewMediaManager(scratch string, templateParts []string, log *zap.Logger) *MediaManager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &MediaManager{
		scratch: scratch,
		taken:   make(map[string]bool),
		assets:  make(map[string]ImageAsset),
		log:     log,
	}
	for _, p := range templateParts {
		if strings.HasPrefix(p, mediaDir) {
			m.taken[p] = true
			m.counter++
		}
	}
	return m
}

// Embed copies the image at path into the package and returns its entry.
// The same file referenced twice, whatever the spelling of its path, is
// embedded once.
func (m *MediaManager) Embed(imagePath string) (ImageAsset, error) {
	key, err := canonicalPath(imagePath)
	if err != nil {
		return ImageAsset{}, &AssetError{Path: imagePath, Cause: err}
	}
	if a, ok := m.assets[key]; ok {
		return a, nil
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(key), "."))
	if ext == "jpg" {
		ext = "jpeg"
	}
	if _, ok := imageContentTypes[ext]; !ok {
		return ImageAsset{}, &AssetError{Path: imagePath, Cause: fmt.Errorf("unsupported image type %q", filepath.Ext(key))}
	}

	data, err := os.ReadFile(key)
	if err != nil {
		return ImageAsset{}, &AssetError{Path: imagePath, Cause: err}
	}

	name := m.nextName(ext)
	dest, err := scratchPath(m.scratch, name)
	if err != nil {
		return ImageAsset{}, &AssetError{Path: imagePath, Cause: err}
	}
	if err := os.MkdirAll(filepath.Dir(dest), defaultDirPerm); err != nil {
		return ImageAsset{}, &AssetError{Path: imagePath, Cause: err}
	}
	if err := os.WriteFile(dest, data, defaultFilePerm); err != nil {
		return ImageAsset{}, &AssetError{Path: imagePath, Cause: err}
	}

	a := ImageAsset{Name: name, Target: strings.TrimPrefix(name, "word/")}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		a.Width, a.Height, a.Probed = cfg.Width, cfg.Height, true
	} else {
		m.log.Warn("could not read image dimensions", zap.String("path", key), zap.Error(err))
	}

	m.taken[name] = true
	m.assets[key] = a
	m.added = append(m.added, name)
	m.log.Debug("image embedded", zap.String("path", key), zap.String("part", name),
		zap.Int("width", a.Width), zap.Int("height", a.Height))
	return a, nil
}

// Added returns the entries embedded during the session, in order.
func (m *MediaManager) Added() []string {
	out := make([]string, len(m.added))
	copy(out, m.added)
	return out
}

// Len returns the number of distinct images embedded.
func (m *MediaManager) Len() int { return len(m.added) }

func (m *MediaManager) nextName(ext string) string {
	for {
		m.counter++
		name := path.Join(mediaDir, "image"+strconv.Itoa(m.counter)+"."+ext)
		if !m.taken[name] {
			return name
		}
	}
}

// canonicalPath resolves p to an absolute path with symlinks evaluated, so
// relative and absolute spellings of one file compare equal.
func canonicalPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
