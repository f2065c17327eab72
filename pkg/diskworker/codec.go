package diskworker

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode

	"github.com/marmos91/tiercache/internal/logger"
)

const (
	// DefaultQuality is the JPEG quality used when a LoadImage has none.
	DefaultQuality = 85

	// DefaultMaxDimension bounds recompressed images when a LoadImage has
	// no target size.
	DefaultMaxDimension = 2048
)

// CodecConfig configures recompression on load.
type CodecConfig struct {
	// Recompress enables decode and re-encode of supported formats.
	// When false every load is a verbatim read.
	Recompress bool `mapstructure:"recompress" yaml:"recompress"`

	// MaxDimension bounds width and height when a request has no target size.
	MaxDimension int `mapstructure:"max_dimension" yaml:"max_dimension" validate:"gte=0"`

	// Quality is the default JPEG quality (1-100).
	Quality int `mapstructure:"quality" yaml:"quality" validate:"gte=0,lte=100"`
}

// DefaultCodecConfig returns recompression enabled with default bounds.
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{
		Recompress:   true,
		MaxDimension: DefaultMaxDimension,
		Quality:      DefaultQuality,
	}
}

// loadResult describes how a load was served.
type loadResult struct {
	data         []byte
	recompressed bool
	original     int
}

// codec performs LoadImage reads.
type codec struct {
	cfg CodecConfig
}

func newCodec(cfg CodecConfig) *codec {
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultMaxDimension
	}
	if cfg.Quality <= 0 {
		cfg.Quality = DefaultQuality
	}
	return &codec{cfg: cfg}
}

// load reads path and, for supported formats, re-encodes it within the
// requested bounds. Any decode or encode failure falls back to the bytes as
// read from disk. A file that cannot be read is ErrNotFound.
func (c *codec) load(cmd LoadImage) (loadResult, error) {
	path := cmd.Path.String()

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return loadResult{}, fmt.Errorf("read %s: %w", path, ErrNotFound)
		}
		return loadResult{}, fmt.Errorf("read %s: %v: %w", path, err, ErrNotFound)
	}

	res := loadResult{data: raw, original: len(raw)}

	format, ok := formatFor(path)
	if !c.cfg.Recompress || !ok {
		return res, nil
	}

	out, err := c.recompress(raw, format, cmd)
	if err != nil {
		logger.Debug("Recompression failed, serving verbatim",
			logger.KeyPath, path,
			logger.Err(err))
		return res, nil
	}

	res.data = out
	res.recompressed = true
	return res, nil
}

// recompress decodes raw with EXIF orientation applied, fits it into the
// target bounds, and re-encodes it. PNG stays PNG; everything else becomes
// JPEG at the requested quality.
func (c *codec) recompress(raw []byte, format imaging.Format, cmd LoadImage) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	w, h := cmd.TargetWidth, cmd.TargetHeight
	if w <= 0 {
		w = c.cfg.MaxDimension
	}
	if h <= 0 {
		h = c.cfg.MaxDimension
	}

	resized := false
	b := img.Bounds()
	if b.Dx() > w || b.Dy() > h {
		img = imaging.Fit(img, w, h, imaging.Lanczos)
		resized = true
	}

	quality := cmd.Quality
	if quality <= 0 {
		quality = c.cfg.Quality
	}

	out, err := encode(img, format, quality)
	if err != nil {
		return nil, err
	}

	// Re-encoding an already compact file at full size can grow it.
	if !resized && len(out) >= len(raw) {
		return raw, nil
	}
	return out, nil
}

func encode(img image.Image, format imaging.Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if format == imaging.PNG {
		err = imaging.Encode(&buf, img, imaging.PNG)
	} else {
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

// formatFor reports the output format for a recompressible file extension.
func formatFor(path string) (imaging.Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return imaging.JPEG, true
	case ".png":
		return imaging.PNG, true
	case ".gif", ".webp":
		// Decoded to a single frame and stored as JPEG.
		return imaging.JPEG, true
	default:
		return 0, false
	}
}

// IsImagePath reports whether path has an extension the worker recompresses.
func IsImagePath(path string) bool {
	_, ok := formatFor(path)
	return ok
}
