// Package transform holds the byte-level collaborators the pipeline actions
// delegate to: image header decoding, archive decompression, and document
// parsing.
package transform

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG for image.DecodeConfig
	_ "image/png"  // register PNG for image.DecodeConfig
	"math"

	"github.com/ravi-parthasarathy/ingest/pkg/pipeline"
)

// ErrUnknownFormat is returned when a buffer matches none of the supported
// magic numbers.
var ErrUnknownFormat = errors.New("unknown format")

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xff, 0xd8, 0xff}
	bmpMagic  = []byte("BM")
)

// ImageDecoder reads the header of PNG, JPEG and BMP images. Pixel data is
// carried through untouched.
type ImageDecoder struct{}

func (ImageDecoder) DecodeImage(ctx context.Context, data []byte) (pipeline.DecodedImage, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.DecodedImage{}, err
	}
	switch {
	case bytes.HasPrefix(data, pngMagic), bytes.HasPrefix(data, jpegMagic):
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return pipeline.DecodedImage{}, fmt.Errorf("decode image header: %w", err)
		}
		return pipeline.DecodedImage{Format: format, Width: cfg.Width, Height: cfg.Height, Data: data}, nil
	case bytes.HasPrefix(data, bmpMagic):
		return decodeBMP(data)
	default:
		return pipeline.DecodedImage{}, fmt.Errorf("image: %w", ErrUnknownFormat)
	}
}

// decodeBMP reads the BITMAPINFOHEADER dimensions. A negative height marks a
// top-down bitmap.
func decodeBMP(data []byte) (pipeline.DecodedImage, error) {
	const headerLen = 26
	if len(data) < headerLen {
		return pipeline.DecodedImage{}, fmt.Errorf("bmp: header truncated at %d bytes", len(data))
	}
	width := int32(binary.LittleEndian.Uint32(data[18:22]))
	height := int32(binary.LittleEndian.Uint32(data[22:26]))
	if height < 0 && height != math.MinInt32 {
		height = -height
	}
	if width <= 0 || height <= 0 {
		return pipeline.DecodedImage{}, fmt.Errorf("bmp: invalid dimensions %dx%d", width, height)
	}
	return pipeline.DecodedImage{Format: "bmp", Width: int(width), Height: int(height), Data: data}, nil
}
