package media

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"

	// Registered decoders for DecodeConfig and Decode.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	ThumbnailMaxWidth  = 300
	ThumbnailMaxHeight = 300
	ThumbnailQuality   = 80
)

var ErrNotImage = errors.New("not a decodable image")

// Dimensions reads the image header only.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, errors.Join(ErrNotImage, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Thumbnail scales the image to fit within 300×300 (never enlarging) and
// encodes it as JPEG at quality 80.
func Thumbnail(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Join(ErrNotImage, err)
	}

	b := src.Bounds()
	w, h := fitWithin(b.Dx(), b.Dy(), ThumbnailMaxWidth, ThumbnailMaxHeight)
	if w == 0 || h == 0 {
		return nil, ErrNotImage
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= maxW && h <= maxH {
		return w, h
	}
	// Scale by the tighter ratio, rounding but keeping at least one pixel.
	if w*maxH > h*maxW {
		nh := (h*maxW + w/2) / w
		return maxW, max(nh, 1)
	}
	nw := (w*maxH + h/2) / h
	return max(nw, 1), maxH
}
