package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Constraints bound a resampled image.
type Constraints struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64
}

type Result struct {
	Data         []byte
	Width        int
	Height       int
	SourceWidth  int
	SourceHeight int
}

// Fit scales w×h down to fit inside maxW×maxH, keeping the aspect ratio.
// Images that already fit are returned unchanged.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if (maxW <= 0 || w <= maxW) && (maxH <= 0 || h <= maxH) {
		return w, h
	}
	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = float64(maxW) / float64(w)
	}
	if maxH > 0 && float64(h)*scale > float64(maxH) {
		scale = float64(maxH) / float64(h)
	}
	tw := int(float64(w)*scale + 0.5)
	th := int(float64(h)*scale + 0.5)
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}

// Resample decodes raw and re-encodes it as a JPEG within c.
func Resample(raw []byte, c Constraints) (Result, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}
	return resampleImage(img, c)
}

func resampleImage(img image.Image, c Constraints) (Result, error) {
	bounds := img.Bounds()
	sw, sh := bounds.Dx(), bounds.Dy()
	tw, th := Fit(sw, sh, c.MaxWidth, c.MaxHeight)
	if tw == 0 || th == 0 {
		return Result{}, fmt.Errorf("image has no pixels")
	}

	// JPEG has no alpha channel, so paint on white first
	canvas := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality(c.Quality)}); err != nil {
		return Result{}, fmt.Errorf("encode image: %w", err)
	}
	return Result{Data: buf.Bytes(), Width: tw, Height: th, SourceWidth: sw, SourceHeight: sh}, nil
}

func jpegQuality(q float64) int {
	switch {
	case q <= 0:
		return jpeg.DefaultQuality
	case q > 1:
		return 100
	default:
		return int(q*100 + 0.5)
	}
}
