// Package texture prepares host images for the device: RGBA4444
// conversion, scaling to the supported sizes, and file loading.
package texture

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png" // the demo assets are PNGs
	"os"

	"golang.org/x/image/draw"
)

// The device only samples square textures with these edge lengths.
var supportedSizes = []int{32, 64, 128, 256}

func supported(n int) bool {
	for _, s := range supportedSizes {
		if n == s {
			return true
		}
	}
	return false
}

// Convert packs img into the device's RGBA4444 pixel layout. The image
// must already be square with a supported edge length; use Fit when it
// isn't.
func Convert(img image.Image) ([]uint16, int, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w != h || !supported(w) {
		return nil, 0, fmt.Errorf("texture: %dx%d is not a supported texture size", w, h)
	}

	px := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			px[y*w+x] = uint16(r>>12)<<12 | uint16(g>>12)<<8 | uint16(bl>>12)<<4 | uint16(a>>12)
		}
	}
	return px, w, nil
}

// Fit scales img to size x size and packs it.
func Fit(img image.Image, size int) ([]uint16, error) {
	if !supported(size) {
		return nil, fmt.Errorf("texture: %d is not a supported texture size", size)
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	px, _, err := Convert(dst)
	return px, err
}

// Load reads an image file and fits it to size.
func Load(path string, size int) ([]uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("texture: couldn't open %q: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("texture: couldn't decode %q: %w", path, err)
	}

	return Fit(img, size)
}

// Checker builds a procedural size x size checkerboard with cells x
// cells squares of colors a and b. Handy for demos and tests.
func Checker(size, cells int, a, b color.RGBA) ([]uint16, error) {
	if !supported(size) {
		return nil, fmt.Errorf("texture: %d is not a supported texture size", size)
	}

	pack := func(c color.RGBA) uint16 {
		return uint16(c.R>>4)<<12 | uint16(c.G>>4)<<8 | uint16(c.B>>4)<<4 | uint16(c.A>>4)
	}
	pa, pb := pack(a), pack(b)

	cell := size / cells
	if cell == 0 {
		cell = 1
	}
	px := make([]uint16, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				px[y*size+x] = pa
			} else {
				px[y*size+x] = pb
			}
		}
	}
	return px, nil
}
