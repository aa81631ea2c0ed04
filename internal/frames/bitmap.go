package frames

import "image"

// Bitmap is a 1-bit frame in image coordinates: (0,0) is the top-left
// pixel, y grows downward. Callers that need bottom-up rows (the game
// places row boards bottom first) flip y themselves.
type Bitmap struct {
	W, H int
	bits []bool
}

// NewBitmap returns an all-off bitmap, used as the implicit frame before
// the first real one.
func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{W: w, H: h, bits: make([]bool, w*h)}
}

// At reports whether the pixel at (x, y) is on.
func (b *Bitmap) At(x, y int) bool {
	return b.bits[y*b.W+x]
}

// Set turns the pixel at (x, y) on or off.
func (b *Bitmap) Set(x, y int, on bool) {
	b.bits[y*b.W+x] = on
}

// DiffCount returns how many pixels differ between two same-sized
// bitmaps.
func (b *Bitmap) DiffCount(other *Bitmap) int {
	n := 0
	for i := range b.bits {
		if b.bits[i] != other.bits[i] {
			n++
		}
	}
	return n
}

// Threshold converts an image to a 1-bit bitmap. A pixel is on when its
// Rec. 601 luma exceeds the cutoff.
func Threshold(img image.Image, cutoff uint8) *Bitmap {
	bounds := img.Bounds()
	b := NewBitmap(bounds.Dx(), bounds.Dy())
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			b.Set(x, y, Luma(img, bounds.Min.X+x, bounds.Min.Y+y) > cutoff)
		}
	}
	return b
}

// Luma returns the Rec. 601 luma of the pixel at (x, y) as an 8-bit
// value.
func Luma(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	// RGBA returns 16-bit channels; reduce to 8 bits before weighting.
	r8 := r >> 8
	g8 := g >> 8
	b8 := b >> 8
	return uint8((299*r8 + 587*g8 + 114*b8 + 500) / 1000)
}
