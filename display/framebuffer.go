package display

import (
	"image"
	"image/color"
	"sync/atomic"
)

// Framebuffer is an in-memory Displayer for hosts and tests.
type Framebuffer struct {
	img    *image.RGBA
	frames atomic.Int64
}

func NewFramebuffer(w, h int) *Framebuffer {
	return &Framebuffer{img: image.NewRGBA(image.Rect(0, 0, w, h))}
}

func (f *Framebuffer) Size() (int16, int16) {
	b := f.img.Bounds()
	return int16(b.Dx()), int16(b.Dy())
}

func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	if !(image.Point{X: int(x), Y: int(y)}.In(f.img.Bounds())) {
		return
	}
	f.img.SetRGBA(int(x), int(y), c)
}

func (f *Framebuffer) Display() error {
	f.frames.Add(1)
	return nil
}

// Frames counts Display calls.
func (f *Framebuffer) Frames() int64 { return f.frames.Load() }

// Image exposes the pixels. Read it under the render lock.
func (f *Framebuffer) Image() *image.RGBA { return f.img }
