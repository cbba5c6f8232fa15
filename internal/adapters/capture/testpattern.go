package capture

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
)

var ErrDeviceClosed = errors.New("capture device closed")

// TestPattern renders colour bars with a sweeping marker so a receiver can
// see frames advance.
type TestPattern struct {
	mu     sync.Mutex
	w, h   int
	frame  int
	closed bool
}

var bars = []color.RGBA{
	{0xc0, 0xc0, 0xc0, 0xff},
	{0xc0, 0xc0, 0x00, 0xff},
	{0x00, 0xc0, 0xc0, 0xff},
	{0x00, 0xc0, 0x00, 0xff},
	{0xc0, 0x00, 0xc0, 0xff},
	{0xc0, 0x00, 0x00, 0xff},
	{0x00, 0x00, 0xc0, 0xff},
}

func OpenTestPattern(width, height int) (*TestPattern, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("test pattern size %dx%d", width, height)
	}
	return &TestPattern{w: width, h: height}, nil
}

func (p *TestPattern) Read() (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrDeviceClosed
	}
	img := image.NewRGBA(image.Rect(0, 0, p.w, p.h))
	barW := max(1, p.w/len(bars))
	marker := p.frame % p.w
	for x := 0; x < p.w; x++ {
		c := bars[min(x/barW, len(bars)-1)]
		if x >= marker && x < marker+4 {
			c = color.RGBA{0xff, 0xff, 0xff, 0xff}
		}
		for y := 0; y < p.h; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	p.frame++
	return img, nil
}

func (p *TestPattern) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
