package imaging

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"math/rand/v2"

	"google.golang.org/api/iterator"
)

// Noise generates opaque RGBA frames filled with uniform random pixels.
// It is not safe for concurrent use; the producer is its only caller.
type Noise struct {
	Width  int
	Height int
	// Limit stops generation after this many frames. Zero means unlimited.
	Limit int

	rnd       *rand.Rand
	generated int
}

func NewNoise(width, height int, seed uint64) (*Noise, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame dimensions must be positive, got %vx%v", width, height)
	}
	return &Noise{
		Width:  width,
		Height: height,
		rnd:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

func (n *Noise) WithLimit(limit int) *Noise {
	n.Limit = limit
	return n
}

func (n *Noise) Generate(ctx context.Context) (image.Image, error) {
	if n.Limit > 0 && n.generated >= n.Limit {
		return nil, iterator.Done
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, n.Width, n.Height))
	fill(n.rnd, img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
	n.generated++
	return img, nil
}

// FrameBytes is the in-memory size of one generated frame.
func FrameBytes(width, height int) uint64 {
	return uint64(width) * uint64(height) * 4
}

func fill(rnd *rand.Rand, pix []byte) {
	var buf [8]byte
	i := 0
	for ; i+8 <= len(pix); i += 8 {
		binary.LittleEndian.PutUint64(pix[i:], rnd.Uint64())
	}
	if i < len(pix) {
		binary.LittleEndian.PutUint64(buf[:], rnd.Uint64())
		copy(pix[i:], buf[:])
	}
}
