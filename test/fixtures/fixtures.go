package fixtures

import (
	"context"
	"errors"
	"image"
	"sort"
	"sync"
	"time"

	"google.golang.org/api/iterator"
)

// Frame is a tiny image carrying id in its first pixel, enough to tell frames apart.
func Frame(id int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Pix[0] = byte(id)
	return img
}

type InfiniteGenerator struct {
	lastId int
}

func (g *InfiniteGenerator) Generate(ctx context.Context) (image.Image, error) {
	g.lastId++
	return Frame(g.lastId), nil
}

type FiniteGenerator struct {
	MaxFrames int
	lastId    int
}

func (g *FiniteGenerator) Generate(ctx context.Context) (image.Image, error) {
	if g.lastId >= g.MaxFrames {
		return nil, iterator.Done
	}
	g.lastId++
	return Frame(g.lastId), nil
}

// FailingGenerator returns Err for every call from FailSinceId on.
type FailingGenerator struct {
	Err         error
	FailSinceId int
	lastId      int
}

func (g *FailingGenerator) Generate(ctx context.Context) (image.Image, error) {
	g.lastId++
	if g.lastId >= g.FailSinceId {
		return nil, g.Err
	}
	return Frame(g.lastId), nil
}

// Written records one successful Persist call.
type Written struct {
	Path string
	Size int64
}

// CollectingPersister remembers every path it was asked to write. Safe for
// concurrent use.
type CollectingPersister struct {
	Size    int64
	Latency time.Duration

	mu      sync.Mutex
	written []Written
}

func (p *CollectingPersister) Persist(payload image.Image, path string, quality int) (int64, error) {
	if p.Latency > 0 {
		time.Sleep(p.Latency)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.written = append(p.written, Written{Path: path, Size: p.Size})
	return p.Size, nil
}

func (p *CollectingPersister) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, len(p.written))
	for i, w := range p.written {
		paths[i] = w.Path
	}
	sort.Strings(paths)
	return paths
}

// FailingPersister fails for every path that FailIf matches and succeeds otherwise.
type FailingPersister struct {
	FailIf func(path string) bool
	CollectingPersister
}

var ErrDiskFull = errors.New("disk full")

func (p *FailingPersister) Persist(payload image.Image, path string, quality int) (int64, error) {
	if p.FailIf == nil || p.FailIf(path) {
		return 0, ErrDiskFull
	}
	return p.CollectingPersister.Persist(payload, path, quality)
}
