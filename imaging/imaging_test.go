package imaging_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/bilus/recorder/imaging"
	"google.golang.org/api/iterator"
	. "gopkg.in/check.v1"
)

func Test(t *testing.T) { TestingT(t) }

type MySuite struct {
	Dir string
}

var _ = Suite(&MySuite{})

func (s *MySuite) SetUpTest(c *C) {
	s.Dir = c.MkDir()
}

func (s *MySuite) TestNoiseRejectsBadDimensions(c *C) {
	_, err := imaging.NewNoise(0, 10, 1)
	c.Assert(err, ErrorMatches, "frame dimensions must be positive.*")
	_, err = imaging.NewNoise(10, -1, 1)
	c.Assert(err, NotNil)
}

func (s *MySuite) TestNoiseFramesAreOpaqueAndSized(c *C) {
	n, err := imaging.NewNoise(7, 5, 42)
	c.Assert(err, IsNil)
	img, err := n.Generate(context.Background())
	c.Assert(err, IsNil)
	c.Assert(img.Bounds(), Equals, image.Rect(0, 0, 7, 5))
	rgba := img.(*image.RGBA)
	c.Assert(rgba.Opaque(), Equals, true)
	c.Assert(uint64(len(rgba.Pix)), Equals, imaging.FrameBytes(7, 5))
}

func (s *MySuite) TestNoiseIsDeterministicPerSeed(c *C) {
	a, _ := imaging.NewNoise(16, 16, 7)
	b, _ := imaging.NewNoise(16, 16, 7)
	imgA, _ := a.Generate(context.Background())
	imgB, _ := b.Generate(context.Background())
	c.Assert(imgA.(*image.RGBA).Pix, DeepEquals, imgB.(*image.RGBA).Pix)
}

func (s *MySuite) TestNoiseLimitEndsWithIteratorDone(c *C) {
	n, _ := imaging.NewNoise(2, 2, 1)
	n.WithLimit(2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := n.Generate(ctx)
		c.Assert(err, IsNil)
	}
	_, err := n.Generate(ctx)
	c.Assert(err, Equals, iterator.Done)
}

func (s *MySuite) TestNoiseHonorsCancelledContext(c *C) {
	n, _ := imaging.NewNoise(2, 2, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := n.Generate(ctx)
	c.Assert(errors.Is(err, context.Canceled), Equals, true)
}

func (s *MySuite) TestNormalizeFormat(c *C) {
	f, err := imaging.NormalizeFormat(".JPG")
	c.Assert(err, IsNil)
	c.Assert(f, Equals, "jpg")
	_, err = imaging.NormalizeFormat("gif")
	c.Assert(errors.Is(err, imaging.ErrUnsupportedFormat), Equals, true)
}

func (s *MySuite) TestEncodeEveryFormat(c *C) {
	n, _ := imaging.NewNoise(8, 8, 3)
	img, _ := n.Generate(context.Background())
	for _, format := range imaging.Formats {
		var buf bytes.Buffer
		c.Assert(imaging.Encode(&buf, img, format, 90), IsNil, Commentf("format %s", format))
		c.Assert(buf.Len() > 0, Equals, true, Commentf("format %s", format))
	}
}

func (s *MySuite) TestEncodeRejectsNilAndUnknown(c *C) {
	var buf bytes.Buffer
	c.Assert(imaging.Encode(&buf, nil, "png", 90), NotNil)
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	c.Assert(errors.Is(imaging.Encode(&buf, img, "gif", 90), imaging.ErrUnsupportedFormat), Equals, true)
}

func (s *MySuite) TestPersistReportsFileSize(c *C) {
	fw, err := imaging.NewFileWriter("jpg")
	c.Assert(err, IsNil)
	n, _ := imaging.NewNoise(32, 16, 9)
	img, _ := n.Generate(context.Background())
	path := filepath.Join(s.Dir, "frame.jpg")

	size, err := fw.Persist(img, path, 90)
	c.Assert(err, IsNil)
	info, err := os.Stat(path)
	c.Assert(err, IsNil)
	c.Assert(size, Equals, info.Size())

	f, _ := os.Open(path)
	defer f.Close()
	decoded, err := jpeg.Decode(f)
	c.Assert(err, IsNil)
	c.Assert(decoded.Bounds().Dx(), Equals, 32)
}

func (s *MySuite) TestPersistFailureLeavesNoFile(c *C) {
	fw, _ := imaging.NewFileWriter("png")
	path := filepath.Join(s.Dir, "broken.png")
	_, err := fw.Persist(nil, path, 90)
	c.Assert(err, NotNil)
	_, statErr := os.Stat(path)
	c.Assert(os.IsNotExist(statErr), Equals, true)
}

func (s *MySuite) TestPersistIntoMissingDirFails(c *C) {
	fw, _ := imaging.NewFileWriter("bmp")
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	_, err := fw.Persist(img, filepath.Join(s.Dir, "nope", "x.bmp"), 90)
	c.Assert(err, NotNil)
}

func (s *MySuite) TestEnsureDir(c *C) {
	dir := filepath.Join(s.Dir, "a", "b")
	c.Assert(imaging.EnsureDir(dir), IsNil)
	c.Assert(imaging.EnsureDir(dir), IsNil)

	file := filepath.Join(s.Dir, "file")
	c.Assert(os.WriteFile(file, []byte("x"), 0o600), IsNil)
	c.Assert(imaging.EnsureDir(file), ErrorMatches, ".*exists but is not a directory")
}
