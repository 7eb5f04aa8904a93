// Package samples turns small PNG pictures of digits into MNIST-style
// input vectors.
//
// A sample is decoded, reduced to one grayscale channel, scaled
// bilinearly to 28x28 and inverted so that dark ink on a light background
// becomes bright strokes on black, like the MNIST training images.
package samples

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/rubenfonseca/fastimage"
	"golang.org/x/image/draw"
)

// Size is the edge length of a preprocessed sample.
const Size = 28

// PerCategory is the number of images in each sample category.
const PerCategory = 10

// Categories lists the sample sets shipped next to the models, in the
// order they are reported.
var Categories = []string{"Handwritten", "Computer", "MNIST", "Font"}

// ErrNotPNG is returned for inputs that do not sniff as PNG images.
var ErrNotPNG = errors.New("samples: input is not a PNG image")

// Sample is one preprocessed image.
type Sample struct {
	Index   int
	Vector  []float32   // Size*Size values in [0, 1], ink is 1
	Resized *image.Gray // the scaled image before inversion
}

// Path returns the location of sample i of category in dir.
func Path(dir, category string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%d.png", category, i))
}

// Decode preprocesses an encoded PNG image.
func Decode(data []byte) (*Sample, error) {
	typ, size, err := fastimage.DetectImageTypeFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPNG, err)
	}
	if typ != fastimage.PNG || size == nil {
		return nil, ErrNotPNG
	}
	if size.Width == 0 || size.Height == 0 {
		return nil, fmt.Errorf("samples: empty %dx%d image", size.Width, size.Height)
	}

	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("samples: decode png: %w", err)
	}
	return FromImage(src), nil
}

// FromImage preprocesses an already decoded image.
func FromImage(src image.Image) *Sample {
	b := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)

	resized := image.NewGray(image.Rect(0, 0, Size, Size))
	draw.BiLinear.Scale(resized, resized.Bounds(), gray, gray.Bounds(), draw.Src, nil)

	vec := make([]float32, Size*Size)
	for y := 0; y < Size; y++ {
		for x := 0; x < Size; x++ {
			vec[y*Size+x] = 1 - float32(resized.GrayAt(x, y).Y)/255
		}
	}
	return &Sample{Vector: vec, Resized: resized}
}

// Load reads and preprocesses the PNG file at path.
func Load(path string) (*Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadCategory loads the PerCategory samples of category from dir.
func LoadCategory(dir, category string) ([]*Sample, error) {
	out := make([]*Sample, 0, PerCategory)
	for i := 0; i < PerCategory; i++ {
		s, err := Load(Path(dir, category, i))
		if err != nil {
			return nil, err
		}
		s.Index = i
		out = append(out, s)
	}
	return out, nil
}

// DumpJSON writes the sample vector to <dir>/<category>-<i>.json as
// {"results": [...]}.
func DumpJSON(dir, category string, s *Sample) error {
	data, err := json.Marshal(struct {
		Results []float32 `json:"results"`
	}{s.Vector})
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%d.json", category, s.Index))
	return os.WriteFile(path, data, 0o644)
}

// DumpPNG writes the scaled image to <dir>/komprimiert-<i>.png.
func DumpPNG(dir string, s *Sample) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.Resized); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("komprimiert-%d.png", s.Index))
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
