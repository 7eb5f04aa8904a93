package mnist

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// IDX magic numbers.
const (
	imageMagic = 0x00000803 // 2051
	labelMagic = 0x00000801 // 2049
)

// ErrInvalidIDX is returned for files that are not IDX image or label files.
var ErrInvalidIDX = errors.New("mnist: invalid IDX file")

// Images holds raw IDX image data.
type Images struct {
	Count, Rows, Cols int
	Pixels            []byte // Count*Rows*Cols bytes, row major
}

// openIDX opens path and transparently gunzips it when it starts with
// the gzip magic bytes.
func openIDX(path string) (io.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	br := bufio.NewReader(f)
	head, err := br.Peek(2)
	if err == nil && head[0] == 0x1f && head[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("gzip %s: %w", path, err)
		}
		return gz, f, nil
	}
	return br, f, nil
}

// ReadImages reads an IDX image file.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes (28)
//	number of cols: 4 bytes (28)
//	pixel data: unsigned bytes (0-255)
func ReadImages(path string) (*Images, error) {
	r, c, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", path, err)
	}
	if header[0] != imageMagic {
		return nil, fmt.Errorf("%w: %s: magic %d, want %d", ErrInvalidIDX, path, header[0], imageMagic)
	}

	img := &Images{Count: int(header[1]), Rows: int(header[2]), Cols: int(header[3])}
	img.Pixels = make([]byte, img.Count*img.Rows*img.Cols)
	if _, err := io.ReadFull(r, img.Pixels); err != nil {
		return nil, fmt.Errorf("%s: failed to read pixels: %w", path, err)
	}
	return img, nil
}

// ReadLabels reads an IDX label file.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func ReadLabels(path string) ([]byte, error) {
	r, c, err := openIDX(path)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", path, err)
	}
	if header[0] != labelMagic {
		return nil, fmt.Errorf("%w: %s: magic %d, want %d", ErrInvalidIDX, path, header[0], labelMagic)
	}

	labels := make([]byte, header[1])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("%s: failed to read labels: %w", path, err)
	}
	for i, l := range labels {
		if l >= NumClasses {
			return nil, fmt.Errorf("%w: %s: label %d at index %d", ErrInvalidIDX, path, l, i)
		}
	}
	return labels, nil
}

// WriteImages writes pixels as an uncompressed IDX image file.
func WriteImages(w io.Writer, img *Images) error {
	header := [4]uint32{imageMagic, uint32(img.Count), uint32(img.Rows), uint32(img.Cols)}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	_, err := w.Write(img.Pixels)
	return err
}

// WriteLabels writes labels as an uncompressed IDX label file.
func WriteLabels(w io.Writer, labels []byte) error {
	header := [2]uint32{labelMagic, uint32(len(labels))}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	_, err := w.Write(labels)
	return err
}
