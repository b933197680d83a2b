package data

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// IDXImages holds the raw pixels of an IDX image file.
type IDXImages struct {
	Rows   int
	Cols   int
	Pixels [][]byte // one slice of Rows*Cols bytes per image
}

// ReadIDXImages reads an image file in IDX format.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255)
func ReadIDXImages(r io.Reader) (*IDXImages, error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(ErrMalformed, "failed to read image header")
	}
	if header[0] != idxImagesMagic {
		return nil, errors.Wrapf(ErrMalformed, "invalid magic number: got %d, want %d", header[0], idxImagesMagic)
	}

	images := &IDXImages{
		Rows:   int(header[2]),
		Cols:   int(header[3]),
		Pixels: make([][]byte, header[1]),
	}
	size := images.Rows * images.Cols
	for i := range images.Pixels {
		images.Pixels[i] = make([]byte, size)
		if _, err := io.ReadFull(r, images.Pixels[i]); err != nil {
			return nil, errors.Wrapf(ErrMalformed, "failed to read image %d", i)
		}
	}
	return images, nil
}

// ReadIDXLabels reads a label file in IDX format.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes
func ReadIDXLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(ErrMalformed, "failed to read label header")
	}
	if header[0] != idxLabelsMagic {
		return nil, errors.Wrapf(ErrMalformed, "invalid magic number: got %d, want %d", header[0], idxLabelsMagic)
	}

	labels := make([]byte, header[1])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, errors.Wrap(ErrMalformed, "failed to read labels")
	}
	return labels, nil
}

// NewIDXDataset pairs images with labels. Pixels are scaled to [0, 1] and
// every example keeps its [rows, cols] shape.
func NewIDXDataset(images *IDXImages, labels []byte, maxSamples int) (*InMemory, error) {
	if len(images.Pixels) != len(labels) {
		return nil, errors.Errorf("data: image count (%d) != label count (%d)", len(images.Pixels), len(labels))
	}

	n := len(labels)
	if maxSamples > 0 && n > maxSamples {
		n = maxSamples
	}

	examples := make([]Example, n)
	for i := range examples {
		features := make([]float32, len(images.Pixels[i]))
		for j, p := range images.Pixels[i] {
			features[j] = float32(p) / 255.0
		}
		examples[i] = Example{
			Features: features,
			Shape:    []int{images.Rows, images.Cols},
			Label:    int32(labels[i]),
		}
	}
	return FromExamples(examples)
}

// LoadIDX reads an IDX image file and its label file.
func LoadIDX(imagesPath, labelsPath string, maxSamples int) (*InMemory, error) {
	images, err := readIDXFile(imagesPath, ReadIDXImages)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load images")
	}
	labels, err := readIDXFile(labelsPath, ReadIDXLabels)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load labels")
	}
	return NewIDXDataset(images, labels, maxSamples)
}

func readIDXFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	file, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer file.Close()

	v, err := read(file)
	if err != nil {
		return zero, errors.Wrap(err, path)
	}
	return v, nil
}
