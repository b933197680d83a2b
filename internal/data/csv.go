package data

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CSVOptions describes the layout of a labelled CSV file.
type CSVOptions struct {
	// Header skips the first record.
	Header bool
	// LabelColumn is the index of the integer label column.
	LabelColumn int
	// Scale multiplies every feature; 0 means 1.
	Scale float32
	// MaxSamples limits the number of rows read; 0 reads all.
	MaxSamples int
}

// LoadCSV reads a dataset with one sample per record.
//
// Format (Kaggle MNIST style, label first):
//
//	label,pixel0,pixel1,...
//	5,0,0,12,...
func LoadCSV(r io.Reader, opts CSVOptions) (*InMemory, error) {
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}

	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	var (
		features [][]float32
		labels   []int32
		row      int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(ErrMalformed, err.Error())
		}
		row++
		if opts.Header && row == 1 {
			continue
		}
		if opts.LabelColumn < 0 || opts.LabelColumn >= len(record) {
			return nil, errors.Wrapf(ErrMalformed, "row %d: label column %d out of %d", row, opts.LabelColumn, len(record))
		}

		label, err := strconv.ParseInt(strings.TrimSpace(record[opts.LabelColumn]), 10, 32)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "row %d: invalid label %q", row, record[opts.LabelColumn])
		}
		if label < 0 {
			return nil, errors.Wrapf(ErrMalformed, "row %d: negative label %d", row, label)
		}

		sample := make([]float32, 0, len(record)-1)
		for col, field := range record {
			if col == opts.LabelColumn {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformed, "row %d, column %d: invalid value %q", row, col, field)
			}
			sample = append(sample, float32(v)*scale)
		}

		features = append(features, sample)
		labels = append(labels, int32(label))
		if opts.MaxSamples > 0 && len(features) == opts.MaxSamples {
			break
		}
	}

	return NewInMemory(features, labels)
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path string, opts CSVOptions) (*InMemory, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open file")
	}
	defer file.Close()

	ds, err := LoadCSV(file, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return ds, nil
}
