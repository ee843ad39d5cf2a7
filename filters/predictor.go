package filters

import (
	"errors"
	"fmt"

	"github.com/paradisepdf/pagekit/ir/raw"
)

type predictorParams struct {
	predictor int
	colors    int
	bpc       int
	columns   int
}

func readPredictorParams(params *raw.DictObj) predictorParams {
	p := predictorParams{predictor: 1, colors: 1, bpc: 8, columns: 1}
	if params == nil {
		return p
	}
	if v, ok := params.Int("Predictor"); ok {
		p.predictor = int(v)
	}
	if v, ok := params.Int("Colors"); ok && v > 0 {
		p.colors = int(v)
	}
	if v, ok := params.Int("BitsPerComponent"); ok && v > 0 {
		p.bpc = int(v)
	}
	if v, ok := params.Int("Columns"); ok && v > 0 {
		p.columns = int(v)
	}
	return p
}

// applyPredictor undoes TIFF (2) and PNG (>=10) predictors.
func applyPredictor(data []byte, params *raw.DictObj) ([]byte, error) {
	p := readPredictorParams(params)
	switch {
	case p.predictor <= 1:
		return data, nil
	case p.predictor == 2:
		return tiffPredictor(data, p)
	case p.predictor >= 10:
		return pngPredictor(data, p)
	default:
		return nil, fmt.Errorf("unsupported predictor %d", p.predictor)
	}
}

func pngPredictor(data []byte, p predictorParams) ([]byte, error) {
	bpp := (p.colors*p.bpc + 7) / 8
	rowLen := (p.colors*p.bpc*p.columns + 7) / 8
	stride := rowLen + 1
	if len(data)%stride != 0 {
		// Truncated trailing rows are dropped.
		data = data[:len(data)-len(data)%stride]
	}
	out := make([]byte, 0, len(data)/stride*rowLen)
	prev := make([]byte, rowLen)
	for off := 0; off+stride <= len(data); off += stride {
		ft := data[off]
		row := append([]byte(nil), data[off+1:off+stride]...)
		for i := range row {
			var left, up, upLeft byte
			if i >= bpp {
				left = row[i-bpp]
				upLeft = prev[i-bpp]
			}
			up = prev[i]
			switch ft {
			case 0:
			case 1:
				row[i] += left
			case 2:
				row[i] += up
			case 3:
				row[i] += byte((int(left) + int(up)) / 2)
			case 4:
				row[i] += paeth(left, up, upLeft)
			default:
				return nil, fmt.Errorf("invalid png filter type %d", ft)
			}
		}
		out = append(out, row...)
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func tiffPredictor(data []byte, p predictorParams) ([]byte, error) {
	if p.bpc != 8 {
		return nil, errors.New("tiff predictor supports 8 bits per component only")
	}
	rowLen := p.colors * p.columns
	out := append([]byte(nil), data...)
	for off := 0; off+rowLen <= len(out); off += rowLen {
		for i := p.colors; i < rowLen; i++ {
			out[off+i] += out[off+i-p.colors]
		}
	}
	return out, nil
}
