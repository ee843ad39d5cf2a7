package filters

import (
	"context"

	"github.com/paradisepdf/pagekit/ir/raw"
)

// ExtractFilters returns the filter chain of a stream dictionary. params
// is either empty or as long as names, with nil where a filter takes no
// parameters.
func ExtractFilters(dict *raw.DictObj) (names []string, params []*raw.DictObj) {
	filter, _ := dict.Get("Filter")
	switch f := filter.(type) {
	case raw.NameObj:
		names = []string{f.Value()}
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.NameObj); ok {
				names = append(names, n.Value())
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	parms, _ := dict.Get("DecodeParms")
	switch p := parms.(type) {
	case *raw.DictObj:
		params = []*raw.DictObj{p}
	case *raw.ArrayObj:
		for _, item := range p.Items {
			d, _ := item.(*raw.DictObj)
			params = append(params, d)
		}
	default:
		return names, nil
	}
	for len(params) < len(names) {
		params = append(params, nil)
	}
	return names, params[:len(names)]
}

// DecodeStream runs the payload of s through its own filter chain. Streams
// without /Filter come back unchanged.
func DecodeStream(ctx context.Context, p *Pipeline, s *raw.StreamObj) ([]byte, error) {
	names, params := ExtractFilters(s.Dict)
	if names == nil {
		return s.Data, nil
	}
	return p.Decode(ctx, s.Data, names, params)
}
