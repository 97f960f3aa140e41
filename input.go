package archiver

import (
	"fmt"
	"io"
	"slices"

	"github.com/meigma/archiver/internal/archivetype"
	"github.com/meigma/archiver/internal/normalize"
)

// Input is one or more items to archive. Build it with the From*
// constructors, combine several with Batch, or infer it from a dynamic
// value with InputOf. The zero Input holds no items and is rejected by
// Archive.
type Input struct {
	items []normalize.Item
}

// Len returns the number of top-level items.
func (in Input) Len() int {
	return len(in.items)
}

// FromPath archives the file or directory at path under its base name.
func FromPath(path string) Input {
	return Input{items: []normalize.Item{{Kind: normalize.KindPath, Data: path}}}
}

// FromPaths archives each path as FromPath would.
func FromPaths(paths ...string) Input {
	items := make([]normalize.Item, 0, len(paths))
	for _, p := range paths {
		items = append(items, normalize.Item{Kind: normalize.KindPath, Data: p})
	}
	return Input{items: items}
}

// FromBytes archives b as a single positionally named entry.
func FromBytes(b []byte) Input {
	return Input{items: []normalize.Item{{Kind: normalize.KindBytes, Data: b}}}
}

// FromReader archives everything read from r as a single positionally
// named entry. r is read at most once and closed if it is an io.Closer.
func FromReader(r io.Reader) Input {
	return Input{items: []normalize.Item{{Kind: normalize.KindReader, Data: r}}}
}

// FromText archives s as a single positionally named entry.
func FromText(s string) Input {
	return Input{items: []normalize.Item{{Kind: normalize.KindText, Data: s}}}
}

// FromDescriptor archives one explicitly described item.
func FromDescriptor(d Descriptor) Input {
	return FromDescriptors(d)
}

// FromDescriptors archives each described item in order.
func FromDescriptors(ds ...Descriptor) Input {
	items := make([]normalize.Item, 0, len(ds))
	for _, d := range ds {
		items = append(items, normalize.Item{
			Kind: normalize.KindDescriptor,
			Name: d.Name,
			Type: d.Type,
			Data: d.Data,
		})
	}
	return Input{items: items}
}

// Batch concatenates inputs. Positional names are assigned across the
// whole batch.
func Batch(inputs ...Input) Input {
	var items []normalize.Item
	for _, in := range inputs {
		items = append(items, in.items...)
	}
	return Input{items: items}
}

// InputOf infers an Input from a dynamic value:
//
//   - string: a file or directory path
//   - []string: several paths
//   - []byte: a buffer
//   - [][]byte: several buffers
//   - io.Reader: a stream
//   - Descriptor, *Descriptor, []Descriptor: described items
//   - map[string]any with "name", "type" and "data" keys: a described item
//   - Input: itself
//   - []any: each element inferred in turn and batched
//
// Anything else fails with ErrInvalidInput.
func InputOf(v any) (Input, error) {
	switch v := v.(type) {
	case nil:
		return Input{}, fmt.Errorf("%w: nil input", ErrInvalidInput)
	case Input:
		return v, nil
	case string:
		return FromPath(v), nil
	case []string:
		return FromPaths(v...), nil
	case []byte:
		return FromBytes(v), nil
	case [][]byte:
		inputs := make([]Input, 0, len(v))
		for _, b := range v {
			inputs = append(inputs, FromBytes(b))
		}
		return Batch(inputs...), nil
	case io.Reader:
		return FromReader(v), nil
	case Descriptor:
		return FromDescriptor(v), nil
	case *Descriptor:
		if v == nil {
			return Input{}, fmt.Errorf("%w: nil descriptor", ErrInvalidInput)
		}
		return FromDescriptor(*v), nil
	case []Descriptor:
		return FromDescriptors(v...), nil
	case map[string]any:
		d, err := descriptorFromMap(v)
		if err != nil {
			return Input{}, err
		}
		return FromDescriptor(d), nil
	case []any:
		inputs := make([]Input, 0, len(v))
		for i, elem := range v {
			in, err := InputOf(elem)
			if err != nil {
				return Input{}, fmt.Errorf("element %d: %w", i, err)
			}
			inputs = append(inputs, in)
		}
		return Batch(inputs...), nil
	default:
		return Input{}, fmt.Errorf("%w: unsupported input %T", ErrInvalidInput, v)
	}
}

// descriptorFromMap reads a {name, type, data} object.
func descriptorFromMap(m map[string]any) (Descriptor, error) {
	var d Descriptor
	for key, val := range m {
		switch key {
		case "name":
			name, ok := val.(string)
			if !ok {
				return Descriptor{}, fmt.Errorf("%w: descriptor name must be a string, got %T", ErrInvalidInput, val)
			}
			d.Name = name
		case "type":
			switch t := val.(type) {
			case string:
				typ, err := archivetype.ParseType(t)
				if err != nil {
					return Descriptor{}, err
				}
				d.Type = typ
			case EntryType:
				d.Type = t
			default:
				return Descriptor{}, fmt.Errorf("%w: descriptor type must be a string, got %T", ErrInvalidInput, val)
			}
		case "data":
			d.Data = val
		default:
			return Descriptor{}, fmt.Errorf("%w: unknown descriptor field %q", ErrInvalidInput, key)
		}
	}
	return d, nil
}

// normalizeItems returns a copy of the items so normalization never
// mutates the caller's Input.
func (in Input) normalizeItems() []normalize.Item {
	return slices.Clone(in.items)
}
