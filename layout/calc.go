package layout

import (
	"fmt"
	"sync"

	"go.bytecodealliance.org/wit"
)

// Info is the placement of a type in wasm32 memory. Offsets is set for
// records only and is keyed by field name.
type Info struct {
	Offsets map[string]uint32
	Size    uint32
	Align   uint32
}

// Calculator lays out the WIT types that describe foreign structs, using
// canonical ABI rules for wasm32. For scalars, fixed arrays (tuples of one
// element type) and records this is exactly the wasm32 C layout.
//
// Results for type definitions are memoized. A Calculator is safe for
// concurrent use.
type Calculator struct {
	cache map[*wit.TypeDef]Info
	mu    sync.Mutex
}

func NewCalculator() *Calculator {
	return &Calculator{cache: make(map[*wit.TypeDef]Info)}
}

// Calculate returns the layout of t. Types without a fixed-size flat
// representation (strings, lists, variants, resources) are rejected.
func (c *Calculator) Calculate(t wit.Type) (Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calculate(t)
}

func (c *Calculator) calculate(t wit.Type) (Info, error) {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return scalar(1), nil
	case wit.U16, wit.S16:
		return scalar(2), nil
	case wit.U32, wit.S32, wit.F32, wit.Char:
		return scalar(4), nil
	case wit.U64, wit.S64, wit.F64:
		return scalar(8), nil
	case *wit.TypeDef:
		if info, ok := c.cache[typ]; ok {
			return info, nil
		}
		info, err := c.typeDef(typ)
		if err != nil {
			return Info{}, err
		}
		c.cache[typ] = info
		return info, nil
	default:
		return Info{}, fmt.Errorf("layout: unsupported type %T", t)
	}
}

func scalar(n uint32) Info {
	return Info{Size: n, Align: n}
}

func (c *Calculator) typeDef(t *wit.TypeDef) (Info, error) {
	switch kind := t.Kind.(type) {
	case *wit.Record:
		types := make([]wit.Type, len(kind.Fields))
		names := make([]string, len(kind.Fields))
		for i, f := range kind.Fields {
			types[i], names[i] = f.Type, f.Name
		}
		return c.sequence(types, names)
	case *wit.Tuple:
		return c.sequence(kind.Types, nil)
	case wit.Type:
		return c.calculate(kind)
	default:
		return Info{}, fmt.Errorf("layout: unsupported type kind %T", t.Kind)
	}
}

// sequence places members one after another, each at its own alignment,
// and pads the total to the largest alignment. names, when given, become
// the Offsets keys.
func (c *Calculator) sequence(types []wit.Type, names []string) (Info, error) {
	info := Info{Align: 1}
	if names != nil {
		info.Offsets = make(map[string]uint32, len(names))
	}

	var end uint32
	for i, t := range types {
		m, err := c.calculate(t)
		if err != nil {
			if names != nil {
				return Info{}, fmt.Errorf("field %q: %w", names[i], err)
			}
			return Info{}, err
		}
		off := AlignTo(end, m.Align)
		if names != nil {
			info.Offsets[names[i]] = off
		}
		end = off + m.Size
		info.Align = max(info.Align, m.Align)
	}
	info.Size = AlignTo(end, info.Align)
	return info, nil
}

// AlignTo rounds offset up to a multiple of align, a power of two.
func AlignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
