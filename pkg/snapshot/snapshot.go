// Package snapshot serializes compiled code graphs to a compact binary
// image and rebuilds them in another engine context. Images are CBOR
// encoded in canonical form so identical code always produces identical
// bytes.
package snapshot

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"picojs/pkg/ecma"
	"picojs/pkg/mem"
)

// Version identifies the image layout. Readers reject images written by an
// incompatible writer.
const Version = 1

var (
	ErrBadImage           = errors.New("snapshot: malformed image")
	ErrVersionMismatch    = errors.New("snapshot: incompatible image version")
	ErrUnsupportedLiteral = errors.New("snapshot: literal cannot be serialized")
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("snapshot: cbor encoder options: %v", err))
	}
	encMode = em
}

const (
	literalSimple = iota
	literalInteger
	literalNumber
	literalString
	literalBlock
)

type literalImage struct {
	Kind  uint8   `cbor:"1,keyasint"`
	Raw   uint32  `cbor:"2,keyasint,omitempty"`
	Num   float64 `cbor:"3,keyasint,omitempty"`
	Str   string  `cbor:"4,keyasint,omitempty"`
	Block uint32  `cbor:"5,keyasint,omitempty"`
}

type blockImage struct {
	Flags           uint16         `cbor:"1,keyasint"`
	ConstLiteralEnd uint16         `cbor:"2,keyasint"`
	Instructions    []byte         `cbor:"3,keyasint"`
	Literals        []literalImage `cbor:"4,keyasint"`
}

type image struct {
	Version uint32       `cbor:"1,keyasint"`
	Blocks  []blockImage `cbor:"2,keyasint"` // index 0 is the root
}

// Save serializes the code graph rooted at root.
func Save(ctx *ecma.Context, root mem.Ref) ([]byte, error) {
	indices := map[mem.Ref]uint32{root: 0}
	order := []mem.Ref{root}
	for scan := 0; scan < len(order); scan++ {
		c := ctx.Code(order[scan])
		lits := c.Literals()
		for i := c.ConstLiteralEnd(); i < len(lits); i++ {
			child := lits[i].CodeRef()
			if _, seen := indices[child]; !seen {
				indices[child] = uint32(len(order))
				order = append(order, child)
			}
		}
	}

	img := image{Version: Version, Blocks: make([]blockImage, len(order))}
	for n, ref := range order {
		c := ctx.Code(ref)
		b := blockImage{
			Flags:           uint16(c.Flags()),
			ConstLiteralEnd: uint16(c.ConstLiteralEnd()),
			Instructions:    c.Instructions(),
		}
		for i, v := range c.Literals() {
			if i >= c.ConstLiteralEnd() {
				b.Literals = append(b.Literals, literalImage{Kind: literalBlock, Block: indices[v.CodeRef()]})
				continue
			}
			li, err := saveLiteral(ctx, v)
			if err != nil {
				return nil, fmt.Errorf("block %d literal %d: %w", n, i, err)
			}
			b.Literals = append(b.Literals, li)
		}
		img.Blocks[n] = b
	}
	return encMode.Marshal(&img)
}

func saveLiteral(ctx *ecma.Context, v ecma.Value) (literalImage, error) {
	switch {
	case v.IsSimple():
		return literalImage{Kind: literalSimple, Raw: uint32(v)}, nil
	case v.IsInteger():
		return literalImage{Kind: literalInteger, Raw: uint32(v.AsInteger())}, nil
	case v.IsNumber():
		return literalImage{Kind: literalNumber, Num: ctx.NumberOf(v)}, nil
	case v.IsString():
		return literalImage{Kind: literalString, Str: ctx.StringOf(v)}, nil
	default:
		return literalImage{}, ErrUnsupportedLiteral
	}
}

// Load rebuilds the code graph of an image inside ctx and returns the root
// block, owned by the caller.
func Load(ctx *ecma.Context, data []byte) (mem.Ref, error) {
	var img image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return mem.Null, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	if img.Version != Version {
		return mem.Null, fmt.Errorf("%w: image version %d, reader version %d",
			ErrVersionMismatch, img.Version, Version)
	}
	if len(img.Blocks) == 0 {
		return mem.Null, fmt.Errorf("%w: no blocks", ErrBadImage)
	}
	// Validate before allocating anything: a rejected image must leave the
	// heap untouched, and a half-built graph has no safe teardown order.
	if err := validate(&img); err != nil {
		return mem.Null, err
	}

	// Blocks are created first so forward and self references resolve,
	// then the literal tables are filled in.
	refs := make([]mem.Ref, len(img.Blocks))
	for n, b := range img.Blocks {
		refs[n] = ctx.NewCode(ecma.CodeFlags(b.Flags), b.Instructions,
			make([]ecma.Value, len(b.Literals)), int(b.ConstLiteralEnd))
	}
	for n, b := range img.Blocks {
		lits := ctx.Code(refs[n]).Literals()
		for i, li := range b.Literals {
			lits[i] = loadLiteral(ctx, li, refs, refs[n])
		}
	}
	// Creation left every block with one reference; for non-root blocks
	// ownership now rests with their parents.
	for _, r := range refs[1:] {
		ctx.DerefCode(r)
	}
	return refs[0], nil
}

// validate checks every block header and literal against the image's own
// block table. After it passes, loadLiteral cannot fail.
func validate(img *image) error {
	for n, b := range img.Blocks {
		if int(b.ConstLiteralEnd) > len(b.Literals) {
			return fmt.Errorf("%w: block %d constant window out of range", ErrBadImage, n)
		}
		for i, li := range b.Literals {
			if i >= int(b.ConstLiteralEnd) {
				if li.Kind != literalBlock {
					return fmt.Errorf("%w: block %d literal %d: expected a block reference (kind %d)",
						ErrBadImage, n, i, li.Kind)
				}
				if int(li.Block) >= len(img.Blocks) {
					return fmt.Errorf("%w: block %d literal %d: block reference %d out of range",
						ErrBadImage, n, i, li.Block)
				}
				continue
			}
			if li.Kind >= literalBlock {
				return fmt.Errorf("block %d literal %d: %w (kind %d)",
					n, i, ErrUnsupportedLiteral, li.Kind)
			}
		}
	}
	return nil
}

func loadLiteral(ctx *ecma.Context, li literalImage, refs []mem.Ref, self mem.Ref) ecma.Value {
	switch li.Kind {
	case literalSimple:
		return ecma.Value(li.Raw)
	case literalInteger:
		return ecma.IntegerValue(int32(li.Raw))
	case literalNumber:
		return ctx.NumberValue(li.Num)
	case literalString:
		return ctx.NewStringValue(li.Str)
	default: // literalBlock, range-checked by validate
		child := refs[li.Block]
		if child != self {
			ctx.RefCode(child)
		}
		return ecma.CodeValue(child)
	}
}
