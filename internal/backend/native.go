package backend

import (
	"context"
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"

	"dexjit/internal/mir"
	"dexjit/internal/trace"
)

// DefaultMaxTranslationBytes bounds a single translation.
const DefaultMaxTranslationBytes = 4096

// Native is the reference backend.
type Native struct {
	cache    *CodeCache
	maxBytes int
}

// NewNative returns a backend installing into cache. maxBytes <= 0 selects
// DefaultMaxTranslationBytes.
func NewNative(cache *CodeCache, maxBytes int) *Native {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxTranslationBytes
	}
	return &Native{cache: cache, maxBytes: maxBytes}
}

// Cache returns the code cache translations are installed into.
func (n *Native) Cache() *CodeCache { return n.cache }

// Compile lowers and assembles u.
func (n *Native) Compile(ctx context.Context, u *mir.Unit) (Translation, error) {
	if err := ctx.Err(); err != nil {
		return Translation{}, err
	}
	span := trace.Begin(u.Tracer, trace.ScopePass, "lower", u.Span)
	p, err := Lower(u)
	span.End("")
	if err != nil {
		return Translation{}, err
	}

	span = trace.Begin(u.Tracer, trace.ScopePass, "assemble", u.Span)
	t, err := n.Assemble(p)
	if err != nil {
		span.End(err.Error())
		return Translation{}, err
	}
	span.WithExtra("bytes", fmt.Sprint(t.Size)).End("")
	return t, nil
}

// Assemble encodes p behind a header and installs it.
func (n *Native) Assemble(p *Program) (Translation, error) {
	size := HeaderSize + 4*len(p.Words)
	if size > n.maxBytes {
		return Translation{}, fmt.Errorf("%w: %d bytes, limit %d", ErrCodeTooLarge, size, n.maxBytes)
	}
	size32, err := safecast.Conv[uint32](size)
	if err != nil {
		return Translation{}, err
	}

	code := make([]byte, size)
	// header: body length in words, then instruction count
	binary.LittleEndian.PutUint32(code[0:], uint32(len(p.Words)))
	binary.LittleEndian.PutUint32(code[4:], uint32(p.Insts))
	for i, w := range p.Words {
		binary.LittleEndian.PutUint32(code[HeaderSize+4*i:], w)
	}

	base, err := n.cache.Install(code)
	if err != nil {
		return Translation{}, err
	}
	return Translation{
		BaseAddr:   base,
		HeaderSize: HeaderSize,
		Size:       size32,
		Insts:      p.Insts,
		Cells:      p.Cells,
	}, nil
}
