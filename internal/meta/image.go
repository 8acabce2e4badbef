package meta

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"dexjit/internal/bytecode"
)

// DefaultBaseAddress is where method code is laid out when an image does not
// say otherwise.
const DefaultBaseAddress uint64 = 0x10000000

// Image is a loaded set of classes plus the traces recorded against them.
type Image struct {
	Dex     *DexFile
	Classes []*Class
	Traces  []*Trace

	classes map[string]*Class
	methods map[string]*Method
}

// Class looks up a class by descriptor.
func (img *Image) Class(descriptor string) *Class {
	return img.classes[descriptor]
}

// Method looks up a method by "descriptor->name" reference.
func (img *Image) Method(ref string) *Method {
	return img.methods[ref]
}

// MethodRefs returns every method reference in the image, sorted.
func (img *Image) MethodRefs() []string {
	refs := make([]string, 0, len(img.methods))
	for ref := range img.methods {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Trace looks up a recorded trace by name.
func (img *Image) Trace(name string) *Trace {
	for _, t := range img.Traces {
		if t.Name == name {
			return t
		}
	}
	return nil
}

type imageFile struct {
	BaseAddress uint64      `toml:"base_address"`
	Resolved    []string    `toml:"resolved"`
	Classes     []classFile `toml:"class"`
	Traces      []traceFile `toml:"trace"`
}

type classFile struct {
	Descriptor string       `toml:"descriptor"`
	Super      string       `toml:"super"`
	VTable     []string     `toml:"vtable"`
	Methods    []methodFile `toml:"method"`
}

type methodFile struct {
	Name        string `toml:"name"`
	Code        string `toml:"code"`
	Native      bool   `toml:"native"`
	VTableIndex int    `toml:"vtable_index"`
	Addr        uint64 `toml:"addr"`
}

type traceFile struct {
	Name   string    `toml:"name"`
	Method string    `toml:"method"`
	Runs   []runFile `toml:"runs"`
}

type runFile struct {
	Start uint32 `toml:"start"`
	Count uint32 `toml:"count"`
}

// LoadImage reads an image description from a TOML file.
func LoadImage(path string) (*Image, error) {
	var f imageFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	img, err := buildImage(&f, md)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeImage reads an image description from r.
func DecodeImage(r io.Reader) (*Image, error) {
	var f imageFile
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return buildImage(&f, md)
}

func buildImage(f *imageFile, md toml.MetaData) (*Image, error) {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	img := &Image{
		Dex:     &DexFile{},
		classes: make(map[string]*Class, len(f.Classes)),
		methods: make(map[string]*Method),
	}
	addr := f.BaseAddress
	if !md.IsDefined("base_address") {
		addr = DefaultBaseAddress
	}

	var errs []error
	for i := range f.Classes {
		cf := &f.Classes[i]
		if strings.TrimSpace(cf.Descriptor) == "" {
			errs = append(errs, fmt.Errorf("class[%d]: missing descriptor", i))
			continue
		}
		if _, dup := img.classes[cf.Descriptor]; dup {
			errs = append(errs, fmt.Errorf("class %s: declared twice", cf.Descriptor))
			continue
		}
		c := &Class{Descriptor: cf.Descriptor, Dex: img.Dex}
		img.classes[c.Descriptor] = c
		img.Classes = append(img.Classes, c)

		for j := range cf.Methods {
			mf := &cf.Methods[j]
			m := &Method{
				Name:        mf.Name,
				Class:       c,
				Native:      mf.Native,
				VTableIndex: mf.VTableIndex,
			}
			if mf.Native && strings.TrimSpace(mf.Code) != "" {
				errs = append(errs, fmt.Errorf("method %s: native method with code", m.Ref()))
			}
			if !mf.Native {
				code, err := bytecode.ParseCode(mf.Code)
				if err != nil {
					errs = append(errs, fmt.Errorf("method %s: %w", m.Ref(), err))
				}
				m.Code = code
			}
			if mf.Addr != 0 {
				m.Addr = mf.Addr
			} else {
				m.Addr = addr
				// keep entry points word aligned
				addr += (uint64(len(m.Code))*2 + 3) &^ 3
				if len(m.Code) == 0 {
					addr += 4
				}
			}
			if _, dup := img.methods[m.Ref()]; dup {
				errs = append(errs, fmt.Errorf("method %s: declared twice", m.Ref()))
				continue
			}
			img.methods[m.Ref()] = m
			c.Methods = append(c.Methods, m)
		}
	}

	for i := range f.Classes {
		cf := &f.Classes[i]
		c := img.classes[cf.Descriptor]
		if c == nil {
			continue
		}
		if cf.Super != "" {
			super := img.classes[cf.Super]
			if super == nil {
				errs = append(errs, fmt.Errorf("class %s: unknown super class %s", c.Descriptor, cf.Super))
			}
			c.Super = super
		}
		for slot, ref := range cf.VTable {
			m := img.methods[ref]
			if m == nil {
				errs = append(errs, fmt.Errorf("class %s: vtable[%d] refers to unknown method %s", c.Descriptor, slot, ref))
			}
			c.VTable = append(c.VTable, m)
		}
	}

	for i, ref := range f.Resolved {
		m := img.methods[ref]
		if m == nil && ref != "" {
			errs = append(errs, fmt.Errorf("resolved[%d]: unknown method %s", i, ref))
		}
		img.Dex.ResolvedMethods = append(img.Dex.ResolvedMethods, m)
	}

	for i := range f.Traces {
		t, err := buildTrace(img, &f.Traces[i], i)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		img.Traces = append(img.Traces, t)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return img, nil
}

func buildTrace(img *Image, tf *traceFile, idx int) (*Trace, error) {
	name := tf.Name
	if name == "" {
		name = fmt.Sprintf("trace%d", idx)
	}
	m := img.methods[tf.Method]
	if m == nil {
		return nil, fmt.Errorf("trace %s: unknown method %q", name, tf.Method)
	}
	if m.Native {
		return nil, fmt.Errorf("trace %s: method %s is native", name, m.Ref())
	}
	if len(tf.Runs) == 0 {
		return nil, fmt.Errorf("trace %s: no runs", name)
	}
	t := &Trace{Name: name, Method: m}
	for i, r := range tf.Runs {
		if r.Count == 0 {
			return nil, fmt.Errorf("trace %s: run %d is empty", name, i)
		}
		if int(r.Start) >= len(m.Code) {
			return nil, fmt.Errorf("trace %s: run %d starts at %#x beyond code size %#x", name, i, r.Start, len(m.Code))
		}
		t.Runs = append(t.Runs, TraceRun{
			StartOffset: r.Start,
			NumInsts:    r.Count,
			RunEnd:      i == len(tf.Runs)-1,
		})
	}
	return t, nil
}
