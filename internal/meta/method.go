// Package meta models the read-only runtime metadata the compiler consults:
// methods, classes, virtual dispatch tables and the resolved-method table.
package meta

import "dexjit/internal/bytecode"

// Method is a loaded method. Native methods carry no code.
type Method struct {
	Name        string
	Class       *Class
	Code        []uint16
	Native      bool
	VTableIndex int
	// Addr is the address of the method's first code unit; invokes that
	// resolve to this method redirect here.
	Addr uint64
}

// Signature is the class descriptor immediately followed by the method
// name, e.g. "Lcom/example/Foo;run".
func (m *Method) Signature() string {
	if m == nil {
		return ""
	}
	if m.Class == nil {
		return m.Name
	}
	return m.Class.Descriptor + m.Name
}

// Ref is the "descriptor->name" form used by image files.
func (m *Method) Ref() string {
	if m == nil {
		return ""
	}
	if m.Class == nil {
		return m.Name
	}
	return m.Class.Descriptor + "->" + m.Name
}

// CodeView returns a bounds-checked view of the method body.
func (m *Method) CodeView() (bytecode.CodeView, error) {
	return bytecode.NewCodeView(m.Code)
}

// Class is a loaded class.
type Class struct {
	Descriptor string
	Super      *Class
	VTable     []*Method
	Dex        *DexFile
	Methods    []*Method
}

// VirtualMethod returns the vtable entry at slot, or nil when the slot is
// out of range.
func (c *Class) VirtualMethod(slot int) *Method {
	if c == nil || slot < 0 || slot >= len(c.VTable) {
		return nil
	}
	return c.VTable[slot]
}

// DexFile holds the resolved-method table shared by the classes loaded from
// one container.
type DexFile struct {
	ResolvedMethods []*Method
}

// ResolvedMethod returns the method resolved for a call-site index, or nil
// when it has not been resolved.
func (d *DexFile) ResolvedMethod(idx uint32) *Method {
	if d == nil || uint64(idx) >= uint64(len(d.ResolvedMethods)) {
		return nil
	}
	return d.ResolvedMethods[idx]
}
