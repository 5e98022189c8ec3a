package ir

import (
	"fmt"
	"sort"
	"strings"
)

// A Program is a closed set of classes. Classes that are referenced but
// whose definitions are not available are present with External set.
type Program struct {
	Classes []*Class

	classes map[string]*Class
	refs    map[MethodRef]*MethodRef
	fields  []*Field
	methods []*Method
	sealed  bool
}

// A Class is a class or interface.
type Class struct {
	Name       string
	Super      *Class
	Interfaces []*Class
	Interface  bool
	Abstract   bool
	Final      bool
	// External classes are declared outside the program. Nothing is known
	// about their members beyond what is explicitly listed.
	External bool
	Fields   []*Field
	Methods  []*Method

	prog *Program
}

// A Field is an instance or static field of a class.
type Field struct {
	Class    *Class
	Name     string
	Type     string
	Static   bool
	Volatile bool
	Final    bool

	// ID is dense and stable: fields are numbered in order of their
	// qualified names when the program is sealed.
	ID int
}

// A Method is a method declaration, with or without a body.
type Method struct {
	Class    *Class
	Name     string
	Desc     string
	Static   bool
	Private  bool
	Abstract bool
	Native   bool
	Code     *Code

	// ID is dense and stable: methods are numbered in order of their
	// qualified names when the program is sealed.
	ID int
}

// A MethodRef is a symbolic reference to a method, as it appears at a
// call site. Refs are interned per program and may be compared by
// identity.
type MethodRef struct {
	Class *Class
	Name  string
	Desc  string
}

func NewProgram() *Program {
	return &Program{
		classes: map[string]*Class{},
		refs:    map[MethodRef]*MethodRef{},
	}
}

// Class returns the class with the given name, or nil.
func (prog *Program) Class(name string) *Class {
	return prog.classes[name]
}

// NewClass declares a class. If a placeholder for the class exists, it
// is turned into a real declaration.
func (prog *Program) NewClass(name string) *Class {
	prog.mustNotBeSealed()
	if c, ok := prog.classes[name]; ok {
		c.External = false
		return c
	}
	c := &Class{Name: name, prog: prog}
	prog.classes[name] = c
	prog.Classes = append(prog.Classes, c)
	return c
}

// ExternalClass returns the class with the given name, creating an
// external placeholder if it has not been declared.
func (prog *Program) ExternalClass(name string) *Class {
	if c, ok := prog.classes[name]; ok {
		return c
	}
	prog.mustNotBeSealed()
	c := &Class{Name: name, External: true, prog: prog}
	prog.classes[name] = c
	prog.Classes = append(prog.Classes, c)
	return c
}

// MethodRef returns the interned reference to the method name with
// descriptor desc in class c.
func (prog *Program) MethodRef(c *Class, name, desc string) *MethodRef {
	key := MethodRef{Class: c, Name: name, Desc: desc}
	if ref, ok := prog.refs[key]; ok {
		return ref
	}
	ref := &key
	prog.refs[key] = ref
	return ref
}

func (prog *Program) mustNotBeSealed() {
	if prog.sealed {
		panic("internal error: program modified after being sealed")
	}
}

// Seal assigns stable IDs to fields and methods. Code may still be
// attached and modified afterwards, but no new members may be declared.
func (prog *Program) Seal() {
	if prog.sealed {
		return
	}
	prog.sealed = true
	sort.SliceStable(prog.Classes, func(i, j int) bool {
		return prog.Classes[i].Name < prog.Classes[j].Name
	})
	for _, c := range prog.Classes {
		prog.fields = append(prog.fields, c.Fields...)
		prog.methods = append(prog.methods, c.Methods...)
	}
	sort.SliceStable(prog.fields, func(i, j int) bool {
		return prog.fields[i].String() < prog.fields[j].String()
	})
	sort.SliceStable(prog.methods, func(i, j int) bool {
		return prog.methods[i].String() < prog.methods[j].String()
	})
	for i, f := range prog.fields {
		f.ID = i
	}
	for i, m := range prog.methods {
		m.ID = i
	}
}

// Fields returns all fields of the program, indexed by ID.
func (prog *Program) Fields() []*Field {
	prog.mustBeSealed()
	return prog.fields
}

// Methods returns all methods of the program, indexed by ID.
func (prog *Program) Methods() []*Method {
	prog.mustBeSealed()
	return prog.methods
}

func (prog *Program) mustBeSealed() {
	if !prog.sealed {
		panic("internal error: program used before being sealed")
	}
}

// Resolve returns the method that a call site with opcode op and
// reference ref invokes when the receiver has the static type of the
// reference, or nil if no such method is known.
func (prog *Program) Resolve(op Opcode, ref *MethodRef) *Method {
	if ref == nil || ref.Class == nil {
		return nil
	}
	switch op {
	case OpInvokeStatic, OpInvokeDirect, OpInvokeSuper, OpInvokeVirtual:
		if m := LookupMethod(ref.Class, ref.Name, ref.Desc); m != nil {
			return m
		}
		return lookupInterfaceMethod(ref.Class, ref.Name, ref.Desc, map[*Class]bool{})
	case OpInvokeInterface:
		return lookupInterfaceMethod(ref.Class, ref.Name, ref.Desc, map[*Class]bool{})
	default:
		panic(fmt.Sprintf("internal error: cannot resolve method for %s", op))
	}
}

// LookupMethod finds the method with the given name and descriptor that
// an instance of c inherits, walking the superclass chain.
func LookupMethod(c *Class, name, desc string) *Method {
	for ; c != nil; c = c.Super {
		if m := c.DeclaredMethod(name, desc); m != nil {
			return m
		}
	}
	return nil
}

func lookupInterfaceMethod(c *Class, name, desc string, seen map[*Class]bool) *Method {
	if c == nil || seen[c] {
		return nil
	}
	seen[c] = true
	if m := c.DeclaredMethod(name, desc); m != nil {
		return m
	}
	for _, iface := range c.Interfaces {
		if m := lookupInterfaceMethod(iface, name, desc, seen); m != nil {
			return m
		}
	}
	return lookupInterfaceMethod(c.Super, name, desc, seen)
}

// LookupField finds the field with the given name accessible through c,
// walking the superclass chain.
func LookupField(c *Class, name string) *Field {
	for ; c != nil; c = c.Super {
		for _, f := range c.Fields {
			if f.Name == name {
				return f
			}
		}
	}
	return nil
}

// DeclaredMethod returns the method declared directly in c, or nil.
func (c *Class) DeclaredMethod(name, desc string) *Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == desc {
			return m
		}
	}
	return nil
}

// AddField declares a field in c.
func (c *Class) AddField(name, typ string) *Field {
	c.prog.mustNotBeSealed()
	f := &Field{Class: c, Name: name, Type: typ}
	c.Fields = append(c.Fields, f)
	return f
}

// AddMethod declares a method in c.
func (c *Class) AddMethod(name, desc string) *Method {
	c.prog.mustNotBeSealed()
	m := &Method{Class: c, Name: name, Desc: desc}
	c.Methods = append(c.Methods, m)
	return m
}

// IsSubclassOf reports whether c is d or inherits from it, through
// superclasses or interfaces.
func (c *Class) IsSubclassOf(d *Class) bool {
	if c == nil {
		return false
	}
	if c == d {
		return true
	}
	for _, iface := range c.Interfaces {
		if iface.IsSubclassOf(d) {
			return true
		}
	}
	return c.Super.IsSubclassOf(d)
}

func (c *Class) Program() *Program { return c.prog }
func (c *Class) String() string    { return c.Name }

func (f *Field) String() string { return f.Class.Name + "." + f.Name }

func (m *Method) String() string { return m.Class.Name + "." + m.Name + m.Desc }

// HasBody reports whether the method's code is available.
func (m *Method) HasBody() bool { return m.Code != nil }

// IsConstructor reports whether m is an instance or class initializer.
func (m *Method) IsConstructor() bool {
	return m.Name == "<init>" || m.Name == "<clinit>"
}

// IsVirtual reports whether calls to m are dispatched on the receiver.
func (m *Method) IsVirtual() bool {
	return !m.Static && !m.Private && !m.IsConstructor()
}

// ReturnsValue reports whether the method's descriptor declares a
// non-void result.
func (m *Method) ReturnsValue() bool { return returnsValue(m.Desc) }

func (ref *MethodRef) String() string {
	return ref.Class.Name + "." + ref.Name + ref.Desc
}

func (ref *MethodRef) ReturnsValue() bool { return returnsValue(ref.Desc) }

func returnsValue(desc string) bool {
	i := strings.LastIndexByte(desc, ')')
	return i >= 0 && desc[i+1:] != "V"
}

// NumParams returns the number of parameters in a method descriptor,
// not counting the receiver.
func NumParams(desc string) int {
	if len(desc) == 0 || desc[0] != '(' {
		return 0
	}
	n := 0
	for i := 1; i < len(desc) && desc[i] != ')'; i++ {
		for i < len(desc) && desc[i] == '[' {
			i++
		}
		if i < len(desc) && desc[i] == 'L' {
			for i < len(desc) && desc[i] != ';' {
				i++
			}
		}
		n++
	}
	return n
}
