// Package irtext loads programs from their textual representation.
//
// A program file is a YAML document listing classes:
//
//	classes:
//	  - name: Point
//	    super: java.lang.Object
//	    flags: [final]
//	    fields:
//	      - {name: x, type: I}
//	      - {name: count, type: I, flags: [static, volatile]}
//	    methods:
//	      - name: getX
//	        desc: ()I
//	        code: |
//	          v0 = param
//	          v1 = iget v0 Point.x
//	          return v1
//
// Method bodies use one instruction per line. A line of the form
// "label:" starts a new basic block; branch targets are written as
// "@label". A block that does not end in a terminator falls through to
// the block that follows it, or to the block named by an explicit
// "fallthrough @label" line. Conditional branches list their taken
// target and, optionally, their fallthrough target. Lines starting
// with '#' are comments.
//
// Classes that are referenced but not declared are treated as external
// to the program.
package irtext

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"honnef.co/go/cse/ir"

	"gopkg.in/yaml.v3"
)

// Error describes a problem with a program file.
type Error struct {
	File string
	Line int
	Msg  string
}

func (err Error) Error() string {
	if err.Line == 0 {
		return fmt.Sprintf("%s: %s", err.File, err.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", err.File, err.Line, err.Msg)
}

type programFile struct {
	Classes []classDecl `yaml:"classes"`
}

type classDecl struct {
	Name       string       `yaml:"name"`
	Super      string       `yaml:"super"`
	Interfaces []string     `yaml:"interfaces"`
	Flags      []string     `yaml:"flags"`
	Fields     []fieldDecl  `yaml:"fields"`
	Methods    []methodDecl `yaml:"methods"`

	line int
}

type fieldDecl struct {
	Name  string   `yaml:"name"`
	Type  string   `yaml:"type"`
	Flags []string `yaml:"flags"`

	line int
}

type methodDecl struct {
	Name  string    `yaml:"name"`
	Desc  string    `yaml:"desc"`
	Flags []string  `yaml:"flags"`
	Regs  int       `yaml:"regs"`
	Code  yaml.Node `yaml:"code"`

	line int
}

func (d *classDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain classDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.line = n.Line
	return nil
}

func (d *fieldDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain fieldDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.line = n.Line
	return nil
}

func (d *methodDecl) UnmarshalYAML(n *yaml.Node) error {
	type plain methodDecl
	if err := n.Decode((*plain)(d)); err != nil {
		return err
	}
	d.line = n.Line
	return nil
}

// A Source is the name and content of a program file.
type Source struct {
	Name string
	Data []byte
}

// Load reads and parses the named files as a single program.
func Load(paths ...string) (*ir.Program, error) {
	srcs := make([]Source, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, Source{path, data})
	}
	return Parse(srcs...)
}

// Parse parses program files into a single, sealed program.
func Parse(srcs ...Source) (*ir.Program, error) {
	l := &loader{prog: ir.NewProgram()}
	var files []parsedFile
	for _, src := range srcs {
		var pf programFile
		dec := yaml.NewDecoder(bytes.NewReader(src.Data))
		dec.KnownFields(true)
		if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
			return nil, Error{File: src.Name, Msg: err.Error()}
		}
		files = append(files, parsedFile{src.Name, pf})
	}

	for _, f := range files {
		if err := l.declare(f); err != nil {
			return nil, err
		}
	}
	for _, f := range files {
		l.link(f)
	}
	for _, f := range files {
		if err := l.checkCycles(f); err != nil {
			return nil, err
		}
	}
	for _, f := range files {
		if err := l.bodies(f); err != nil {
			return nil, err
		}
	}
	l.prog.Seal()
	return l.prog, nil
}

// ParseString is a convenience wrapper around Parse for a single file.
func ParseString(name, src string) (*ir.Program, error) {
	return Parse(Source{name, []byte(src)})
}

type parsedFile struct {
	name string
	programFile
}

type loader struct {
	prog     *ir.Program
	declared map[string]bool
}

func (l *loader) declare(f parsedFile) error {
	if l.declared == nil {
		l.declared = map[string]bool{}
	}
	for _, cd := range f.Classes {
		if cd.Name == "" {
			return Error{f.name, cd.line, "class without a name"}
		}
		if l.declared[cd.Name] {
			return Error{f.name, cd.line, fmt.Sprintf("class %s declared more than once", cd.Name)}
		}
		l.declared[cd.Name] = true
		c := l.prog.NewClass(cd.Name)
		for _, flag := range cd.Flags {
			switch flag {
			case "interface":
				c.Interface = true
				c.Abstract = true
			case "abstract":
				c.Abstract = true
			case "final":
				c.Final = true
			case "external":
				c.External = true
			default:
				return Error{f.name, cd.line, fmt.Sprintf("unknown class flag %q", flag)}
			}
		}

		for _, fd := range cd.Fields {
			if fd.Name == "" || fd.Type == "" {
				return Error{f.name, fd.line, "field needs a name and a type"}
			}
			for _, other := range c.Fields {
				if other.Name == fd.Name {
					return Error{f.name, fd.line, fmt.Sprintf("field %s.%s declared more than once", c.Name, fd.Name)}
				}
			}
			fld := c.AddField(fd.Name, fd.Type)
			for _, flag := range fd.Flags {
				switch flag {
				case "static":
					fld.Static = true
				case "volatile":
					fld.Volatile = true
				case "final":
					fld.Final = true
				default:
					return Error{f.name, fd.line, fmt.Sprintf("unknown field flag %q", flag)}
				}
			}
		}

		for _, md := range cd.Methods {
			if md.Name == "" || md.Desc == "" {
				return Error{f.name, md.line, "method needs a name and a descriptor"}
			}
			if !validDesc(md.Desc) {
				return Error{f.name, md.line, fmt.Sprintf("malformed method descriptor %q", md.Desc)}
			}
			if c.DeclaredMethod(md.Name, md.Desc) != nil {
				return Error{f.name, md.line, fmt.Sprintf("method %s.%s%s declared more than once", c.Name, md.Name, md.Desc)}
			}
			m := c.AddMethod(md.Name, md.Desc)
			for _, flag := range md.Flags {
				switch flag {
				case "static":
					m.Static = true
				case "private":
					m.Private = true
				case "abstract":
					m.Abstract = true
				case "native":
					m.Native = true
				default:
					return Error{f.name, md.line, fmt.Sprintf("unknown method flag %q", flag)}
				}
			}
		}
	}
	return nil
}

func (l *loader) link(f parsedFile) {
	for _, cd := range f.Classes {
		c := l.prog.Class(cd.Name)
		if cd.Super != "" {
			c.Super = l.prog.ExternalClass(cd.Super)
		}
		for _, name := range cd.Interfaces {
			c.Interfaces = append(c.Interfaces, l.prog.ExternalClass(name))
		}
	}
}

// checkCycles rejects inheritance cycles, which would make method
// lookup diverge.
func (l *loader) checkCycles(f parsedFile) error {
	for _, cd := range f.Classes {
		c := l.prog.Class(cd.Name)
		seen := map[*ir.Class]bool{}
		for s := c; s != nil; s = s.Super {
			if seen[s] {
				return Error{f.name, cd.line, fmt.Sprintf("class %s inherits from itself", c.Name)}
			}
			seen[s] = true
		}
	}
	return nil
}

func (l *loader) bodies(f parsedFile) error {
	for _, cd := range f.Classes {
		c := l.prog.Class(cd.Name)
		for _, md := range cd.Methods {
			m := c.DeclaredMethod(md.Name, md.Desc)
			if md.Code.Kind == 0 || md.Code.Value == "" {
				continue
			}
			if m.Abstract || m.Native {
				return Error{f.name, md.line, fmt.Sprintf("%s has a body but is abstract or native", m)}
			}
			line := md.Code.Line
			if md.Code.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
				line++
			}
			p := &codeParser{
				prog:  l.prog,
				file:  f.name,
				line:  line,
				code:  ir.NewCode(m, 0),
				label: map[string]*ir.BasicBlock{},
			}
			if err := p.parse(md.Code.Value); err != nil {
				m.Code = nil
				return err
			}
			if md.Regs > p.code.NumRegs {
				p.code.NumRegs = md.Regs
			}
			if err := ir.Validate(p.code); err != nil {
				return Error{f.name, md.line, fmt.Sprintf("%s: %s", m, err)}
			}
		}
	}
	return nil
}

func validDesc(desc string) bool {
	if len(desc) < 3 || desc[0] != '(' {
		return false
	}
	for i := 1; i < len(desc); i++ {
		if desc[i] == ')' {
			return i+1 < len(desc)
		}
	}
	return false
}
