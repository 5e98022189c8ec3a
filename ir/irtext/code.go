package irtext

import (
	"fmt"
	"strconv"
	"strings"

	"honnef.co/go/cse/ir"
)

type codeParser struct {
	prog *ir.Program
	file string
	line int // line of the first line of code

	code  *ir.Code
	label map[string]*ir.BasicBlock
	cur   *ir.BasicBlock
	// explicit successors of each block, by block index
	targets map[int]pendingTargets
	params  int
	maxReg  int
}

type pendingTargets struct {
	labels []string
	line   int
}

func (p *codeParser) errorf(line int, format string, args ...any) error {
	return Error{File: p.file, Line: p.line + line, Msg: fmt.Sprintf(format, args...)}
}

func (p *codeParser) parse(src string) error {
	p.targets = map[int]pendingTargets{}
	p.maxReg = -1
	lines := strings.Split(src, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		if name, ok := strings.CutSuffix(line, ":"); ok && !strings.ContainsAny(name, " \t") {
			if err := p.startBlock(i, name); err != nil {
				return err
			}
			continue
		}
		toks, err := tokenize(line)
		if err != nil {
			return p.errorf(i, "%s", err)
		}
		if p.cur == nil || p.ended(p.cur) {
			p.cur = p.code.NewBlock("")
		}
		if toks[0] == "fallthrough" {
			if len(toks) != 2 || !strings.HasPrefix(toks[1], "@") {
				return p.errorf(i, "fallthrough needs a single target")
			}
			p.targets[p.cur.Index] = pendingTargets{[]string{toks[1][1:]}, i}
			continue
		}
		insn, targets, err := p.instruction(toks)
		if err != nil {
			return p.errorf(i, "%s", err)
		}
		p.cur.Emit(insn)
		if len(targets) > 0 {
			p.targets[p.cur.Index] = pendingTargets{targets, i}
		}
	}
	if len(p.code.Blocks) == 0 {
		return p.errorf(0, "%s: empty body", p.code.Method)
	}
	p.code.NumRegs = p.maxReg + 1
	return p.link(len(lines))
}

// ended reports whether no further instructions may be added to b.
func (p *codeParser) ended(b *ir.BasicBlock) bool {
	if b.Control() != nil {
		return true
	}
	_, ok := p.targets[b.Index]
	return ok
}

func (p *codeParser) startBlock(line int, name string) error {
	if _, ok := p.label[name]; ok {
		return p.errorf(line, "label %s defined more than once", name)
	}
	b := p.code.NewBlock(name)
	p.label[name] = b
	p.cur = b
	return nil
}

// link adds the edges of the CFG once all labels are known.
func (p *codeParser) link(nlines int) error {
	blocks := p.code.Blocks
	next := func(b *ir.BasicBlock) *ir.BasicBlock {
		if b.Index+1 < len(blocks) {
			return blocks[b.Index+1]
		}
		return nil
	}
	for _, b := range blocks {
		pt := p.targets[b.Index]
		var succs []*ir.BasicBlock
		for _, l := range pt.labels {
			t, ok := p.label[l]
			if !ok {
				return p.errorf(pt.line, "undefined label %s", l)
			}
			succs = append(succs, t)
		}
		ctrl := b.Control()
		switch {
		case ctrl == nil, ctrl.Op.IsIf():
			want := 1
			if ctrl != nil {
				want = 2
			}
			if len(succs) < want {
				n := next(b)
				if n == nil {
					return p.errorf(nlines, "control falls off the end of %s", p.code.Method)
				}
				succs = append(succs, n)
			}
			if len(succs) != want {
				return p.errorf(pt.line, "wrong number of branch targets")
			}
		case ctrl.Op == ir.OpGoto:
			if len(succs) != 1 {
				return p.errorf(pt.line, "goto needs a single target")
			}
		default:
			if len(succs) != 0 {
				return p.errorf(pt.line, "%s has no branch targets", ctrl.Op)
			}
		}
		for _, s := range succs {
			ir.AddEdge(b, s)
		}
	}
	return nil
}

func (p *codeParser) instruction(toks []string) (*ir.Instruction, []string, error) {
	insn := &ir.Instruction{Dest: ir.NoReg}
	if len(toks) >= 3 && toks[1] == "=" {
		r, err := p.reg(toks[0])
		if err != nil {
			return nil, nil, err
		}
		insn.Dest = r
		toks = toks[2:]
	}
	op, ok := ir.LookupOpcode(toks[0])
	if !ok {
		return nil, nil, fmt.Errorf("unknown opcode %q", toks[0])
	}
	insn.Op = op
	args := toks[1:]

	switch {
	case op.IsInvoke():
		// The result of a call is optional.
	case op.HasDest():
		if insn.Dest == ir.NoReg {
			return nil, nil, fmt.Errorf("%s needs a destination", op)
		}
	default:
		if insn.Dest != ir.NoReg {
			return nil, nil, fmt.Errorf("%s does not produce a value", op)
		}
	}

	// Split off branch targets.
	var targets []string
	for len(args) > 0 && strings.HasPrefix(args[len(args)-1], "@") {
		targets = append([]string{args[len(args)-1][1:]}, targets...)
		args = args[:len(args)-1]
	}
	if len(targets) > 0 && !op.IsIf() && op != ir.OpGoto {
		return nil, nil, fmt.Errorf("%s cannot have branch targets", op)
	}

	var err error
	switch {
	case op == ir.OpParam:
		err = nargs(args, 0)
		insn.Literal = int64(p.params)
		p.params++
	case op == ir.OpConst:
		if err = nargs(args, 1); err == nil {
			insn.Literal, err = strconv.ParseInt(args[0], 0, 64)
		}
	case op == ir.OpConstString, op == ir.OpTrap:
		if err = nargs(args, 1); err == nil {
			insn.Str, err = strconv.Unquote(args[0])
		}
	case op == ir.OpNewInstance:
		if err = nargs(args, 1); err == nil {
			insn.Class = p.prog.ExternalClass(args[0])
		}
	case op == ir.OpNewArray:
		if err = nargs(args, 2); err == nil {
			insn.Type = args[1]
			insn.Srcs, err = p.regs(args[:1])
		}
	case op == ir.OpCheckCast, op == ir.OpInstanceOf:
		if err = nargs(args, 2); err == nil {
			insn.Class = p.prog.ExternalClass(args[1])
			insn.Srcs, err = p.regs(args[:1])
		}
	case op.IsFieldGet(), op.IsFieldPut():
		if err = nargs(args, op.NumSrcs()+1); err == nil {
			n := len(args) - 1
			if insn.Field, err = p.field(args[n]); err == nil {
				insn.Srcs, err = p.regs(args[:n])
			}
		}
	case op.IsInvoke():
		if len(args) == 0 {
			return nil, nil, fmt.Errorf("%s needs a method reference", op)
		}
		if insn.Method, err = p.method(args[0]); err == nil {
			insn.Srcs, err = p.regs(args[1:])
		}
		if err == nil && insn.Dest != ir.NoReg && !insn.Method.ReturnsValue() {
			err = fmt.Errorf("%s does not return a value", insn.Method)
		}
	default:
		if err = nargs(args, op.NumSrcs()); err == nil {
			insn.Srcs, err = p.regs(args)
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return insn, targets, nil
}

func nargs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("got %d operands, want %d", len(args), n)
	}
	return nil
}

func (p *codeParser) reg(s string) (ir.Reg, error) {
	if len(s) < 2 || s[0] != 'v' {
		return 0, fmt.Errorf("invalid register %q", s)
	}
	n, err := strconv.ParseUint(s[1:], 10, 31)
	if err != nil {
		return 0, fmt.Errorf("invalid register %q", s)
	}
	if int(n) > p.maxReg {
		p.maxReg = int(n)
	}
	return ir.Reg(n), nil
}

func (p *codeParser) regs(args []string) ([]ir.Reg, error) {
	out := make([]ir.Reg, 0, len(args))
	for _, a := range args {
		r, err := p.reg(a)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// field resolves a reference of the form Class.name.
func (p *codeParser) field(s string) (*ir.Field, error) {
	i := strings.LastIndexByte(s, '.')
	if i <= 0 {
		return nil, fmt.Errorf("invalid field reference %q", s)
	}
	c := p.prog.Class(s[:i])
	if c == nil {
		return nil, fmt.Errorf("unknown class %s", s[:i])
	}
	f := ir.LookupField(c, s[i+1:])
	if f == nil {
		return nil, fmt.Errorf("unknown field %s", s)
	}
	return f, nil
}

// method parses a reference of the form Class.name(desc). The method
// need not exist.
func (p *codeParser) method(s string) (*ir.MethodRef, error) {
	paren := strings.IndexByte(s, '(')
	if paren < 0 {
		return nil, fmt.Errorf("invalid method reference %q", s)
	}
	dot := strings.LastIndexByte(s[:paren], '.')
	if dot <= 0 || dot == paren-1 || !validDesc(s[paren:]) {
		return nil, fmt.Errorf("invalid method reference %q", s)
	}
	c := p.prog.ExternalClass(s[:dot])
	return p.prog.MethodRef(c, s[dot+1:paren], s[paren:]), nil
}

// tokenize splits a line at white space, keeping quoted strings intact.
func tokenize(line string) ([]string, error) {
	var toks []string
	for i := 0; i < len(line); {
		switch c := line[i]; {
		case c == ' ' || c == '\t' || c == ',':
			i++
		case c == '"':
			j := i + 1
			for ; j < len(line) && line[j] != '"'; j++ {
				if line[j] == '\\' {
					j++
				}
			}
			if j >= len(line) {
				return nil, fmt.Errorf("unterminated string")
			}
			toks = append(toks, line[i:j+1])
			i = j + 1
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' && line[j] != ',' {
				j++
			}
			toks = append(toks, line[i:j])
			i = j
		}
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty instruction")
	}
	return toks, nil
}
