// Package ir defines a register-based intermediate representation of
// the methods of a class-based program.
//
// A Program holds classes, their fields and their methods. A method with
// a body has a Code: a control flow graph of BasicBlocks, each a list of
// Instructions that read and write numbered registers. Blocks end in a
// control instruction, or fall through to their only successor. The
// successors of a conditional branch are the taken target, followed by
// the fallthrough.
//
// Programs must be sealed with Program.Seal before their code is
// analyzed. Sealing assigns dense IDs to fields and methods, which
// analyses use to index their results.
//
// Instructions print in a line-based syntax, for example
//
//	v2 = iget v0 Point.x
//	iput v1 v0 Point.y
//	v3 = invoke-virtual Shape.area()D v0
//	if-eqz v3 @done
//
// which is the syntax read by the irtext package.
package ir
