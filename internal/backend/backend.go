// Package backend checks that a finished internal/ir.Func satisfies
// the back-end contract spec.md §6 hands off to "external code
// generator, not specified here": every block reachable from entry,
// every block terminated, every φ's incoming set exactly covering its
// predecessors. Rather than inventing a shadow contract type, the
// check is done by actually building the equivalent skeleton in
// github.com/llir/llvm/ir — blocks and a terminator per block, in a
// void function with no params —
// the one real object-code-capable library in the pack, and leaning
// on its own invariants (a *ir.Block's Term cannot be left nil once
// the module is assembled) to help prove the shape out.
package backend

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"

	iir "icarusc/internal/ir"
	"icarusc/internal/types"
)

// Violation is one back-end-contract failure, naming the offending
// block by index within the source Func.
type Violation struct {
	Block   int
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("block %d: %s", v.Block, v.Message)
}

// Check walks f and reports every back-end-contract violation found.
// A nil slice means f conforms.
func Check(f *iir.Func, arch types.Architecture) []Violation {
	var violations []Violation

	reachable := f.Reachable()
	for i := range f.Blocks {
		if !reachable[i] {
			violations = append(violations, Violation{i, "not reachable from entry"})
		}
	}

	for i, blk := range f.Blocks {
		if !blk.Sealed() {
			violations = append(violations, Violation{i, "has no terminator"})
		}
		for _, cmd := range blk.Commands {
			if cmd.Op != iir.OpPhi {
				continue
			}
			preds := f.Predecessors(i)
			if len(cmd.PhiIncoming) != len(preds) {
				violations = append(violations, Violation{i,
					fmt.Sprintf("phi has %d incoming edge(s), want %d (one per predecessor)",
						len(cmd.PhiIncoming), len(preds))})
				continue
			}
			covered := make(map[int]bool, len(preds))
			for _, p := range preds {
				covered[p] = true
			}
			for _, e := range cmd.PhiIncoming {
				if !covered[e.Pred] {
					violations = append(violations, Violation{i,
						fmt.Sprintf("phi has an incoming edge from block %d, which is not a predecessor", e.Pred)})
				}
			}
		}
	}

	if len(violations) == 0 {
		if _, err := Lower(f); err != nil {
			violations = append(violations, Violation{f.Entry, err.Error()})
		}
	}

	return violations
}

// Lower builds the llir/llvm skeleton for f: one *ir.Block per source
// block, with a terminator matching the source Exit's Kind, and
// nothing else (no instructions are translated — the back-end
// contract is about block/terminator/φ shape, not instruction
// semantics, which is the external code generator's job per spec.md
// §1/§6). A non-nil error means f could not be lowered to a
// conforming skeleton; Check surfaces it as a Violation.
func Lower(f *iir.Func) (*ir.Func, error) {
	lf := ir.NewFunc(f.Name, lltypes.Void)

	blocks := make([]*ir.Block, len(f.Blocks))
	for i := range f.Blocks {
		blocks[i] = lf.NewBlock(fmt.Sprintf("b%d", i))
	}

	for i, src := range f.Blocks {
		lb := blocks[i]
		switch src.Exit.Kind {
		case iir.ExitUnconditional:
			if src.Exit.Target < 0 || src.Exit.Target >= len(blocks) {
				return nil, fmt.Errorf("block %d: unconditional target %d out of range", i, src.Exit.Target)
			}
			lb.NewBr(blocks[src.Exit.Target])

		case iir.ExitConditional:
			if src.Exit.TrueTarget < 0 || src.Exit.TrueTarget >= len(blocks) ||
				src.Exit.FalseTarget < 0 || src.Exit.FalseTarget >= len(blocks) {
				return nil, fmt.Errorf("block %d: conditional target out of range", i)
			}
			cond := constant.NewInt(lltypes.I1, 0)
			lb.NewCondBr(cond, blocks[src.Exit.TrueTarget], blocks[src.Exit.FalseTarget])

		case iir.ExitReturn:
			lb.NewRet(nil)

		case iir.ExitBlockSeq:
			if len(src.Exit.Table) == 0 {
				return nil, fmt.Errorf("block %d: block-seq exit with an empty jump table", i)
			}
			var cases []*ir.Case
			for n, t := range src.Exit.Table {
				if t < 0 || t >= len(blocks) {
					return nil, fmt.Errorf("block %d: block-seq entry %d targets out-of-range block %d", i, n, t)
				}
				cases = append(cases, ir.NewCase(constant.NewInt(lltypes.I64, int64(n)), blocks[t]))
			}
			lb.NewSwitch(constant.NewInt(lltypes.I64, 0), blocks[src.Exit.Table[0]], cases...)

		default:
			return nil, fmt.Errorf("block %d: unsealed or unknown exit kind %v", i, src.Exit.Kind)
		}
	}

	for i, lb := range blocks {
		if lb.Term == nil {
			return nil, fmt.Errorf("block %d: llir/llvm skeleton has no terminator", i)
		}
	}

	return lf, nil
}
