package ir

import "testing"

func TestBlockSealInvariant(t *testing.T) {
	b := &Block{}
	b.Append(Command{Op: OpNop})
	if b.Sealed() {
		t.Fatal("freshly appended block should not be sealed")
	}
	b.Seal(Exit{Kind: ExitReturn})
	if !b.Sealed() {
		t.Fatal("expected block sealed after Seal")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic appending to a sealed block")
		}
	}()
	b.Append(Command{Op: OpNop})
}

func TestReachability(t *testing.T) {
	f := NewFunc("f")
	f.Blocks[f.Entry].Seal(Exit{Kind: ExitConditional, TrueTarget: f.NewBlock(), FalseTarget: f.NewBlock()})
	land := f.NewBlock()
	f.Blocks[1].Seal(Exit{Kind: ExitUnconditional, Target: land})
	f.Blocks[2].Seal(Exit{Kind: ExitUnconditional, Target: land})
	f.Blocks[land].Seal(Exit{Kind: ExitReturn})
	orphan := f.NewBlock()
	f.Blocks[orphan].Seal(Exit{Kind: ExitReturn})

	reach := f.Reachable()
	for i := 0; i < orphan; i++ {
		if !reach[i] {
			t.Errorf("block %d should be reachable", i)
		}
	}
	if reach[orphan] {
		t.Errorf("orphan block should not be reachable")
	}
}

func TestPredecessorsCoverPhi(t *testing.T) {
	f := NewFunc("f")
	b1 := f.NewBlock()
	b2 := f.NewBlock()
	land := f.NewBlock()
	f.Blocks[f.Entry].Seal(Exit{Kind: ExitConditional, TrueTarget: b1, FalseTarget: b2})
	f.Blocks[b1].Seal(Exit{Kind: ExitUnconditional, Target: land})
	f.Blocks[b2].Seal(Exit{Kind: ExitUnconditional, Target: land})

	preds := f.Predecessors(land)
	if len(preds) != 2 {
		t.Fatalf("expected 2 predecessors, got %v", preds)
	}
	phi := Command{Op: OpPhi, PhiIncoming: []PhiEdge{
		{Pred: b1, Value: ConstValue(1)},
		{Pred: b2, Value: ConstValue(2)},
	}}
	seen := map[int]bool{}
	for _, e := range phi.PhiIncoming {
		seen[e.Pred] = true
	}
	for _, p := range preds {
		if !seen[p] {
			t.Errorf("phi missing incoming edge for predecessor %d", p)
		}
	}
}
