package splitbill

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kiwari-pos/restaurant/internal/pos"
	"github.com/shopspring/decimal"
)

func TestPlan_PartialAndFullSelections(t *testing.T) {
	partial := newLine("Es Teh", "3", "5000", true)
	full := newLine("Nasi Bakar", "1", "25000", false)
	untouched := newLine("Kerupuk", "2", "2000", true)
	o := newOrder(partial, full, untouched)
	s := NewSession(o, uuid.New(), false)

	_ = s.Toggle(o, partial.ID)
	_ = s.Toggle(o, partial.ID)
	_ = s.Toggle(o, full.ID)

	before := map[uuid.UUID]decimal.Decimal{}
	for _, l := range o.Lines {
		before[l.ID] = l.Quantity
	}

	plan, err := s.Plan(o)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	if len(plan.NewLines) != 2 {
		t.Fatalf("new lines: got %d, want 2", len(plan.NewLines))
	}
	if !plan.MovedQuantity().Equal(dec("3")) {
		t.Errorf("moved: got %s, want 3", plan.MovedQuantity())
	}
	if len(plan.Updates) != 1 || plan.Updates[0].LineID != partial.ID || !plan.Updates[0].Quantity.Equal(dec("1")) {
		t.Errorf("updates: got %+v, want Es Teh reduced to 1", plan.Updates)
	}
	if len(plan.Deletes) != 1 || plan.Deletes[0] != full.ID {
		t.Errorf("deletes: got %v, want Nasi Bakar", plan.Deletes)
	}
	for _, nl := range plan.NewLines {
		if nl.ID == partial.ID || nl.ID == full.ID {
			t.Error("new line must get a fresh ID")
		}
	}

	plan.ApplyToOriginal(o)

	// original_after = original_before - selected, and full moves disappear.
	if o.Line(full.ID) != nil {
		t.Error("fully moved line still on the original")
	}
	if got := o.Line(partial.ID).Quantity; !got.Equal(before[partial.ID].Sub(dec("2"))) {
		t.Errorf("partial line after: got %s, want 1", got)
	}
	if got := o.Line(untouched.ID).Quantity; !got.Equal(before[untouched.ID]) {
		t.Errorf("untouched line changed: got %s", got)
	}
}

func TestPlan_ConservesQuantity(t *testing.T) {
	lines := []*pos.Line{
		newLine("A", "4", "1000", true),
		newLine("B", "1.5", "2000", false),
		newLine("C", "2", "3000", true),
	}
	o := newOrder(lines...)
	s := NewSession(o, uuid.New(), false)

	taps := map[int]int{0: 3, 1: 1, 2: 2}
	for idx, n := range taps {
		for i := 0; i < n; i++ {
			_ = s.Toggle(o, lines[idx].ID)
		}
	}

	totalBefore := decimal.Zero
	selected := decimal.Zero
	for _, l := range o.Lines {
		totalBefore = totalBefore.Add(l.Quantity)
		selected = selected.Add(s.Selected(l.ID))
	}

	plan, err := s.Plan(o)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.MovedQuantity().Equal(selected) {
		t.Errorf("moved %s, selected %s", plan.MovedQuantity(), selected)
	}

	plan.ApplyToOriginal(o)
	totalAfter := decimal.Zero
	for _, l := range o.Lines {
		totalAfter = totalAfter.Add(l.Quantity)
	}
	if !totalAfter.Add(plan.MovedQuantity()).Equal(totalBefore) {
		t.Errorf("quantity not conserved: before %s, after %s + moved %s", totalBefore, totalAfter, plan.MovedQuantity())
	}
}

func TestPlan_RemapsComboParent(t *testing.T) {
	parent := newLine("Paket Hemat", "1", "30000", false)
	child := newLine("Nasi", "1", "0", false)
	child.ComboParentID = &parent.ID
	o := newOrder(parent, child)
	s := NewSession(o, uuid.New(), false)

	_ = s.Toggle(o, parent.ID)

	plan, err := s.Plan(o)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.NewLines) != 2 {
		t.Fatalf("new lines: got %d, want 2", len(plan.NewLines))
	}
	newParent, newChild := plan.NewLines[0], plan.NewLines[1]
	if newChild.ComboParentID == nil || *newChild.ComboParentID != newParent.ID {
		t.Errorf("child should point at the new parent line")
	}
	if *child.ComboParentID != parent.ID {
		t.Error("original child must keep its parent")
	}
}

func TestPlan_CapsStaleSelection(t *testing.T) {
	l := newLine("Es Teh", "3", "5000", true)
	o := newOrder(l)
	s := NewSession(o, uuid.New(), false)
	_ = s.Toggle(o, l.ID)
	_ = s.Toggle(o, l.ID)

	l.Quantity = dec("1")

	plan, err := s.Plan(o)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.NewLines[0].Quantity.Equal(dec("1")) {
		t.Errorf("moved: got %s, want capped 1", plan.NewLines[0].Quantity)
	}
	if len(plan.Deletes) != 1 {
		t.Errorf("capped full selection should delete the line")
	}
}

func TestPlan_Errors(t *testing.T) {
	l := newLine("Es Teh", "1", "5000", true)
	o := newOrder(l)

	empty := NewSession(o, uuid.New(), false)
	if _, err := empty.Plan(o); !errors.Is(err, ErrNothingSelected) {
		t.Errorf("empty: got %v, want ErrNothingSelected", err)
	}

	disallowed := NewSession(o, uuid.New(), true)
	_ = disallowed.Toggle(o, l.ID)
	if _, err := disallowed.Plan(o); !errors.Is(err, ErrSplitDisallowed) {
		t.Errorf("disallow: got %v, want ErrSplitDisallowed", err)
	}

	if _, err := empty.Plan(newOrder()); !errors.Is(err, ErrOrderMismatch) {
		t.Errorf("mismatch: got %v, want ErrOrderMismatch", err)
	}
}
