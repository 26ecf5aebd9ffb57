package plugin

import "testing"

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpApplyEffect, "apply_effect"},
		{OpRemoveEffect, "remove_effect"},
		{OpUpdateEffect, "update_effect"},
		{OpHandleConflict, "handle_conflict"},
		{Op(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", int(tt.op), got, tt.want)
		}
	}
}

func TestOpValid(t *testing.T) {
	for _, op := range []Op{OpApplyEffect, OpRemoveEffect, OpUpdateEffect, OpHandleConflict} {
		if !op.Valid() {
			t.Errorf("%s.Valid() = false, want true", op)
		}
	}
	if Op(-1).Valid() {
		t.Error("Op(-1).Valid() = true, want false")
	}
	if Op(4).Valid() {
		t.Error("Op(4).Valid() = true, want false")
	}
}
