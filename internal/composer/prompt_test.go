package composer

import (
	"strings"
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"student":      RoleStudent,
		"Teacher":      RoleTeacher,
		" researcher ": RoleResearcher,
		"general":      RoleGeneral,
		"":             RoleGeneral,
		"admin":        RoleGeneral,
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Errorf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInstructionDiffersByRole(t *testing.T) {
	seen := make(map[string]Role)
	for _, r := range []Role{RoleStudent, RoleTeacher, RoleResearcher, RoleGeneral} {
		ins := r.Instruction()
		if ins == "" {
			t.Errorf("role %q has no instruction", r)
		}
		if other, dup := seen[ins]; dup {
			t.Errorf("roles %q and %q share an instruction", r, other)
		}
		seen[ins] = r
	}
	if Role("unknown").Instruction() != RoleGeneral.Instruction() {
		t.Error("unknown role should fall back to the general instruction")
	}
}

func TestCompose_Layout(t *testing.T) {
	c := New("")
	p := c.Compose("What is the capital of France?", "  The capital of France is Paris.\n", RoleStudent)

	if p.System != DefaultSystemInstruction {
		t.Error("expected default system instruction")
	}

	ctxIdx := strings.Index(p.User, "DOCUMENT CONTEXT:\nThe capital of France is Paris.")
	qIdx := strings.Index(p.User, "USER QUESTION:\nWhat is the capital of France?")
	rIdx := strings.Index(p.User, RoleStudent.Instruction())
	if ctxIdx < 0 || qIdx < 0 || rIdx < 0 {
		t.Fatalf("prompt missing a section:\n%s", p.User)
	}
	if !(ctxIdx < qIdx && qIdx < rIdx) {
		t.Errorf("sections out of order: context=%d question=%d role=%d", ctxIdx, qIdx, rIdx)
	}
}

func TestCompose_CustomSystem(t *testing.T) {
	c := New("custom persona")
	if got := c.Compose("q", "c", RoleGeneral).System; got != "custom persona" {
		t.Errorf("System = %q, want custom persona", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("EstimateTokens(\"\") = %d, want 0", got)
	}
	if got := EstimateTokens("abcd"); got != 1 {
		t.Errorf("EstimateTokens(abcd) = %d, want 1", got)
	}
	if got := EstimateTokens("abcde"); got != 2 {
		t.Errorf("EstimateTokens(abcde) = %d, want 2", got)
	}
}
