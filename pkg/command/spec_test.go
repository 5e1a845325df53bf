package command

import "testing"

func specCommand(t *testing.T, spec string, tags []string) *Command {
	t.Helper()
	m := New()
	cmd, err := m.Create("probe", spec, tags, 0, MaxArguments-1)
	if err != nil {
		t.Fatalf("Create(%q) failed: %v", spec, err)
	}
	return cmd
}

func TestCompileSpecLetters(t *testing.T) {
	cmd := specCommand(t, "i|f|b|s|l|u|g", nil)

	checks := []struct {
		idx  int
		want ArgFlags
	}{
		{0, ArgInteger},
		{1, ArgFloat},
		{2, ArgBoolean},
		{3, ArgString},
		{4, ArgString | ArgLower},
		{5, ArgString | ArgUpper},
		{6, ArgGreedy},
		{7, ArgAny},
	}
	for _, c := range checks {
		if got := cmd.ArgFlags(c.idx); got != c.want {
			t.Errorf("position %d: flags = %v, want %v", c.idx, got, c.want)
		}
	}
}

func TestCompileSpecCombined(t *testing.T) {
	cmd := specCommand(t, "i,f|ifb", nil)
	if got := cmd.ArgFlags(0); got != ArgInteger|ArgFloat {
		t.Errorf("position 0: flags = %v", got)
	}
	if got := cmd.ArgFlags(1); got != ArgInteger|ArgFloat|ArgBoolean {
		t.Errorf("position 1: flags = %v", got)
	}
}

func TestCompileSpecGreedyExclusive(t *testing.T) {
	// Setting any other flag at a greedy position clears the greedy flag.
	cmd := specCommand(t, "gi", nil)
	if got := cmd.ArgFlags(0); got != ArgInteger {
		t.Errorf("greedy not cleared: flags = %v", got)
	}
	// A later g replaces accumulated flags entirely.
	cmd = specCommand(t, "ig", nil)
	if got := cmd.ArgFlags(0); got != ArgGreedy {
		t.Errorf("g did not replace flags: %v", got)
	}
}

func TestSetSpecErrorResetsFlags(t *testing.T) {
	cmd := specCommand(t, "i|f|b", nil)

	if err := cmd.SetSpec("i|x|b"); err == nil {
		t.Fatal("bad spec accepted")
	}
	// No partial state: every position falls back to any.
	for idx := 0; idx < MaxArguments; idx++ {
		if got := cmd.ArgFlags(idx); got != ArgAny {
			t.Errorf("position %d: flags = %v after failed recompile, want any", idx, got)
		}
	}
}

func TestCompileSpecUnknownLetter(t *testing.T) {
	cmd := specCommand(t, "i|f", nil)
	if err := cmd.SetSpec("i|x"); err == nil {
		t.Fatal("expected error for unknown specifier")
	} else if re, ok := err.(*RegistrationError); !ok || re.Code != ErrUnknownTypeSpecifier {
		t.Fatalf("unexpected error: %v", err)
	}
	// The compiler is all-or-nothing: after a failed compile every position
	// must be back at ArgAny, including ones the bad spec never reached.
	for i := 0; i < MaxArguments; i++ {
		if got := cmd.ArgFlags(i); got != ArgAny {
			t.Errorf("position %d not reset: flags = %v", i, got)
		}
	}
}

func TestCompileSpecTooManyPositions(t *testing.T) {
	spec := ""
	for i := 0; i < MaxArguments+1; i++ {
		spec += "i|"
	}
	m := New()
	if _, err := m.Create("probe", spec, nil, 0, MaxArguments-1); err == nil {
		t.Fatal("expected error for extraneous positions")
	}
}

func TestGenerateInfoStringRendering(t *testing.T) {
	cmd := specCommand(t, "s|s", nil)
	cmd.SetMaxArgs(2)
	cmd.GenerateInfo(false)
	if got := cmd.Info(); got != "<*string> <*string>" {
		t.Errorf("info = %q", got)
	}
	// Deterministic for a fixed spec+tags pair.
	cmd.GenerateInfo(false)
	if got := cmd.Info(); got != "<*string> <*string>" {
		t.Errorf("second rendering differs: %q", got)
	}
}

func TestGenerateInfoTagsAndTypes(t *testing.T) {
	m := New()
	cmd, err := m.Create("give", "s|i,f", []string{"target", "amount"}, 2, 2)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if got := cmd.Info(); got != "<target:string> <amount:integer,float>" {
		t.Errorf("info = %q", got)
	}
}

func TestGenerateInfoGreedyEndsUsage(t *testing.T) {
	cmd := specCommand(t, "i|g|s", nil)
	cmd.GenerateInfo(false)
	if got := cmd.Info(); got != "<*integer> <*...>" {
		t.Errorf("info = %q", got)
	}
}

func TestArgBoundsValidation(t *testing.T) {
	m := New()
	if _, err := m.Create("bad", "", nil, 5, 3); err == nil {
		t.Error("min > max accepted")
	}
	if _, err := m.Create("bad", "", nil, 0, MaxArguments); err == nil {
		t.Error("max >= MaxArguments accepted")
	}
	cmd, err := m.Create("ok", "", nil, 2, 4)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := cmd.SetMinArgs(5); err == nil {
		t.Error("SetMinArgs above max accepted")
	}
	if err := cmd.SetMaxArgs(1); err == nil {
		t.Error("SetMaxArgs below min accepted")
	}
}
