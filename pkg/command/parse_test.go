package command

import "testing"

// report captures one structured error delivered through the sink.
type report struct {
	code ErrCode
	msg  string
	ctx  any
}

// testRig is the shared harness: a manager with a capturing error sink and a
// command whose executer records the arguments it was called with.
type testRig struct {
	mgr     *Manager
	cmd     *Command
	reports []report
	gotArgs *Args
	result  int
}

func newTestRig(t *testing.T, spec string, tags []string, min, max int) *testRig {
	t.Helper()
	r := &testRig{mgr: New(), result: 1}
	r.mgr.SetOnError(func(code ErrCode, msg string, ctx any) {
		r.reports = append(r.reports, report{code, msg, ctx})
	})
	cmd, err := r.mgr.Create("probe", spec, tags, min, max)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	cmd.BindExec(func(inv Invoker, args Args) (int, error) {
		r.gotArgs = &args
		return r.result, nil
	})
	r.cmd = cmd
	return r
}

func (r *testRig) run(t *testing.T, line string) int {
	t.Helper()
	return r.mgr.Run(1, line)
}

func (r *testRig) lastCode(t *testing.T) ErrCode {
	t.Helper()
	if len(r.reports) == 0 {
		t.Fatal("no error was reported")
	}
	return r.reports[len(r.reports)-1].code
}

func (r *testRig) values(t *testing.T) []Value {
	t.Helper()
	if r.gotArgs == nil {
		t.Fatal("executer was not called")
	}
	return r.gotArgs.Values
}

func TestParseTypeCascade(t *testing.T) {
	r := newTestRig(t, "", nil, 0, 4)
	if got := r.run(t, `probe 42 3.14 true "a quoted string"`); got != 1 {
		t.Fatalf("Run = %d, reports = %v", got, r.reports)
	}
	want := []Value{
		IntValue(42),
		FloatValue(3.14),
		BoolValue(true),
		StringValue("a quoted string"),
	}
	vals := r.values(t)
	if len(vals) != len(want) {
		t.Fatalf("argc = %d, want %d", len(vals), len(want))
	}
	for i, w := range want {
		if vals[i] != w {
			t.Errorf("arg %d = %#v, want %#v", i, vals[i], w)
		}
	}
}

func TestParseGreedyTakesRemainder(t *testing.T) {
	r := newTestRig(t, "g", nil, 0, 1)
	if got := r.run(t, `probe "hello world"`); got != 1 {
		t.Fatalf("Run = %d, reports = %v", got, r.reports)
	}
	vals := r.values(t)
	if len(vals) != 1 {
		t.Fatalf("argc = %d", len(vals))
	}
	// Quotes and internal spacing preserved; only leading whitespace trimmed.
	if vals[0] != StringValue(`"hello world"`) {
		t.Errorf("greedy arg = %#v", vals[0])
	}
}

func TestParseWholeTokenInteger(t *testing.T) {
	r := newTestRig(t, "i", nil, 0, 1)
	if got := r.run(t, "probe 007"); got != 1 {
		t.Fatalf("Run = %d, reports = %v", got, r.reports)
	}
	if vals := r.values(t); vals[0] != IntValue(7) {
		t.Errorf("arg = %#v, want integer 7", vals[0])
	}

	// A trailing non-digit disqualifies the whole run from being an integer.
	r = newTestRig(t, "i,s", nil, 0, 1)
	if got := r.run(t, "probe 007x"); got != 1 {
		t.Fatalf("Run = %d, reports = %v", got, r.reports)
	}
	if vals := r.values(t); vals[0] != StringValue("007x") {
		t.Errorf("arg = %#v, want string 007x", vals[0])
	}
}

func TestParseIntegerOverflowFallsThrough(t *testing.T) {
	// A digit run too large for int64 is not an integer; the cascade moves
	// on to the next classification the position accepts.
	const huge = "99999999999999999999"

	r := newTestRig(t, "", nil, 0, 1)
	if got := r.run(t, "probe "+huge); got != 1 {
		t.Fatalf("Run = %d, reports = %v", got, r.reports)
	}
	vals := r.values(t)
	if len(vals) != 1 || vals[0].Kind != ArgFloat {
		t.Errorf("arg = %#v, want a float classification", vals[0])
	}

	// An integer-only position rejects it outright.
	r = newTestRig(t, "i", nil, 0, 1)
	if got := r.run(t, "probe "+huge); got >= 0 {
		t.Fatalf("Run = %d, want negative", got)
	}
	if code := r.lastCode(t); code != ErrUnsupportedArg {
		t.Errorf("code = %v, want %v", code, ErrUnsupportedArg)
	}
}

func TestParseBooleanWords(t *testing.T) {
	r := newTestRig(t, "b|b|b|b", nil, 0, 4)
	if got := r.run(t, "probe on TRUE off False"); got != 1 {
		t.Fatalf("Run = %d, reports = %v", got, r.reports)
	}
	want := []bool{true, true, false, false}
	for i, w := range want {
		if v := r.values(t)[i]; v.Kind != ArgBoolean || v.Bool != w {
			t.Errorf("arg %d = %#v, want boolean %v", i, v, w)
		}
	}
}

func TestParseBooleanTooLongFallsBack(t *testing.T) {
	// Six characters can never be a boolean word.
	r := newTestRig(t, "b,s", nil, 0, 1)
	if got := r.run(t, "probe truest"); got != 1 {
		t.Fatalf("Run = %d, reports = %v", got, r.reports)
	}
	if vals := r.values(t); vals[0] != StringValue("truest") {
		t.Errorf("arg = %#v", vals[0])
	}
}

func TestParseQuotedEscapes(t *testing.T) {
	r := newTestRig(t, "", nil, 0, 2)
	if got := r.run(t, `probe "say \"hi\"" 'single'`); got == -1 {
		t.Fatalf("Run failed, reports = %v", r.reports)
	}
	vals := r.values(t)
	if vals[0] != StringValue(`say "hi"`) {
		t.Errorf("arg 0 = %#v", vals[0])
	}
	if vals[1] != StringValue("single") {
		t.Errorf("arg 1 = %#v", vals[1])
	}
}

func TestParseUnterminatedQuote(t *testing.T) {
	r := newTestRig(t, "", nil, 0, 2)
	if got := r.run(t, `probe "never closed`); got != -1 {
		t.Fatalf("Run = %d, want -1", got)
	}
	if code := r.lastCode(t); code != ErrSyntaxError {
		t.Errorf("code = %v, want syntax-error", code)
	}
	if r.gotArgs != nil {
		t.Error("executer must not run after a parse error")
	}
}

func TestParseCaseFolding(t *testing.T) {
	r := newTestRig(t, "l|u", nil, 0, 2)
	if got := r.run(t, `probe "MiXeD" mIxEd`); got != 1 {
		t.Fatalf("Run = %d, reports = %v", got, r.reports)
	}
	vals := r.values(t)
	if vals[0] != StringValue("mixed") {
		t.Errorf("lowercase arg = %#v", vals[0])
	}
	if vals[1] != StringValue("MIXED") {
		t.Errorf("uppercase arg = %#v", vals[1])
	}
}

func TestParseStopsPastMaximum(t *testing.T) {
	// With maxArgs=2 a third argument is still tokenized so validation can
	// flag it; a fourth is simply ignored.
	r := newTestRig(t, "", nil, 0, 2)
	if got := r.run(t, "probe a b c d"); got != -1 {
		t.Fatalf("Run = %d, want -1", got)
	}
	if code := r.lastCode(t); code != ErrExtraneousArgs {
		t.Errorf("code = %v, want extraneous-args", code)
	}
}

func TestParseEmptyArgumentText(t *testing.T) {
	r := newTestRig(t, "", nil, 0, 3)
	if got := r.run(t, "probe"); got != 1 {
		t.Fatalf("Run = %d, reports = %v", got, r.reports)
	}
	if vals := r.values(t); len(vals) != 0 {
		t.Errorf("argc = %d, want 0", len(vals))
	}
}
