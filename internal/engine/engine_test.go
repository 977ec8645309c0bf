package engine

import "testing"

func TestCompileSuccess(t *testing.T) {
	e := New()
	res := e.Compile("var x = 1;")
	if res.Error != "success" {
		t.Fatalf("Error = %q, want %q", res.Error, "success")
	}
	if res.ID < 0 {
		t.Errorf("ID = %d, want >= 0", res.ID)
	}
}

func TestCompileParseError(t *testing.T) {
	e := New()
	res := e.Compile("var x = ;")
	if res.ID != -1 {
		t.Errorf("ID = %d, want -1 on parse error", res.ID)
	}
	if res.Error == "success" {
		t.Error("Error should describe the failure, not report success")
	}
}

func TestCompileTypeError(t *testing.T) {
	e := New()
	res := e.Compile("var x = 1; x = 1.5;")
	if res.ID != -1 {
		t.Errorf("ID = %d, want -1 on a type error", res.ID)
	}
}

func TestRunToSyscallOrNReachesHalt(t *testing.T) {
	e := New()
	res := e.Compile("var x = 1 + 1;")
	_, status := e.RunToSyscallOrN(res.ID, 1000)
	if status < 0 {
		t.Fatalf("status = %d, want a nonnegative syscall number", status)
	}
}

func TestFreeInvalidatesID(t *testing.T) {
	e := New()
	res := e.Compile("var x = 1;")
	e.Free(res)
	if e.PushInt(res.ID, 1) {
		t.Error("PushInt after Free should report false")
	}
}

func TestFreeNegativeIDIsNoop(t *testing.T) {
	e := New()
	e.Free(CompileResult{ID: -1, Error: "some error"})
}

func TestInitResetsRegistry(t *testing.T) {
	e := New()
	res := e.Compile("var x = 1;")
	e.Init()
	if e.PushInt(res.ID, 1) {
		t.Error("PushInt after Init should report false: registry was reset")
	}
}

func TestPushPopIntRoundTrip(t *testing.T) {
	e := New()
	res := e.Compile("var x = 1;")
	if !e.PushInt(res.ID, 7) {
		t.Fatal("PushInt should succeed")
	}
	var out int32
	if !e.PopInt(res.ID, &out) || out != 7 {
		t.Errorf("PopInt = %d, want 7", out)
	}
}
