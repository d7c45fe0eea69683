package swpath

import "testing"

func TestNormalize(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{`C:\foo\bar`, "c:/foo/bar"},
		{`foo\bar`, "foo/bar"},
		{"/a/b", "/a/b"},
	} {
		if got := string(Normalize(tc.in)); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestJoinBaseDir(t *testing.T) {
	p := Normalize("/a").Join("b", "c.txt")
	if p.String() != "/a/b/c.txt" {
		t.Fatalf("Join: got %q", p)
	}
	if p.Base() != "c.txt" {
		t.Fatalf("Base: got %q", p.Base())
	}
	if p.Dir() != "/a/b" {
		t.Fatalf("Dir: got %q", p.Dir())
	}
}

func TestIsAbs(t *testing.T) {
	if !Normalize(`C:\x`).IsAbs() {
		t.Error("expected windows drive path to be absolute")
	}
	if !Path("/x").IsAbs() {
		t.Error("expected posix path to be absolute")
	}
	if Path("x/y").IsAbs() {
		t.Error("expected relative path to not be absolute")
	}
}
