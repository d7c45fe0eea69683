package compilecmd

import (
	"os"
	"testing"

	"github.com/swbuild/sw/swpath"
)

func TestParseDepsFile(t *testing.T) {
	dir := t.TempDir()
	depsPath := swpath.Normalize(dir + "/a.d")
	content := "a.o: a.c a.h \\\n  b.h\n"
	if err := os.WriteFile(depsPath.OSForm(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	inputs, err := parseDepsFile(depsPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(inputs) != 3 {
		t.Fatalf("got %d implicit inputs, want 3: %v", len(inputs), inputs)
	}
	want := map[string]bool{"a.c": true, "a.h": true, "b.h": true}
	for _, p := range inputs {
		if !want[p.Base()] {
			t.Errorf("unexpected dependency %q", p)
		}
	}
}

func TestParseDepsFileMissingColon(t *testing.T) {
	dir := t.TempDir()
	depsPath := swpath.Normalize(dir + "/bad.d")
	if err := os.WriteFile(depsPath.OSForm(), []byte("not a deps file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := parseDepsFile(depsPath); err == nil {
		t.Fatal("expected error for deps file with no colon")
	}
}
