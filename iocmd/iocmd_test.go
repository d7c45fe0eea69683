package iocmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/swbuild/sw/cmdstorage"
	"github.com/swbuild/sw/fileregistry"
	"github.com/swbuild/sw/rawcmd"
	"github.com/swbuild/sw/swpath"
)

func newCmd(name, bin string, args ...string) *Command {
	rc := &rawcmd.RawCommand{Name: name, Path: bin}
	for _, a := range args {
		rc.Args = append(rc.Args, rawcmd.Arg(a))
	}
	return &Command{RawCommand: rc, Name: name}
}

func TestHashCachedAndStable(t *testing.T) {
	c := newCmd("cc", "/usr/bin/cc", "-c", "a.c")
	h1 := c.Hash()
	h2 := c.Hash()
	if h1 != h2 {
		t.Fatal("hash changed across calls")
	}
}

func TestOutdatedNewCommandThenFresh(t *testing.T) {
	dir := t.TempDir()
	reg := fileregistry.New()
	store, err := cmdstorage.Open(dir, reg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	in := filepath.Join(dir, "a.c")
	out := filepath.Join(dir, "a.o")
	os.WriteFile(in, []byte("int x;"), 0644)
	os.WriteFile(out, []byte("obj"), 0644)

	c := newCmd("cc", "/usr/bin/cc", "-c", "a.c")
	c.Inputs = []swpath.Path{swpath.Normalize(in)}
	c.Outputs = []swpath.Path{swpath.Normalize(out)}

	var reasons []cmdstorage.Reason
	explain := func(r cmdstorage.Reason) { reasons = append(reasons, r) }

	if !c.Outdated(store, reg, explain) {
		t.Fatal("expected NewCommand to be outdated")
	}
	if reasons[0] != cmdstorage.NewCommand {
		t.Fatalf("got %v, want NewCommand", reasons[0])
	}

	ins, impl, outs := c.InternFiles(reg, store.PersistPath, nil)
	c.MarkEnd()
	if err := store.Append(c.Hash(), c.EndTime, ins, impl, outs); err != nil {
		t.Fatal(err)
	}

	if c.Outdated(store, reg, nil) {
		t.Fatal("expected command to be Fresh after append")
	}
}

func TestAlwaysForcesOutdated(t *testing.T) {
	dir := t.TempDir()
	reg := fileregistry.New()
	store, err := cmdstorage.Open(dir, reg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	c := newCmd("touch", "/usr/bin/touch", "x")
	c.Always = true
	ins, impl, outs := c.InternFiles(reg, store.PersistPath, nil)
	store.Append(c.Hash(), c.EndTime, ins, impl, outs)

	if !c.Outdated(store, reg, nil) {
		t.Fatal("Always command must always be outdated")
	}
}
