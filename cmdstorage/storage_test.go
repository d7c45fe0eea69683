package cmdstorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/swbuild/sw/cmdhash"
	"github.com/swbuild/sw/fileregistry"
	"github.com/swbuild/sw/swpath"
)

func testHash(argv ...string) cmdhash.Hash {
	var b cmdhash.Builder
	for _, a := range argv {
		b.Argument(cmdhash.ArgOwned, a)
	}
	return b.Sum()
}

// recordRun interns the given paths into reg (persisting through
// store) and appends one command record ending at endMtime.
func recordRun(t *testing.T, store *Store, reg *fileregistry.Registry, h cmdhash.Hash, endMtime int64, inputs, outputs []string) {
	t.Helper()
	var ins, outs []fileregistry.FileHash
	for _, p := range inputs {
		fh, _ := reg.Add(swpath.Normalize(p), store.PersistPath, false)
		ins = append(ins, fh)
	}
	for _, p := range outputs {
		fh, _ := reg.Add(swpath.Normalize(p), store.PersistPath, true)
		outs = append(outs, fh)
	}
	if err := store.Append(h, endMtime, ins, nil, outs); err != nil {
		t.Fatal(err)
	}
}

func TestQueryNewCommandThenFresh(t *testing.T) {
	dir := t.TempDir()
	reg := fileregistry.New()
	store, err := Open(dir, reg)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	in := filepath.Join(dir, "a.c")
	out := filepath.Join(dir, "a.o")
	if err := os.WriteFile(in, []byte("int x;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, []byte("obj"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := testHash("cc", "-c", "a.c")
	if got := store.Query(h, reg); got != NewCommand {
		t.Fatalf("unrecorded command: got %v, want NewCommand", got)
	}

	recordRun(t, store, reg, h, time.Now().UnixNano(), []string{in}, []string{out})
	if got := store.Query(h, reg); got != Fresh {
		t.Fatalf("after append: got %v, want Fresh", got)
	}
}

// TestReopenSeedsRegistry covers the cross-process rebuild case: a new
// process with an empty registry must still see the recorded files as
// known, because Open replays commands.files.bin into the registry.
func TestReopenSeedsRegistry(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.c")
	out := filepath.Join(dir, "a.o")
	if err := os.WriteFile(in, []byte("int x;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, []byte("obj"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := testHash("cc", "-c", "a.c")

	reg1 := fileregistry.New()
	store1, err := Open(dir, reg1)
	if err != nil {
		t.Fatal(err)
	}
	recordRun(t, store1, reg1, h, time.Now().UnixNano(), []string{in}, []string{out})
	if err := store1.Close(); err != nil {
		t.Fatal(err)
	}

	reg2 := fileregistry.New()
	store2, err := Open(dir, reg2)
	if err != nil {
		t.Fatal(err)
	}
	defer store2.Close()
	if reg2.Len() != 2 {
		t.Fatalf("replayed registry has %d entries, want 2", reg2.Len())
	}
	if got := store2.Query(h, reg2); got != Fresh {
		t.Fatalf("after reopen: got %v, want Fresh", got)
	}
}

func TestQueryUpdatedFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.c")
	out := filepath.Join(dir, "a.o")
	if err := os.WriteFile(in, []byte("int x;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, []byte("obj"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := testHash("cc", "-c", "a.c")
	reg1 := fileregistry.New()
	store1, err := Open(dir, reg1)
	if err != nil {
		t.Fatal(err)
	}
	recordRun(t, store1, reg1, h, time.Now().UnixNano(), []string{in}, []string{out})
	store1.Close()

	// touch the input past the recorded end mtime
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(in, future, future); err != nil {
		t.Fatal(err)
	}

	reg2 := fileregistry.New()
	store2, err := Open(dir, reg2)
	if err != nil {
		t.Fatal(err)
	}
	defer store2.Close()
	if got := store2.Query(h, reg2); got != UpdatedFile {
		t.Fatalf("after touch: got %v, want UpdatedFile", got)
	}
}

func TestQueryMissingFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "a.c")
	out := filepath.Join(dir, "a.o")
	if err := os.WriteFile(in, []byte("int x;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, []byte("obj"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := testHash("cc", "-c", "a.c")
	reg1 := fileregistry.New()
	store1, err := Open(dir, reg1)
	if err != nil {
		t.Fatal(err)
	}
	recordRun(t, store1, reg1, h, time.Now().UnixNano(), []string{in}, []string{out})
	store1.Close()

	if err := os.Remove(in); err != nil {
		t.Fatal(err)
	}

	reg2 := fileregistry.New()
	store2, err := Open(dir, reg2)
	if err != nil {
		t.Fatal(err)
	}
	defer store2.Close()
	if got := store2.Query(h, reg2); got != MissingFile {
		t.Fatalf("after delete: got %v, want MissingFile", got)
	}
}

func TestVersionMismatchRefused(t *testing.T) {
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db", itoa(SchemaVersion))
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dbDir, "version"), []byte("8"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir, fileregistry.New()); err == nil {
		t.Fatal("expected Open to refuse a mismatched schema version")
	}
}

func TestRecordRoundTrip(t *testing.T) {
	hashes := []fileregistry.FileHash{1, 2, 3}
	buf := encodeRecord(cmdhash.Hash(42), 99, hashes)
	rec, err := decodeRecord(buf)
	if err != nil {
		t.Fatal(err)
	}
	if rec.hash != 42 || rec.endMtime != 99 || len(rec.fileHashes) != 3 {
		t.Fatalf("decoded record mismatch: %+v", rec)
	}
	for i, fh := range rec.fileHashes {
		if fh != hashes[i] {
			t.Fatalf("file hash %d: got %d, want %d", i, fh, hashes[i])
		}
	}
}
