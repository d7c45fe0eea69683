package shellscript

import (
	"os"

	"github.com/swbuild/sw/cmdhash"
	"github.com/swbuild/sw/internal/perr"
	"github.com/swbuild/sw/rawcmd"
	"github.com/swbuild/sw/swpath"
)

// DetectDialect picks the host's native dialect: Windows gets cmd,
// everything else sh.
func DetectDialect(goos string) Dialect {
	if goos == "windows" {
		return Cmd
	}
	return Sh
}

// Save renders and writes c's script to dir, marking it executable,
// and returns the path written.
func Save(dir swpath.Path, name string, h cmdhash.Hash, c *rawcmd.RawCommand, d Dialect) (swpath.Path, error) {
	if err := os.MkdirAll(dir.OSForm(), 0o755); err != nil {
		return "", perr.Errorf("shellscript: mkdir %s: %w", dir, err)
	}
	out := dir.Join(FileName(h, d))
	text := Render(name, c, d)
	if err := os.WriteFile(out.OSForm(), []byte(text), 0o755); err != nil {
		return "", perr.Errorf("shellscript: write %s: %w", out, err)
	}
	return out, nil
}
