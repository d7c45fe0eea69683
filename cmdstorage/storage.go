// Package cmdstorage is the persistent command record store: two
// append-only mmapio.Stream files under <workdir>/db/<version>/ plus
// the in-memory index used to answer the outdatedness query.
package cmdstorage

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/swbuild/sw/cmdhash"
	"github.com/swbuild/sw/fileregistry"
	"github.com/swbuild/sw/internal/perr"
	"github.com/swbuild/sw/internal/rwmap"
	"github.com/swbuild/sw/mmapio"
	"github.com/swbuild/sw/swpath"
)

// SchemaVersion is the on-disk schema version segment: <workdir>/db/9/.
const SchemaVersion = 9

// record is the in-memory decoding of one commands.bin entry.
type record struct {
	hash       cmdhash.Hash
	endMtime   int64
	fileHashes []fileregistry.FileHash
}

// Store is an opened command/file database.
type Store struct {
	dir      string
	commands *mmapio.Stream
	files    *mmapio.Stream
	byHash   *rwmap.RWMap[cmdhash.Hash, *record]
}

// Open opens (creating if absent) the command/file streams under
// <workdir>/db/<SchemaVersion>/ and replays them: every recorded path
// is interned into reg, the process-wide file registry every Store
// shares, and every command record joins the in-memory index the
// outdatedness query reads. A
// "version" sentinel file inside the directory is verified on open and
// written on first create; a mismatch refuses the store rather than
// misreading records written by an incompatible schema.
func Open(workdir string, reg *fileregistry.Registry) (*Store, error) {
	dbDir := swpath.Path(workdir).Join("db", itoa(SchemaVersion)).OSForm()
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, err
	}
	if err := checkVersion(dbDir); err != nil {
		return nil, err
	}

	commandsPath := swpath.Path(dbDir).Join("commands.bin").OSForm()
	filesPath := swpath.Path(dbDir).Join("commands.files.bin").OSForm()

	commands, err := mmapio.Open(commandsPath)
	if err != nil {
		return nil, err
	}
	files, err := mmapio.Open(filesPath)
	if err != nil {
		commands.Close()
		return nil, err
	}

	s := &Store{
		dir:      dbDir,
		commands: commands,
		files:    files,
		byHash:   rwmap.New[cmdhash.Hash, *record](),
	}
	if err := s.replay(reg); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// checkVersion verifies the schema-version sentinel inside dbDir,
// creating it on a fresh store.
func checkVersion(dbDir string) error {
	versionPath := swpath.Path(dbDir).Join("version").OSForm()
	want := []byte(itoa(SchemaVersion))
	got, err := os.ReadFile(versionPath)
	if os.IsNotExist(err) {
		return os.WriteFile(versionPath, want, 0o644)
	}
	if err != nil {
		return err
	}
	if !bytes.Equal(bytes.TrimSpace(got), want) {
		return perr.Errorf("cmdstorage: store at %s has schema version %s, want %s",
			dbDir, bytes.TrimSpace(got), want)
	}
	return nil
}

// replay interns every persisted path into reg without re-emitting it
// to disk, then decodes every command record. Seeding reg here is what
// makes a second build in a new process see recorded files as known
// rather than NotRecordedFile.
func (s *Store) replay(reg *fileregistry.Registry) error {
	fc := s.files.NewCursor()
	for {
		payload, ok := fc.Next()
		if !ok {
			break
		}
		reg.Add(swpath.Path(payload), nil, false)
	}

	cc := s.commands.NewCursor()
	for {
		payload, ok := cc.Next()
		if !ok {
			break
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			return err
		}
		s.byHash.Put(rec.hash, rec)
	}
	return nil
}

func decodeRecord(payload []byte) (*record, error) {
	if len(payload) < 24 {
		return nil, os.ErrInvalid
	}
	h := cmdhash.Hash(binary.LittleEndian.Uint64(payload[0:8]))
	end := int64(binary.LittleEndian.Uint64(payload[8:16]))
	n := binary.LittleEndian.Uint64(payload[16:24])
	rec := &record{hash: h, endMtime: end, fileHashes: make([]fileregistry.FileHash, 0, n)}
	off := 24
	for i := uint64(0); i < n; i++ {
		if off+8 > len(payload) {
			return nil, os.ErrInvalid
		}
		rec.fileHashes = append(rec.fileHashes, fileregistry.FileHash(binary.LittleEndian.Uint64(payload[off:off+8])))
		off += 8
	}
	return rec, nil
}

func encodeRecord(hash cmdhash.Hash, endMtime int64, fileHashes []fileregistry.FileHash) []byte {
	buf := make([]byte, 24+8*len(fileHashes))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(hash))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(endMtime))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(len(fileHashes)))
	off := 24
	for _, fh := range fileHashes {
		binary.LittleEndian.PutUint64(buf[off:off+8], uint64(fh))
		off += 8
	}
	return buf
}

// PersistPath appends path's raw bytes as a commands.files.bin record.
// It is the persist callback passed to fileregistry.Registry.Add so a
// path is written to disk exactly once, the first time the registry
// interns it.
func (s *Store) PersistPath(p swpath.Path) {
	_, _ = s.files.WriteRecord([]byte(p))
}

// Close releases the underlying mmap streams.
func (s *Store) Close() error {
	var err error
	if s.commands != nil {
		err = s.commands.Close()
	}
	if s.files != nil {
		if e := s.files.Close(); err == nil {
			err = e
		}
	}
	return err
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}
