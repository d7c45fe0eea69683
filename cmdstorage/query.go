package cmdstorage

import (
	"github.com/swbuild/sw/cmdhash"
	"github.com/swbuild/sw/fileregistry"
)

// Reason is the outdatedness verdict for one command (as opposed to
// fileregistry.OutdatednessReason, which reports one file's status
// within that evaluation). Fresh means skip; anything else means run.
type Reason uint8

const (
	Fresh Reason = iota
	NewCommand
	NewFile
	NotRecordedFile
	MissingFile
	UpdatedFile
)

func (r Reason) String() string {
	switch r {
	case Fresh:
		return "Fresh"
	case NewCommand:
		return "NewCommand"
	case NewFile:
		return "NewFile"
	case NotRecordedFile:
		return "NotRecordedFile"
	case MissingFile:
		return "MissingFile"
	case UpdatedFile:
		return "UpdatedFile"
	default:
		return "unknown"
	}
}

// Query answers the outdatedness query for command hash h against
// reg, the process-wide file registry. Returns the first disqualifying
// reason encountered, or Fresh if every recorded file checks out.
func (s *Store) Query(h cmdhash.Hash, reg *fileregistry.Registry) Reason {
	rec, ok := s.byHash.Get(h)
	if !ok {
		return NewCommand
	}
	for _, fh := range rec.fileHashes {
		switch reg.Outdated(fh, rec.endMtime) {
		case fileregistry.NotRecorded:
			return NotRecordedFile
		case fileregistry.Missing:
			return MissingFile
		case fileregistry.Updated:
			return UpdatedFile
		}
	}
	return Fresh
}

// Append records a successful run: one commands.bin record capturing
// the command hash, its end mtime, and the full resolved file-hash set
// over inputs, implicit inputs, and outputs.
func (s *Store) Append(h cmdhash.Hash, endMtimeNanos int64, inputs, implicitInputs, outputs []fileregistry.FileHash) error {
	total := make([]fileregistry.FileHash, 0, len(inputs)+len(implicitInputs)+len(outputs))
	total = append(total, inputs...)
	total = append(total, implicitInputs...)
	total = append(total, outputs...)

	buf := encodeRecord(h, endMtimeNanos, total)
	if _, err := s.commands.WriteRecord(buf); err != nil {
		return err
	}
	s.byHash.Put(h, &record{hash: h, endMtime: endMtimeNanos, fileHashes: total})
	return nil
}
