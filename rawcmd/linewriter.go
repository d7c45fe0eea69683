package rawcmd

import "bytes"

// lineSplitter accumulates raw read chunks and invokes onLine once per
// complete newline-terminated line, plus once more for any trailing
// unterminated data when closed. It is a push-style feeder because the
// reactor delivers chunks via callback rather than letting rawcmd pull
// from a reader directly.
type lineSplitter struct {
	onLine func(line string)
	buf    bytes.Buffer
}

func newLineSplitter(onLine func(line string)) *lineSplitter {
	return &lineSplitter{onLine: onLine}
}

// feed appends chunk and emits every complete line it now contains.
func (s *lineSplitter) feed(chunk []byte) {
	s.buf.Write(chunk)
	for {
		b := s.buf.Bytes()
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(b[:i], "\r"))
		s.onLine(line)
		s.buf.Next(i + 1)
	}
}

// close flushes any unterminated trailing line.
func (s *lineSplitter) close() {
	if s.buf.Len() > 0 {
		s.onLine(s.buf.String())
		s.buf.Reset()
	}
}
