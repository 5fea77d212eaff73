package kfmt

import "io"

// PrefixWriter is an io.Writer that wraps another io.Writer and injects a
// prefix at the beginning of each line. Drivers use it to tag their probe
// and runtime messages, e.g. "[hal] kbd(1.0.0): ".
type PrefixWriter struct {
	// A writer where all writes get sent to. If nil, the output is
	// buffered like Printf output before a console is attached.
	Sink io.Writer

	// The prefix injected at the beginning of each line.
	Prefix []byte

	// midLine is set when the last write did not end with a line feed.
	midLine bool
}

// Reset makes the next write start a new prefixed line.
func (w *PrefixWriter) Reset() {
	w.midLine = false
}

// Write writes len(p) bytes from p to the underlying data stream and returns
// the number of bytes from p that were written. The injected prefixes are not
// included in the count.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for len(p) != 0 {
		if !w.midLine {
			w.write(w.Prefix)
			w.midLine = true
		}

		lineLen := len(p)
		for i, ch := range p {
			if ch == '\n' {
				lineLen = i + 1
				break
			}
		}

		n, err := w.write(p[:lineLen])
		written += n
		if err != nil {
			return written, err
		}

		if p[lineLen-1] == '\n' {
			w.midLine = false
		}
		p = p[lineLen:]
	}

	return written, nil
}

func (w *PrefixWriter) write(p []byte) (int, error) {
	if w.Sink == nil {
		doWrite(nil, p)
		return len(p), nil
	}
	return w.Sink.Write(p)
}
