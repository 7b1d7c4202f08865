package log

import (
	"errors"
	"io"
)

// MultiWriter fans log output out to every appender. A failing appender does
// not stop the others. Appenders the writer opens itself, such as rotating
// files, are released by Close; writers handed to Add belong to the caller.
type MultiWriter struct {
	writers []io.Writer
	owned   []io.Closer
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{writers: make([]io.Writer, 0)}
}

func (m *MultiWriter) Write(p []byte) (n int, err error) {
	for _, w := range m.writers {
		if _, e := w.Write(p); e != nil {
			err = e
		}
	}
	return len(p), err
}

func (m *MultiWriter) Add(writer io.Writer) *MultiWriter {
	m.writers = append(m.writers, writer)
	return m
}

func (m *MultiWriter) own(writer io.WriteCloser) *MultiWriter {
	m.owned = append(m.owned, writer)
	return m.Add(writer)
}

// Len returns the number of appenders.
func (m *MultiWriter) Len() int {
	return len(m.writers)
}

// Close closes the owned appenders. Closing twice is a no-op.
func (m *MultiWriter) Close() error {
	errs := make([]error, 0, len(m.owned))
	for _, c := range m.owned {
		errs = append(errs, c.Close())
	}
	m.owned = nil
	return errors.Join(errs...)
}
