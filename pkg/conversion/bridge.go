package conversion

import (
	"errors"
	"os"
	"sync"
)

// markupPattern names the transient files handed to the external converter.
const markupPattern = "pdfconv-*.html"

// markupFile is a transient HTML file owned by one conversion call.
type markupFile struct {
	path string
	once sync.Once
	err  error
}

// materialize writes markup to a uniquely named file in dir (the OS temp dir
// when empty). The caller must Release the returned file.
func materialize(dir, markup string) (*markupFile, error) {
	f, err := os.CreateTemp(dir, markupPattern)
	if err != nil {
		return nil, ioError("bridge", dir, err)
	}

	m := &markupFile{path: f.Name()}
	if _, err := f.WriteString(markup); err != nil {
		f.Close()
		m.Release()
		return nil, ioError("bridge", m.path, err)
	}
	if err := f.Close(); err != nil {
		m.Release()
		return nil, ioError("bridge", m.path, err)
	}
	return m, nil
}

// Path returns the file location.
func (m *markupFile) Path() string {
	return m.path
}

// Release removes the file. Only the first call does any work.
func (m *markupFile) Release() error {
	m.once.Do(func() {
		if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.err = err
		}
	})
	return m.err
}
