package logging

import (
	"os"
	"sync"
)

const defaultLogCapMB = 10

// cappedFileWriter appends to a log file and truncates it whenever the next
// write would push it past the cap. Duel servers run unattended for long
// stretches; a hard cap beats filling the disk with request logs.
type cappedFileWriter struct {
	path string
	cap  int64

	mu   sync.Mutex
	file *os.File
	size int64
}

func newSizeLimitedWriter(path string, maxMB int) (*cappedFileWriter, error) {
	if maxMB <= 0 {
		maxMB = defaultLogCapMB
	}
	w := &cappedFileWriter{path: path, cap: int64(maxMB) * 1024 * 1024}
	if err := w.reopen(false); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *cappedFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		if err := w.reopen(false); err != nil {
			return 0, err
		}
	}
	if w.size+int64(len(p)) > w.cap {
		if err := w.reopen(true); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *cappedFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// reopen replaces the handle, either appending to what is on disk or
// starting the file over. Callers hold w.mu.
func (w *cappedFileWriter) reopen(truncate bool) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	flags := os.O_CREATE | os.O_WRONLY
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(w.path, flags, 0o644)
	if err != nil {
		return err
	}
	w.size = 0
	if !truncate {
		if info, err := f.Stat(); err == nil {
			w.size = info.Size()
		}
	}
	w.file = f
	return nil
}
