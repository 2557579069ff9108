package hostagent

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Receiver writes incoming file transfers under a fixed download
// directory. One transfer is active at a time; a chunk at offset 0 starts
// a fresh file, abandoning any transfer still open.
type Receiver struct {
	dir string
	log zerolog.Logger

	file    *os.File
	name    string
	written int64
}

func NewReceiver(dir string, log zerolog.Logger) *Receiver {
	return &Receiver{dir: dir, log: log}
}

// Chunk appends one chunk. The name is sanitized to its base so a sender
// cannot escape the download directory.
func (r *Receiver) Chunk(name string, offset int64, data []byte) error {
	name = filepath.Base(name)

	if offset == 0 {
		r.abort()
		if err := os.MkdirAll(r.dir, 0o755); err != nil {
			return fmt.Errorf("create download dir: %w", err)
		}
		f, err := os.Create(filepath.Join(r.dir, name))
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		r.file, r.name, r.written = f, name, 0
		r.log.Info().Str("file", name).Msg("receiving file")
	}

	if r.file == nil {
		return fmt.Errorf("chunk for %s with no open transfer", name)
	}
	if name != r.name {
		r.abort()
		return fmt.Errorf("chunk for %s while receiving %s", name, r.name)
	}
	if offset != r.written {
		r.abort()
		return fmt.Errorf("chunk at offset %d, expected %d", offset, r.written)
	}

	n, err := r.file.Write(data)
	r.written += int64(n)
	if err != nil {
		r.abort()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Complete closes the active transfer. A size mismatch is logged but the
// file is kept.
func (r *Receiver) Complete(name string, size int64) error {
	name = filepath.Base(name)
	if r.file == nil || name != r.name {
		return fmt.Errorf("complete for %s with no matching transfer", name)
	}
	err := r.file.Close()
	if r.written != size {
		r.log.Warn().Str("file", name).Int64("got", r.written).Int64("want", size).Msg("file size mismatch")
	} else {
		r.log.Info().Str("file", name).Int64("size", size).Msg("file received")
	}
	r.file, r.name, r.written = nil, "", 0
	return err
}

func (r *Receiver) abort() {
	if r.file != nil {
		_ = r.file.Close()
		r.file, r.name, r.written = nil, "", 0
	}
}
