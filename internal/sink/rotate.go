package sink

import (
	"path/filepath"
	"time"

	"github.com/user/netlens/internal/model"
)

// Rotator writes banners into a directory, rotating the output file when
// the UTC calendar day changes. Files are named {YYYY-MM-DD}.json.gz and
// opened lazily, so a day with no records produces no file.
type Rotator struct {
	dir   string
	level int
	now   func() time.Time

	day string
	w   *Writer
}

// NewRotator creates a rotating writer for the given directory.
func NewRotator(dir string, level int) *Rotator {
	return &Rotator{dir: dir, level: level, now: time.Now}
}

// Write appends the banner to the file for its calendar day, closing and
// reopening the underlying writer on a day boundary. The day is derived
// from the record's own timestamp; a record without a parseable timestamp
// falls back to the current UTC time. Using the process start date instead
// would rotate at the wrong boundary during long sessions.
func (r *Rotator) Write(b model.Banner) error {
	if b.Placeholder() {
		return nil
	}

	day := r.dayKey(b)
	if r.w != nil && day != r.day {
		if err := r.w.Close(); err != nil {
			return err
		}
		r.w = nil
	}

	if r.w == nil {
		path := filepath.Join(r.dir, day+".json.gz")
		w, err := Open(path, "a", r.level)
		if err != nil {
			return err
		}
		r.w = w
		r.day = day
	}

	return r.w.Write(b)
}

// Close releases the currently open file, if any.
func (r *Rotator) Close() error {
	if r.w == nil {
		return nil
	}
	err := r.w.Close()
	r.w = nil
	return err
}

func (r *Rotator) dayKey(b model.Banner) string {
	if ts, ok := b.Timestamp(); ok {
		return ts.UTC().Format("2006-01-02")
	}
	return r.now().UTC().Format("2006-01-02")
}
