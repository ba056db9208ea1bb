// Package scanner walks a directory tree and classifies the files it
// finds, producing the lazy sequence of ScannedFile the importer and
// commit engine both diff against.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/stratadb/strata/internal/types"
)

// ScannedFile is one entry yielded by Scan. Err is set (and the other
// fields best-effort) when the entry could not be read; the scanner never
// aborts the whole walk over a single bad file.
type ScannedFile struct {
	RelPath  string
	AbsPath  string
	TypeTag  string
	Size     int64
	ModTime  int64 // unix seconds
	Err      error
}

// Scan walks root and sends one ScannedFile per eligible regular file on
// the returned channel, then closes it. The walk itself runs in a
// goroutine so the caller can range over results as they arrive; it is
// finite and non-restartable, matching the spec's "lazy, non-restartable
// sequence" contract. ctx cancellation is checked between files and stops
// the walk early (the channel is still closed).
func Scan(ctx context.Context, root string, rs RuleSet) <-chan ScannedFile {
	out := make(chan ScannedFile)
	go func() {
		defer close(out)
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return filepath.SkipAll
			}
			if err != nil {
				rel, relErr := filepath.Rel(root, p)
				if relErr != nil {
					rel = p
				}
				select {
				case out <- ScannedFile{RelPath: rel, AbsPath: p, Err: err}:
				case <-ctx.Done():
					return filepath.SkipAll
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if p == root {
				return nil
			}

			name := d.Name()
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return nil
			}

			if strings.HasPrefix(name, ".") && !rs.AllowsHidden(name) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				// Never follow, never record.
				return nil
			}

			if d.IsDir() {
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				select {
				case out <- ScannedFile{RelPath: rel, AbsPath: p, Err: err}:
				case <-ctx.Done():
					return filepath.SkipAll
				}
				return nil
			}

			if max := rs.MaxFileBytes(); max > 0 && info.Size() > max {
				return nil
			}

			sf := ScannedFile{
				RelPath: filepathToSlash(rel),
				AbsPath: p,
				TypeTag: rs.Classify(rel),
				Size:    info.Size(),
				ModTime: info.ModTime().Unix(),
			}
			select {
			case out <- sf:
			case <-ctx.Done():
				return filepath.SkipAll
			}
			return nil
		})
	}()
	return out
}

// ReadAll drains Scan into a slice, for callers (importer, commit engine)
// that need the whole set before diffing rather than streaming it.
func ReadAll(ctx context.Context, root string, rs RuleSet) ([]ScannedFile, error) {
	var out []ScannedFile
	for sf := range Scan(ctx, root, rs) {
		if sf.Err != nil {
			return nil, types.NewIOError(sf.AbsPath, sf.Err)
		}
		out = append(out, sf)
	}
	if err := ctx.Err(); err != nil {
		return nil, types.ErrCancelled
	}
	return out, nil
}

// DetectKind classifies payload as text or binary using the spec's exact
// rule: text iff it decodes as UTF-8 without the replacement character.
// utf8.Valid is the standard library's implementation of that rule; there
// is no ecosystem sniffer in the retrieved pack that improves on it for
// this exact contract (see DESIGN.md).
func DetectKind(payload []byte) (types.ContentKind, string) {
	if utf8.Valid(payload) {
		return types.ContentText, "utf-8"
	}
	return types.ContentBinary, ""
}

// ReadFile reads path's contents and returns the ScannedFile's payload
// along with its detected kind and encoding, surfacing I/O failures as a
// types.IOError so callers don't need to special-case os.PathError.
func ReadFile(path string) ([]byte, types.ContentKind, string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, "", "", types.NewIOError(path, err)
	}
	kind, encoding := DetectKind(payload)
	return payload, kind, encoding, nil
}

// CountLines returns the number of lines in payload, counting a trailing
// unterminated line as one more line (the same convention used to decide
// whether a trailing-newline-only change actually touches line count).
func CountLines(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	n := 0
	for _, b := range payload {
		if b == '\n' {
			n++
		}
	}
	if payload[len(payload)-1] != '\n' {
		n++
	}
	return n
}
