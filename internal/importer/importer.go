// Package importer bulk-ingests a working tree into a project: every
// scanned file is hashed, deduplicated into the blob store, and linked as
// that file's current content, all inside one transaction so a failure
// partway through never leaves a half-imported project.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/stratadb/strata/internal/scanner"
	"github.com/stratadb/strata/internal/storage"
	"github.com/stratadb/strata/internal/types"
)

func sha256hex(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Summary reports what an Import call did.
type Summary struct {
	FilesAdded     int
	FilesUpdated   int
	FilesUnchanged int
	BlobsAdded     int
	BytesStored    int64
}

// String renders a one-line human-readable summary, using the same
// byte-formatting convention (go-humanize) the engine's other summary
// types use for user-facing output.
func (s Summary) String() string {
	return fmt.Sprintf("%d added, %d updated, %d unchanged (%s stored across %d new blob(s))",
		s.FilesAdded, s.FilesUpdated, s.FilesUnchanged, humanize.Bytes(uint64(s.BytesStored)), s.BlobsAdded)
}

// readResult is one file's payload plus its derived metadata, computed
// outside the database transaction so disk I/O and hashing for many files
// can run concurrently ahead of the single-writer commit step.
type readResult struct {
	scanner.ScannedFile
	payload   []byte
	kind      types.ContentKind
	encoding  string
	lineCount int
}

// Import ingests dir into project slug (created if absent; name/sourceURL
// only apply on first creation) using rs to classify and filter files.
// The whole operation runs inside one storage.Transaction: any failure
// rolls back every row this call would otherwise have written.
func Import(ctx context.Context, store storage.Store, slug, name, sourceURL, dir string, rs scanner.RuleSet) (Summary, error) {
	files, err := scanner.ReadAll(ctx, dir, rs)
	if err != nil {
		return Summary{}, fmt.Errorf("importer: scanning %s: %w", dir, err)
	}

	results, err := readAllConcurrently(ctx, files)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		project, err := tx.UpsertProject(ctx, slug, name, sourceURL)
		if err != nil {
			return fmt.Errorf("importer: upserting project %s: %w", slug, err)
		}

		for _, r := range results {
			if ctx.Err() != nil {
				return types.ErrCancelled
			}

			existingHash, existed, err := blobExists(ctx, tx, r)
			if err != nil {
				return err
			}
			_ = existingHash

			hash, err := tx.PutBlob(ctx, r.payload, r.kind, r.encoding)
			if err != nil {
				return fmt.Errorf("importer: storing blob for %s: %w", r.RelPath, err)
			}
			if !existed {
				summary.BlobsAdded++
				summary.BytesStored += int64(len(r.payload))
			}

			component := topLevelComponent(r.RelPath)
			file, err := tx.UpsertFile(ctx, project.ID, r.RelPath, r.TypeTag, component, r.lineCount, r.ModTime)
			if err != nil {
				return fmt.Errorf("importer: upserting file %s: %w", r.RelPath, err)
			}

			current, err := tx.GetCurrentFileContent(ctx, file.ID)
			if err != nil {
				return fmt.Errorf("importer: reading current content for %s: %w", r.RelPath, err)
			}

			switch {
			case current == nil:
				if _, err := tx.SetFileContent(ctx, file.ID, hash, int64(len(r.payload)), r.lineCount); err != nil {
					return fmt.Errorf("importer: setting initial content for %s: %w", r.RelPath, err)
				}
				summary.FilesAdded++
			case current.ContentHash != hash:
				if _, err := tx.SetFileContent(ctx, file.ID, hash, int64(len(r.payload)), r.lineCount); err != nil {
					return fmt.Errorf("importer: updating content for %s: %w", r.RelPath, err)
				}
				summary.FilesUpdated++
			default:
				summary.FilesUnchanged++
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// blobExists checks whether r's content hash is already stored, purely to
// decide whether this import call is the one that newly introduced the
// blob (for the summary's BlobsAdded/BytesStored counters); PutBlob itself
// is idempotent regardless of this check.
func blobExists(ctx context.Context, tx storage.Transaction, r readResult) (string, bool, error) {
	sum := sha256hex(r.payload)
	_, err := tx.GetBlob(ctx, sum)
	if err != nil {
		if _, ok := err.(*types.NotFoundError); ok {
			return sum, false, nil
		}
		return "", false, fmt.Errorf("importer: checking existing blob: %w", err)
	}
	return sum, true, nil
}

// readAllConcurrently reads and hashes every scanned file's payload ahead
// of the transaction, bounded to GOMAXPROCS workers at a time so a large
// import doesn't open unbounded file descriptors at once.
func readAllConcurrently(ctx context.Context, files []scanner.ScannedFile) ([]readResult, error) {
	results := make([]readResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, runtime.GOMAXPROCS(0)))

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if gctx.Err() != nil {
				return types.ErrCancelled
			}
			payload, kind, encoding, err := scanner.ReadFile(f.AbsPath)
			if err != nil {
				return fmt.Errorf("importer: reading %s: %w", f.RelPath, err)
			}
			results[i] = readResult{
				ScannedFile: f,
				payload:     payload,
				kind:        kind,
				encoding:    encoding,
				lineCount:   scanner.CountLines(payload),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func topLevelComponent(relPath string) string {
	if i := strings.Index(relPath, "/"); i >= 0 {
		return relPath[:i]
	}
	return ""
}

// ZeroTime is a sentinel modification time (the Unix epoch) for callers
// that need one.
var ZeroTime = time.Unix(0, 0)
