package dedup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"redgrab/pkg/logger"
)

// Ledger maps content hashes to the first file path written with that
// hash. It is a passive store: dedup policy lives in the orchestrator.
// Entries are write-once per hash and the map never shrinks.
type Ledger struct {
	entries map[string]string
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]string)}
}

// NewLedgerFrom creates a ledger pre-seeded with existing hash→path
// entries, typically from SeedFromDirectory.
func NewLedgerFrom(seed map[string]string) *Ledger {
	l := NewLedger()
	for hash, path := range seed {
		l.entries[hash] = path
	}
	return l
}

// Record stores the first-seen path for a hash. Later calls with the
// same hash keep the original mapping.
func (l *Ledger) Record(hash, path string) {
	if _, ok := l.entries[hash]; ok {
		return
	}
	l.entries[hash] = path
}

// Lookup returns the first-seen path for a hash.
func (l *Ledger) Lookup(hash string) (string, bool) {
	path, ok := l.entries[hash]
	return path, ok
}

// Len returns the number of distinct hashes recorded.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// SeedFromDirectory walks an existing output tree and computes the
// content hash of every regular file, using at most workers goroutines.
// Hashing is side-effect-free per file, so this is a plain fork-join: the
// merged mapping is returned only after every worker finishes. When two
// files share a hash, which path wins is unspecified.
func SeedFromDirectory(ctx context.Context, root string, workers int, log logger.Logger) (map[string]string, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if workers <= 0 {
		workers = 1
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk existing tree: %w", err)
	}

	seed := make(map[string]string, len(paths))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hash, err := hashFile(path)
			if err != nil {
				// A vanished or unreadable file should not sink the
				// whole scan.
				log.WarnWithFields("failed to hash existing file", map[string]interface{}{
					"path":  path,
					"error": err.Error(),
				})
				return nil
			}
			mu.Lock()
			seed[hash] = path
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.InfoWithFields("scanned existing output tree", map[string]interface{}{
		"root":   root,
		"files":  len(paths),
		"hashes": len(seed),
	})
	return seed, nil
}

// hashFile computes the MD5 digest of a file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
