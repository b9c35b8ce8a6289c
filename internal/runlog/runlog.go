// Package runlog records which source files each load step has consumed,
// keyed by a content checksum, so repeated runs can skip unchanged inputs.
package runlog

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/EmpoweredVote/precinct-data/internal/batch"
	"github.com/EmpoweredVote/precinct-data/internal/keystore"
)

const TagRun keystore.Tag = "run"

// Entry is the last successful load of one file by one step.
type Entry struct {
	Step     string      `json:"step"`
	Path     string      `json:"path"`
	Checksum string      `json:"checksum"`
	Size     int64       `json:"size"`
	LoadedAt time.Time   `json:"loaded_at"`
	Stats    batch.Stats `json:"stats"`
}

var (
	ByStepPath = keystore.NewView("run_by_step_path", TagRun, func(e Entry) []keystore.Key {
		return []keystore.Key{keystore.K(e.Step, e.Path)}
	})
	ByStep = keystore.NewView("run_by_step", TagRun, func(e Entry) []keystore.Key {
		return []keystore.Key{keystore.K(e.Step)}
	})
)

func Views() []keystore.View { return []keystore.View{ByStepPath, ByStep} }

// Checksum returns the hex BLAKE2b-256 digest of r and the bytes read.
func Checksum(r io.Reader) (string, int64, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ChecksumFile is Checksum over the file at path.
func ChecksumFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Checksum(f)
}

type Ledger struct {
	store *keystore.Store
}

func NewLedger(s *keystore.Store) *Ledger { return &Ledger{store: s} }

// Unchanged reports whether step last loaded path with the same checksum.
func (l *Ledger) Unchanged(ctx context.Context, step, path, checksum string) (bool, error) {
	docs, err := keystore.Find[Entry](ctx, l.store, ByStepPath, keystore.K(step, path))
	if err != nil {
		return false, err
	}
	for _, d := range docs {
		if d.Value.Checksum == checksum {
			return true, nil
		}
	}
	return false, nil
}

// Record stores the outcome of a load, replacing any earlier entry for the
// same step and path.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.LoadedAt.IsZero() {
		e.LoadedAt = time.Now().UTC()
	}
	docs, err := keystore.Find[Entry](ctx, l.store, ByStepPath, keystore.K(e.Step, e.Path))
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		_, err = l.store.Put(ctx, TagRun, e)
		return err
	}
	return l.store.Update(ctx, docs[0].ID, e)
}

// Forget drops every entry recorded for the given steps, so their next
// load reads the sources again. It returns the number of entries dropped.
func (l *Ledger) Forget(ctx context.Context, steps ...string) (int, error) {
	n := 0
	for _, step := range steps {
		ids, err := l.store.Query(ctx, ByStep, keystore.K(step))
		if err != nil {
			return n, err
		}
		for _, id := range ids {
			if err := l.store.Delete(ctx, id); err != nil {
				return n, fmt.Errorf("forget %s: %w", step, err)
			}
			n++
		}
	}
	if n > 0 {
		log.Printf("[runlog] forgot %d entries for %v", n, steps)
	}
	return n, nil
}

// History lists the entries recorded for step, oldest first.
func (l *Ledger) History(ctx context.Context, step string) ([]Entry, error) {
	docs, err := keystore.Find[Entry](ctx, l.store, ByStep, keystore.K(step))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Value)
	}
	return out, nil
}

// LoadFunc loads one opened source file.
type LoadFunc func(ctx context.Context, src io.Reader) (batch.Stats, error)

// LoadFile runs load over path and records it. With skipUnchanged set, a
// file whose checksum matches the last recorded load is not read again and
// the returned stats count it as unchanged.
func (l *Ledger) LoadFile(ctx context.Context, step, path string, skipUnchanged bool, load LoadFunc) (batch.Stats, error) {
	sum, size, err := ChecksumFile(path)
	if err != nil {
		return batch.Stats{}, err
	}
	if skipUnchanged {
		same, err := l.Unchanged(ctx, step, path, sum)
		if err != nil {
			return batch.Stats{}, err
		}
		if same {
			log.Printf("[runlog] %s: %s unchanged since last load, skipping", step, path)
			return batch.Stats{Unchanged: 1}, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return batch.Stats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	stats, err := load(ctx, f)
	if err != nil {
		return stats, err
	}
	if err := l.Record(ctx, Entry{Step: step, Path: path, Checksum: sum, Size: size, Stats: stats}); err != nil {
		return stats, fmt.Errorf("record %s %s: %w", step, path, err)
	}
	return stats, nil
}
