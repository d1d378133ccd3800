package toaster

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/ssargent/niflheim/pkg/graph"
	"github.com/ssargent/niflheim/pkg/object"
)

// Options configure one Toaster.
type Options struct {
	// Log receives per-file progress and diagnostics. Nil disables
	// logging.
	Log *zap.Logger

	// Out is where printing spells write. Nil means os.Stdout.
	Out io.Writer

	// Formats lists the container families the run claims files for;
	// nil enables all built-ins with default options.
	Formats []Format

	// Include and Exclude filter records before branch recursion by
	// type name, inheritance included. Exclusion wins; an empty
	// Include admits every type.
	Include []string
	Exclude []string

	// Jobs caps how many files are toasted concurrently. Values below
	// one mean a single worker.
	Jobs int

	// DryRun redirects write-backs to a discarded temporary file.
	DryRun bool

	// InPlace authorizes overwriting originals via a temporary file
	// renamed into place. Without it, modifying spells behave as in a
	// dry run.
	InPlace bool

	// Resume skips files the cache remembers toasting clean.
	Resume bool

	// CachePath locates the result cache; empty disables caching.
	CachePath string
}

func (o *Options) normalize() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Log == nil {
		out.Log = zap.NewNop()
	}
	if out.Out == nil {
		out.Out = os.Stdout
	}
	if out.Formats == nil {
		out.Formats = Formats()
	}
	if out.Jobs < 1 {
		out.Jobs = 1
	}
	return out
}

// Report is one run's outcome.
type Report struct {
	// Run is the run's ksuid; Spell is the spell it cast.
	Run   string
	Spell string

	Started time.Time
	Elapsed time.Duration

	Toasted int
	Skipped int
	Failed  int

	// BytesRead sums the sizes of fully read files; BytesWritten sums
	// the encoder output, discarded dry-run bytes included.
	BytesRead    int64
	BytesWritten int64

	// Warnings counts the recoverable integrity issues reads surfaced.
	Warnings int

	// TypeCounts aggregates the record-type tallies spells filed.
	TypeCounts map[string]int

	// Failures maps each failed path to what went wrong.
	Failures map[string]string
}

// String renders the report in the form the command line prints.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s toasted %d, skipped %d, failed %d in %s\n",
		r.Run, r.Spell, r.Toasted, r.Skipped, r.Failed, r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "read %s, wrote %s, %d warnings\n",
		humanize.Bytes(uint64(r.BytesRead)), humanize.Bytes(uint64(r.BytesWritten)), r.Warnings)
	if len(r.TypeCounts) > 0 {
		names := make([]string, 0, len(r.TypeCounts))
		for name := range r.TypeCounts {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool {
			if r.TypeCounts[names[i]] != r.TypeCounts[names[j]] {
				return r.TypeCounts[names[i]] > r.TypeCounts[names[j]]
			}
			return names[i] < names[j]
		})
		for _, name := range names {
			fmt.Fprintf(&b, "  %8s  %s\n", humanize.Comma(int64(r.TypeCounts[name])), name)
		}
	}
	if len(r.Failures) > 0 {
		paths := make([]string, 0, len(r.Failures))
		for path := range r.Failures {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		for _, path := range paths {
			fmt.Fprintf(&b, "  failed %s: %s\n", path, r.Failures[path])
		}
	}
	return b.String()
}

// Toaster casts spells on every matching file under a directory tree.
type Toaster struct {
	opts  Options
	log   *zap.Logger
	cache *Cache
}

// New creates a Toaster. Close releases the cache when one is
// configured.
func New(opts *Options) (*Toaster, error) {
	o := opts.normalize()
	t := &Toaster{opts: o, log: o.Log}
	if o.CachePath != "" {
		cache, err := OpenCache(o.CachePath)
		if err != nil {
			return nil, fmt.Errorf("opening result cache: %w", err)
		}
		t.cache = cache
	}
	return t, nil
}

// Close releases the result cache.
func (t *Toaster) Close() error {
	if t.cache == nil {
		return nil
	}
	return t.cache.Close()
}

// Toast walks top, a directory or a single file, and casts the spell on
// every file a configured format claims. Per-file failures land in the
// report; the returned error covers the walk itself and cancellation.
func (t *Toaster) Toast(ctx context.Context, factory Factory, top string) (*Report, error) {
	run := ksuid.New()
	report := &Report{
		Run:     run.String(),
		Spell:   factory().Name(),
		Started: time.Now(),
	}
	t.log.Info("toasting",
		zap.String("run", report.Run),
		zap.String("spell", report.Spell),
		zap.String("top", top),
		zap.Int("jobs", t.opts.Jobs),
	)

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		paths = make(chan string)
	)
	for i := 0; i < t.opts.Jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				res := t.toastFile(ctx, factory, path, report.Run)
				mu.Lock()
				res.mergeInto(report)
				mu.Unlock()
			}
		}()
	}

	walkErr := filepath.WalkDir(top, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || t.formatFor(path) == nil {
			return nil
		}
		select {
		case paths <- path:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(paths)
	wg.Wait()

	report.Elapsed = time.Since(report.Started)
	t.log.Info("run finished",
		zap.String("run", report.Run),
		zap.Int("toasted", report.Toasted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, walkErr
}

func (t *Toaster) formatFor(path string) Format {
	base := filepath.Base(path)
	for _, f := range t.opts.Formats {
		if f.Match(base) {
			return f
		}
	}
	return nil
}

// fileResult is the outcome of toasting one file, merged into the run
// report under the report mutex.
type fileResult struct {
	path         string
	toasted      bool
	skipped      bool
	err          error
	bytesRead    int64
	bytesWritten int64
	warnings     int
	typeCounts   map[string]int
}

func (res fileResult) mergeInto(r *Report) {
	switch {
	case res.err != nil:
		r.Failed++
		if r.Failures == nil {
			r.Failures = make(map[string]string)
		}
		r.Failures[res.path] = res.err.Error()
	case res.skipped:
		r.Skipped++
	case res.toasted:
		r.Toasted++
	}
	r.BytesRead += res.bytesRead
	r.BytesWritten += res.bytesWritten
	r.Warnings += res.warnings
	for name, n := range res.typeCounts {
		if r.TypeCounts == nil {
			r.TypeCounts = make(map[string]int)
		}
		r.TypeCounts[name] += n
	}
}

func (t *Toaster) toastFile(ctx context.Context, factory Factory, path, run string) fileResult {
	res := fileResult{path: path}
	if err := ctx.Err(); err != nil {
		res.skipped = true
		return res
	}
	log := t.log.With(zap.String("file", path))

	info, err := os.Stat(path)
	if err != nil {
		res.err = err
		return res
	}
	spell := factory()

	if t.opts.Resume && t.cache != nil {
		if entry, ok := t.cache.Lookup(spell.Name(), path, info.ModTime(), info.Size()); ok {
			log.Info("already toasted", zap.String("run", entry.Run))
			res.skipped = true
			return res
		}
	}

	fh, err := os.Open(path)
	if err != nil {
		res.err = err
		return res
	}
	defer fh.Close()

	format := t.formatFor(path)
	header, err := format.Inspect(fh)
	if err != nil {
		res.err = fmt.Errorf("inspect: %w", err)
		return res
	}

	f := &File{
		Path:   path,
		Size:   info.Size(),
		Format: format,
		Header: header,
		Log:    log,
		Out:    t.opts.Out,
	}
	if !spell.DataInspect(f) {
		log.Debug("spell does not apply", zap.String("spell", spell.Name()))
		res.skipped = true
		return res
	}

	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		res.err = err
		return res
	}
	doc, err := format.Read(fh)
	if err != nil {
		res.err = fmt.Errorf("read: %w", err)
		return res
	}
	f.Doc = doc
	res.bytesRead = info.Size()

	if spell.DataEntry(f) {
		seen := make(map[*object.Record]bool)
		for _, root := range doc.Roots() {
			t.recurse(spell, f, root, seen)
		}
		spell.DataExit(f)
	}
	res.warnings = len(doc.Warnings())
	res.typeCounts = f.typeCounts
	if err := f.Err(); err != nil {
		res.err = err
		return res
	}

	wrote := false
	if !spell.ReadOnly() && spell.Changed() {
		n, renamed, err := t.writeBack(format, doc, path)
		if err != nil {
			res.err = fmt.Errorf("write: %w", err)
			return res
		}
		res.bytesWritten = n
		wrote = renamed
	}

	if t.cache != nil && !wrote {
		err := t.cache.Store(spell.Name(), path, info.ModTime(), info.Size(), CacheEntry{
			Run:      run,
			Spell:    spell.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime().UnixNano(),
			Warnings: res.warnings,
			Toasted:  time.Now(),
		})
		if err != nil {
			log.Warn("cache store failed", zap.Error(err))
		}
	}
	res.toasted = true
	return res
}

// recurse walks the record graph pre-order, visiting shared subtrees at
// their first encounter only, honoring the include and exclude filters
// and the spell's own gates.
func (t *Toaster) recurse(spell Spell, f *File, rec *object.Record, seen map[*object.Record]bool) {
	if rec == nil || seen[rec] {
		return
	}
	seen[rec] = true
	if !t.admissible(rec) || !spell.BranchInspect(f, rec) {
		return
	}
	if !spell.BranchEntry(f, rec) {
		return
	}
	f.Depth++
	for _, child := range graph.Children(rec) {
		t.recurse(spell, f, child, seen)
	}
	f.Depth--
	spell.BranchExit(f, rec)
}

func (t *Toaster) admissible(rec *object.Record) bool {
	for _, name := range t.opts.Exclude {
		if rec.Type().IsDescendantOf(name) {
			return false
		}
	}
	if len(t.opts.Include) == 0 {
		return true
	}
	for _, name := range t.opts.Include {
		if rec.Type().IsDescendantOf(name) {
			return true
		}
	}
	return false
}

// writeBack encodes doc into a temporary file next to path and renames
// it over the original. Dry runs and runs without in-place authority
// keep the temporary file out of the way and discard it; the encode
// still happens so a broken write surfaces either way. The returned
// bool reports whether path itself changed.
func (t *Toaster) writeBack(format Format, doc Document, path string) (int64, bool, error) {
	discard := t.opts.DryRun || !t.opts.InPlace
	dir := filepath.Dir(path)
	if discard {
		dir = os.TempDir()
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".toast-*")
	if err != nil {
		return 0, false, err
	}
	name := tmp.Name()
	defer os.Remove(name)

	if err := format.Write(tmp, doc); err != nil {
		tmp.Close()
		return 0, false, err
	}
	size, err := tmp.Seek(0, io.SeekEnd)
	if err != nil {
		tmp.Close()
		return 0, false, err
	}
	if discard {
		tmp.Close()
		return size, false, nil
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, false, err
	}
	if err := tmp.Close(); err != nil {
		return 0, false, err
	}
	if err := os.Rename(name, path); err != nil {
		return 0, false, err
	}
	return size, true, nil
}
