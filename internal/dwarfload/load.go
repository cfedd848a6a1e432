package dwarfload

import (
	"context"
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/typegraph/internal/ir"
)

var (
	// ErrUnknownFormat is returned for files that are neither ELF nor Mach-O.
	ErrUnknownFormat = errors.New("not an ELF or Mach-O object")
	// ErrNoDebugInfo is returned for objects without DWARF sections.
	ErrNoDebugInfo = errors.New("no DWARF debug info")
)

type options struct {
	jobs   int
	logger *slog.Logger
}

// Option configures Load.
type Option func(*options)

// WithJobs bounds the number of files decoded concurrently. Zero or less
// means GOMAXPROCS.
func WithJobs(n int) Option {
	return func(o *options) {
		o.jobs = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Load reads the DWARF type information of every file and merges it into
// one graph. Files are decoded in parallel; node IDs carry the file's
// position in paths in their high bits, so the merged graph does not
// depend on scheduling.
func Load(ctx context.Context, paths []string, opts ...Option) (*ir.Graph, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if len(paths) == 0 {
		return ir.NewGraph(), nil
	}

	jobs := o.jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Each goroutine writes its own slot; no mutex needed.
	graphs := make([]*ir.Graph, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(paths)))

	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			data, err := Open(path)
			if err != nil {
				return err
			}
			graph, err := FromData(data, i)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			o.logger.Debug("dwarf loaded", "path", path, "nodes", graph.Len(), "units", len(graph.Units()))
			graphs[i] = graph
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := ir.NewGraph()
	for i, graph := range graphs {
		if err := merged.Merge(graph); err != nil {
			return nil, fmt.Errorf("%s: %w", paths[i], err)
		}
	}
	return merged, nil
}

// Open reads the DWARF sections of an ELF or Mach-O file. The section data
// is copied into memory, so the file is closed before returning.
func Open(path string) (*dwarf.Data, error) {
	if f, err := elf.Open(path); err == nil {
		defer f.Close()
		return dwarfOf(path, f.DWARF)
	} else if !isFormatError(err) {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if f, err := macho.Open(path); err == nil {
		defer f.Close()
		return dwarfOf(path, f.DWARF)
	} else if !isFormatError(err) {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

func dwarfOf(path string, read func() (*dwarf.Data, error)) (*dwarf.Data, error) {
	data, err := read()
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", path, ErrNoDebugInfo, err)
	}
	return data, nil
}

func isFormatError(err error) bool {
	var elfErr *elf.FormatError
	var machoErr *macho.FormatError
	return errors.As(err, &elfErr) || errors.As(err, &machoErr)
}

// FromData decodes every type entry of d. fileIndex selects the high bits
// of the node IDs (see ir.UnitOrdinal); the low bits are the entry offset.
func FromData(d *dwarf.Data, fileIndex int) (*ir.Graph, error) {
	base, err := ir.UnitOrdinal(fileIndex)
	if err != nil {
		return nil, err
	}
	return decode(d.Reader(), base)
}
