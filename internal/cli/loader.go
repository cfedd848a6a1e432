package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/typegraph/internal/compiler"
	"github.com/roach88/typegraph/internal/dwarfload"
	"github.com/roach88/typegraph/internal/ir"
)

// LoadResult contains a loaded type graph.
type LoadResult struct {
	Graph *ir.Graph

	// Compiled carries the declaration labels of CUE inputs. It is nil
	// for binaries.
	Compiled *compiler.Compiled

	// Source describes the inputs, e.g. "cue:types.cue" or "dwarf:a.out".
	Source    string
	FileCount int
}

// LoadError represents an error that occurred while loading inputs.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE or DWARF load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeMixedInputs = "E008" // CUE and binary inputs mixed
	ErrCodeStore       = "E009" // Database error

	// Reference and query errors
	ErrCodeUnknownNode = "E010" // Node reference does not resolve
	ErrCodeRunNotFound = "E011" // No such analysis run
	ErrCodeBadFilter   = "E012" // Query filter does not parse or validate

	// Graph description errors
	ErrCodeCompile      = "E200" // Malformed type description
	ErrCodeUnknownKind  = "E201" // Unknown kind or encoding
	ErrCodeUndefinedRef = "E202" // Type reference to an undeclared label
	ErrCodeCycle        = "E210" // Typedef or pointer loop

	ErrCodeInvariant = "E300" // Analysis cache invariant violated
)

// LoadGraph loads a type graph from inputs: one CUE file, several CUE
// files, a directory of CUE files, or one or more ELF / Mach-O binaries
// with DWARF debug info. Binaries are decoded up to jobs at a time.
func LoadGraph(ctx context.Context, inputs []string, jobs int, logger *slog.Logger) (*LoadResult, error) {
	if len(inputs) == 0 {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "no input given"}
	}

	var cueFiles, binaries []string
	for _, in := range inputs {
		info, err := os.Stat(in)
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("input not found: %s", in)}
		}
		if err != nil {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing input: %v", err)}
		}
		switch {
		case info.IsDir():
			if len(inputs) > 1 {
				return nil, &LoadError{Code: ErrCodeMixedInputs, Message: "a directory must be the only input"}
			}
			return loadCUEDir(in)
		case filepath.Ext(in) == ".cue":
			cueFiles = append(cueFiles, in)
		default:
			binaries = append(binaries, in)
		}
	}
	if len(cueFiles) > 0 && len(binaries) > 0 {
		return nil, &LoadError{Code: ErrCodeMixedInputs, Message: "cannot mix CUE descriptions and binaries"}
	}
	if len(cueFiles) == 1 {
		return loadCUEFile(cueFiles[0])
	}
	if len(cueFiles) > 1 {
		return loadCUEInstance(cueFiles, &load.Config{}, "cue:"+strings.Join(cueFiles, ","), len(cueFiles))
	}

	g, err := dwarfload.Load(ctx, binaries, dwarfload.WithJobs(jobs), dwarfload.WithLogger(logger))
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	return &LoadResult{
		Graph:     g,
		Source:    "dwarf:" + strings.Join(binaries, ","),
		FileCount: len(binaries),
	}, nil
}

func loadCUEFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	c, err := compiler.CompileLabeledSource(string(data), path)
	if err != nil {
		return nil, convertCompileError(err, path)
	}
	return &LoadResult{Graph: c.Graph, Compiled: c, Source: "cue:" + path, FileCount: 1}, nil
}

func loadCUEDir(dir string) (*LoadResult, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}
	return loadCUEInstance([]string{"."}, &load.Config{Dir: dir}, "cue:"+dir, len(cueFiles))
}

// loadCUEInstance builds one CUE instance from args and compiles it.
func loadCUEInstance(args []string, cfg *load.Config, source string, fileCount int) (*LoadResult, error) {
	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	// Check for load errors
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	c, err := compiler.CompileLabeled(value)
	if err != nil {
		return nil, convertCompileError(err, source)
	}
	return &LoadResult{Graph: c.Graph, Compiled: c, Source: source, FileCount: fileCount}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapCompileErrorToCode(compileErr),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapCompileErrorToCode maps a compiler error to an error code.
func MapCompileErrorToCode(err *compiler.CompileError) string {
	switch {
	case strings.HasPrefix(err.Message, "undefined type reference"):
		return ErrCodeUndefinedRef
	case strings.HasSuffix(err.Field, ".kind"), strings.HasSuffix(err.Field, ".encoding"):
		return ErrCodeUnknownKind
	default:
		return ErrCodeCompile
	}
}

// ResolveNode finds the node ref names. Accepted forms, tried in order:
//   - a CUE declaration label, "<unit>:<label>" or a unique bare label
//   - a node ID in decimal, 0x-prefixed hex or "#0x..." as printed
//   - a declared type name, "<unit>:<name>" or a unique bare name
func (r *LoadResult) ResolveNode(ref string) (ir.NodeID, error) {
	if r.Compiled != nil {
		if id, err := r.Compiled.Resolve(ref); err == nil {
			return id, nil
		}
	}
	if id, err := strconv.ParseUint(strings.TrimPrefix(ref, "#"), 0, 64); err == nil {
		if _, ok := r.Graph.Lookup(ir.NodeID(id)); ok {
			return ir.NodeID(id), nil
		}
		return ir.NoNode, &LoadError{Code: ErrCodeUnknownNode, Message: fmt.Sprintf("no node with id %s", ir.NodeID(id))}
	}

	unit, name := "", ref
	if i := strings.LastIndex(ref, ":"); i > 0 {
		unit, name = ref[:i], ref[i+1:]
	}
	ids := r.Graph.FindByName(unit, name)
	if len(ids) > 1 {
		// Prefer the single definition among declarations of one name.
		var defs []ir.NodeID
		for _, id := range ids {
			if !r.Graph.IsDeclaration(id) {
				defs = append(defs, id)
			}
		}
		if len(defs) == 1 {
			ids = defs
		}
	}
	switch len(ids) {
	case 0:
		return ir.NoNode, &LoadError{Code: ErrCodeUnknownNode, Message: fmt.Sprintf("undefined type reference %q", ref)}
	case 1:
		return ids[0], nil
	default:
		return ir.NoNode, &LoadError{
			Code:    ErrCodeUnknownNode,
			Message: fmt.Sprintf("ambiguous type reference %q matches %d nodes; qualify it with a unit or use an id", ref, len(ids)),
		}
	}
}

// Label names a node for output: its CUE label when known, otherwise its
// unit, name and ID.
func (r *LoadResult) Label(id ir.NodeID) string {
	if r.Compiled != nil {
		if l, ok := r.Compiled.Label(id); ok {
			return l
		}
	}
	n, ok := r.Graph.Lookup(id)
	if !ok {
		return id.String()
	}
	if n.Name == "" {
		return fmt.Sprintf("%s:<anonymous %s> %s", n.Unit, n.Kind, id)
	}
	return fmt.Sprintf("%s:%s %s", n.Unit, n.Name, id)
}

// load runs LoadGraph with the configured job count. Load failures are
// reported through formatter and returned as command errors.
func (o *RootOptions) load(cmd *cobra.Command, formatter *OutputFormatter, inputs []string, jobs int) (*LoadResult, error) {
	if jobs <= 0 {
		jobs = o.config().Analysis.Jobs
	}
	lr, err := LoadGraph(cmd.Context(), inputs, jobs, o.logger())
	if err != nil {
		return nil, outputCommandError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d node(s) from %d file(s)", lr.Graph.Len(), lr.FileCount)
	return lr, nil
}

// resolve resolves each ref against lr, reporting the first failure.
func resolve(formatter *OutputFormatter, lr *LoadResult, refs ...string) ([]ir.NodeID, error) {
	ids := make([]ir.NodeID, len(refs))
	for i, ref := range refs {
		id, err := lr.ResolveNode(ref)
		if err != nil {
			return nil, outputCommandError(formatter, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// outputCommandError prints err and converts it to an ExitCommandError.
func outputCommandError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	message := err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code, message = loadErr.Code, loadErr.Error()
		if !loadErr.Pos.IsValid() {
			message = loadErr.Message
		}
	}
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}
