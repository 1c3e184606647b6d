package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/yu-iskw/dbt-fusion/internal/catalog"
	"github.com/yu-iskw/dbt-fusion/internal/compiler"
	"github.com/yu-iskw/dbt-fusion/internal/config"
	"github.com/yu-iskw/dbt-fusion/internal/manifest"
	"github.com/yu-iskw/dbt-fusion/internal/node"
	"github.com/yu-iskw/dbt-fusion/internal/schema"
)

// LoadResult contains the selector definitions read from a file or
// directory.
type LoadResult struct {
	Definitions []schema.Definition
	Files       []string // source files, sorted
}

// LoadError represents an error that occurred while loading selectors or
// nodes.
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

// Error code constants - unified across all CLI commands. Validation codes
// E100 and up come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No selector files found
	ErrCodeLoadFailed  = "E004" // YAML, CUE or manifest could not be read
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build or selector compilation failed
	ErrCodeWriteFailed = "E007" // Catalog write error
)

// LoadSelectors reads selector definitions from path.
//
// A .yml or .yaml file is decoded as selectors.yml. A .cue file, or a
// directory holding a CUE package, is evaluated with the CUE SDK and its
// selectors list compiled with compiler.CompileSelectors.
func LoadSelectors(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("selectors path not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing selectors path: %v", err)}
	}

	if info.IsDir() {
		return loadCUEDir(path)
	}

	switch filepath.Ext(path) {
	case ".yml", ".yaml":
		return loadYAMLFile(path)
	case ".cue":
		return loadCUEFile(path)
	default:
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("unsupported selectors file %s (want .yml, .yaml or .cue)", path)}
	}
}

func loadYAMLFile(path string) (*LoadResult, error) {
	f, err := schema.LoadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	return &LoadResult{Definitions: f.Selectors, Files: []string{path}}, nil
}

func loadCUEFile(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	defs, err := compileValue(value)
	if err != nil {
		return nil, err
	}
	return &LoadResult{Definitions: defs, Files: []string{path}}, nil
}

func loadCUEDir(dir string) (*LoadResult, error) {
	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	// Load CUE instances
	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	defs, err := compileValue(ctx.BuildInstance(inst))
	if err != nil {
		return nil, err
	}
	return &LoadResult{Definitions: defs, Files: cueFiles}, nil
}

func compileValue(value cue.Value) ([]schema.Definition, error) {
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	defs, err := compiler.CompileSelectors(value)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return defs, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
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
	sort.Strings(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    ErrCodeBuildFailed,
			Message: compileErr.Field + ": " + compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
}

// LoadNodes reads the node snapshot from a manifest, or from a sqlite
// catalog when no manifest is given.
func LoadNodes(ctx context.Context, manifestPath, dbPath string) ([]*node.Node, error) {
	switch {
	case manifestPath != "":
		if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest not found: %s", manifestPath)}
		}
		nodes, err := manifest.Load(manifestPath)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		}
		return nodes, nil
	case dbPath != "":
		cat, err := openCatalog(dbPath)
		if err != nil {
			return nil, err
		}
		defer cat.Close()
		nodes, err := cat.ReadNodes(ctx)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
		}
		return nodes, nil
	default:
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "no node source: pass --manifest or --db, or set manifest in " + config.FileName}
	}
}

// openCatalog opens an existing catalog database. The catalog is never
// created implicitly outside of import.
func openCatalog(dbPath string) (*catalog.Catalog, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("catalog not found: %s (run dbtsel import first)", dbPath)}
	}
	cat, err := catalog.Open(dbPath)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
	}
	return cat, nil
}

// reportLoadError writes err through the formatter and returns the command
// error (exit code 2).
func reportLoadError(f *OutputFormatter, err error) error {
	code, message := ErrCodeGeneric, err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
		message = loadErr.Message
		if loadErr.Pos.IsValid() {
			message = fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), message)
		}
	}
	_ = f.Error(code, message, nil)
	return exitf(ExitCommandError, "%s: %s", code, message)
}
