package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/defgeneric/internal/compiler"
	"github.com/roach88/defgeneric/internal/ir"
)

// Error codes shared by every command that reads definitions.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeScanError   = "E002" // directory walk failed
	ErrCodeNoFiles     = "E003"
	ErrCodeLoadFailed  = "E004" // cue/load rejected the package
	ErrCodeNotFound    = "E005"
	ErrCodeBuildFailed = "E006" // package loaded but does not evaluate
	ErrCodeWriteFailed = "E007"

	ErrCodeClassBlock    = "E008"
	ErrCodeInstanceBlock = "E009"
	ErrCodeGenericBlock  = "E010"
)

// LoadMode selects whether loading stops at the first malformed block.
type LoadMode int

const (
	LoadModeFailFast LoadMode = iota
	LoadModeCollectAll
)

// LoadResult is a loaded definitions package.
type LoadResult struct {
	Definitions *ir.Definitions
	CUEValue    cue.Value
	FileCount   int
}

// LoadError is a problem reading a definitions package, positioned in
// the CUE source when the compiler knows where.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if !e.Pos.IsValid() {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
}

func loadErrorf(code, format string, args ...any) []error {
	return []error{&LoadError{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// LoadDefinitions reads the CUE package in dir and compiles its class,
// instance and generic blocks. A nil result means the package itself
// could not be read; otherwise the errors are malformed blocks, and in
// LoadModeCollectAll every block has been tried.
func LoadDefinitions(dir string, mode LoadMode) (*LoadResult, []error) {
	value, files, errs := buildPackage(dir)
	if errs != nil {
		return nil, errs
	}

	l := &blockLoader{root: value, mode: mode}
	defs := &ir.Definitions{}
	blocks := []struct {
		name    string
		compile func(cue.Value) error
	}{
		{"class", func(v cue.Value) error {
			spec, err := compiler.CompileClass(v)
			if err == nil {
				defs.Classes = append(defs.Classes, *spec)
			}
			return err
		}},
		{"instance", func(v cue.Value) error {
			spec, err := compiler.CompileInstance(v)
			if err == nil {
				defs.Instances = append(defs.Instances, *spec)
			}
			return err
		}},
		{"generic", func(v cue.Value) error {
			spec, err := compiler.CompileGeneric(v)
			if err == nil {
				defs.Generics = append(defs.Generics, *spec)
			}
			return err
		}},
	}
	for _, b := range blocks {
		if !l.each(b.name, b.compile) {
			break
		}
	}

	// On a cycle the declaration order stays; validation reports the loop.
	if ordered, err := compiler.OrderClasses(defs.Classes); err == nil {
		defs.Classes = ordered
	}

	if len(l.errs) == 0 && len(defs.Classes)+len(defs.Instances)+len(defs.Generics) == 0 {
		l.errs = loadErrorf(ErrCodeGeneric, "no classes, instances or generics found in definitions")
	}
	return &LoadResult{Definitions: defs, CUEValue: value, FileCount: files}, l.errs
}

// buildPackage checks dir and evaluates the CUE package in it.
func buildPackage(dir string) (cue.Value, int, []error) {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return cue.Value{}, 0, loadErrorf(ErrCodeNotFound, "definitions directory not found: %s", dir)
	case err != nil:
		return cue.Value{}, 0, loadErrorf(ErrCodeNotFound, "error accessing definitions directory: %v", err)
	case !info.IsDir():
		return cue.Value{}, 0, loadErrorf(ErrCodeNotFound, "not a directory: %s", dir)
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return cue.Value{}, 0, loadErrorf(ErrCodeScanError, "error scanning directory: %v", err)
	}
	if len(files) == 0 {
		return cue.Value{}, 0, loadErrorf(ErrCodeNoFiles, "no CUE files found in %s", dir)
	}

	insts := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(insts) == 0 {
		return cue.Value{}, 0, loadErrorf(ErrCodeLoadFailed, "no CUE instances loaded")
	}
	if err := insts[0].Err; err != nil {
		return cue.Value{}, 0, loadErrorf(ErrCodeLoadFailed, "loading CUE files: %v", err)
	}

	value := cuecontext.New().BuildInstance(insts[0])
	if err := value.Err(); err != nil {
		return cue.Value{}, 0, loadErrorf(ErrCodeBuildFailed, "building CUE value: %v", err)
	}
	return value, len(files), nil
}

// blockLoader walks the entries of the top-level blocks of a package,
// collecting errors according to mode.
type blockLoader struct {
	root cue.Value
	mode LoadMode
	errs []error
}

// each compiles every entry of block and reports whether loading should
// go on.
func (l *blockLoader) each(block string, compile func(cue.Value) error) bool {
	v := l.root.LookupPath(cue.ParsePath(block))
	if !v.Exists() {
		return true
	}
	iter, err := v.Fields()
	if err != nil {
		l.errs = append(l.errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating %s blocks: %v", block, err)})
		return l.mode == LoadModeCollectAll
	}
	for iter.Next() {
		if err := compile(iter.Value()); err != nil {
			l.errs = append(l.errs, asLoadError(err, block+"."+iter.Label()))
			if l.mode == LoadModeFailFast {
				return false
			}
		}
	}
	return true
}

// FindCUEFiles returns every .cue file under dir.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".cue") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func asLoadError(err error, field string) *LoadError {
	var ce *compiler.CompileError
	if !errors.As(err, &ce) {
		return &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%s: %v", field, err)}
	}
	return &LoadError{Code: FieldErrorCode(ce.Field), Message: ce.Message, Pos: ce.Pos}
}

// FieldErrorCode picks the error code for a compiler error field such as
// "class.CIRCLE.superclasses" or "generic.area.method[0].body".
func FieldErrorCode(field string) string {
	if field == "class" {
		return compiler.ErrInheritanceLoop
	}
	head, _, found := strings.Cut(field, ".")
	if !found {
		return ErrCodeGeneric
	}
	switch head {
	case "class":
		return ErrCodeClassBlock
	case "instance":
		return ErrCodeInstanceBlock
	case "generic":
		return ErrCodeGenericBlock
	}
	return ErrCodeGeneric
}

// loadValidDefinitions loads dir fail-fast and refuses definitions that
// do not validate. Commands that run code use it.
func loadValidDefinitions(dir string) (*ir.Definitions, error) {
	loaded, errs := LoadDefinitions(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if verrs := compiler.Validate(loaded.Definitions); len(verrs) > 0 {
		return nil, verrs[0]
	}
	return loaded.Definitions, nil
}
