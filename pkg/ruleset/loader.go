package ruleset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// MaxFileSize is the largest rule-set file accepted.
const MaxFileSize = 1 << 20

var validate = validator.New()

// Parse decodes and structurally validates a rule-set document.
// source is only used in error messages.
func Parse(data []byte, source string) (*File, error) {
	if !utf8.Valid(data) {
		return nil, &LoadError{FilePath: source, Message: "file contains invalid UTF-8 encoding"}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{FilePath: source, Message: "file is empty"}
		}
		return nil, &LoadError{FilePath: source, Message: "YAML parsing failed", Cause: err}
	}

	if err := Check(&f, source); err != nil {
		return nil, err
	}
	return &f, nil
}

// Check validates struct tags and cross-rule constraints of f.
func Check(f *File, source string) error {
	errList := &ErrorList{}

	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errList.Add(&ValidationError{
				FilePath:  source,
				FieldPath: strings.TrimPrefix(fe.Namespace(), "File."),
				Message:   describeTag(fe),
			})
		}
	}

	seen := make(map[string]bool, len(f.Rules))
	for _, r := range f.Rules {
		if r.ID == "" {
			continue
		}
		if seen[r.ID] {
			errList.Add(&ValidationError{FilePath: source, RuleID: r.ID, Message: "duplicate rule id"})
		}
		seen[r.ID] = true
	}

	return errList.ToError()
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "gte", "lte":
		return fmt.Sprintf("failed %s=%s", fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// Build compiles every rule of f. All compile errors are reported together.
func Build(f *File, compiler *Compiler, source string) (*RuleSet, error) {
	rs := &RuleSet{
		Category:    f.Category,
		Version:     f.Version,
		TemplateID:  f.TemplateID,
		Description: f.Description,
		Specs:       append([]RuleSpec(nil), f.Rules...),
		Source:      source,
		LoadedAt:    time.Now().UTC(),
	}
	if rs.TemplateID == "" {
		rs.TemplateID = f.Category
	}

	errList := &ErrorList{}
	for _, spec := range f.Rules {
		rule, err := compiler.Compile(spec)
		if err != nil {
			errList.Add(err)
			continue
		}
		rs.Rules = append(rs.Rules, rule)
	}
	if err := errList.ToError(); err != nil {
		return nil, err
	}
	return rs, nil
}

// LoadFile reads, validates and compiles a single rule-set file.
func LoadFile(path string, compiler *Compiler) (*RuleSet, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{FilePath: path, Message: "file not found", Cause: err}
		}
		return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}
	if info.Size() > MaxFileSize {
		return nil, &LoadError{
			FilePath: path,
			Message:  fmt.Sprintf("file size %d bytes exceeds maximum %d bytes", info.Size(), MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "failed to read file", Cause: err}
	}

	f, err := Parse(data, path)
	if err != nil {
		return nil, err
	}
	return Build(f, compiler, path)
}

// Source produces rule sets for a Registry.
type Source interface {
	Load(ctx context.Context) ([]*RuleSet, error)
}

// FileSource loads rule sets from a file or a directory tree of YAML files.
type FileSource struct {
	Path       string
	Compiler   *Compiler
	SkipHidden bool
}

// NewFileSource creates a file source with a fresh compiler.
func NewFileSource(path string) (*FileSource, error) {
	c, err := NewCompiler()
	if err != nil {
		return nil, err
	}
	return &FileSource{Path: path, Compiler: c, SkipHidden: true}, nil
}

// Load implements Source. Every file must load; the first failure of each
// file is collected and returned together.
func (s *FileSource) Load(ctx context.Context) ([]*RuleSet, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, &LoadError{FilePath: s.Path, Message: "failed to access path", Cause: err}
	}
	if !info.IsDir() {
		rs, err := LoadFile(s.Path, s.Compiler)
		if err != nil {
			return nil, err
		}
		return []*RuleSet{rs}, nil
	}

	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &LoadError{FilePath: s.Path, Message: "no rule-set files found in directory"}
	}

	var sets []*RuleSet
	errList := &ErrorList{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rs, err := LoadFile(path, s.Compiler)
		if err != nil {
			errList.Add(err)
			continue
		}
		sets = append(sets, rs)
	}
	if err := errList.ToError(); err != nil {
		return nil, err
	}
	return sets, nil
}

// Files lists the rule-set files under Path in walk order. A file Path is
// returned as is.
func (s *FileSource) Files() ([]string, error) {
	if info, err := os.Stat(s.Path); err == nil && !info.IsDir() {
		return []string{s.Path}, nil
	}
	var files []string
	err := filepath.WalkDir(s.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if s.SkipHidden && path != s.Path && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{FilePath: s.Path, Message: "failed to walk directory", Cause: err}
	}
	return files, nil
}
