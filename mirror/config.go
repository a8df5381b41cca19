package mirror

import (
	stderrors "errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-bridge/errors"
	"github.com/wippyai/wasm-bridge/layout"
)

// File is a declaration file describing reference layouts.
//
//	framework: 6.2.4
//	mirrors:
//	  - name: Date
//	    by_value: true
//	    fields: [{name: jd, type: s64}]
//	  - name: Polygon
//	    layouts:
//	      - since: 5.0.0
//	        fields: [{name: d, type: ptr}]
//	      - since: 6.0.0
//	        fields: [{name: d, type: "ptr[3]"}]
type File struct {
	Framework string     `yaml:"framework,omitempty"`
	Mirrors   []FileDecl `yaml:"mirrors"`
}

// FileDecl is one mirror entry of a declaration file.
type FileDecl struct {
	Name    string         `yaml:"name"`
	Kind    string         `yaml:"kind,omitempty"`
	Fields  []layout.Field `yaml:"fields,omitempty"`
	Layouts []FileLayout   `yaml:"layouts,omitempty"`
	ByValue bool           `yaml:"by_value,omitempty"`
}

// FileLayout is one versioned layout of a declaration file entry.
type FileLayout struct {
	Since  string         `yaml:"since"`
	Kind   string         `yaml:"kind,omitempty"`
	Fields []layout.Field `yaml:"fields"`
}

// LoadFile reads a declaration file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.NotFound(errors.PhaseConfig, "declaration file", path)
		}
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "read "+path)
	}
	return ParseFile(data)
}

// ParseFile decodes a declaration file.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.ParseFailed("declaration file", err)
	}
	if f.Framework != "" && Canonical(f.Framework) == "" {
		return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("invalid framework version %q", f.Framework))
	}
	return &f, nil
}

// Marshal encodes the file as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// Declarations converts the file entries into declarations.
func (f *File) Declarations() ([]Declaration, error) {
	decls := make([]Declaration, 0, len(f.Mirrors))
	seen := make(map[string]bool, len(f.Mirrors))
	for _, fd := range f.Mirrors {
		if fd.Name == "" {
			return nil, errors.InvalidInput(errors.PhaseConfig, "mirror without a name")
		}
		if seen[fd.Name] {
			return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("duplicate mirror %q", fd.Name))
		}
		seen[fd.Name] = true

		decl := Declaration{Name: fd.Name, ByValue: fd.ByValue}
		switch {
		case len(fd.Layouts) > 0:
			for _, fl := range fd.Layouts {
				ref, err := layout.Parse(fl.Kind, fl.Fields)
				if err != nil {
					return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
						Path(fd.Name, fl.Since).
						Cause(err).
						Build()
				}
				decl.Layouts = append(decl.Layouts, Versioned{Since: fl.Since, Reference: ref})
			}
		case len(fd.Fields) > 0:
			ref, err := layout.Parse(fd.Kind, fd.Fields)
			if err != nil {
				return nil, errors.New(errors.PhaseConfig, errors.KindInvalidData).
					Path(fd.Name).
					Cause(err).
					Build()
			}
			decl.Reference = ref
		default:
			return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("mirror %q declares no fields", fd.Name))
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// Bind pairs declarations with Go types by name. Names are matched case
// insensitively against the keys of goTypes.
func Bind(decls []Declaration, goTypes map[string]reflect.Type) ([]Mirror, error) {
	byName := make(map[string]reflect.Type, len(goTypes))
	for name, t := range goTypes {
		byName[strings.ToLower(name)] = t
	}

	mirrors := make([]Mirror, 0, len(decls))
	for _, d := range decls {
		t, ok := byName[strings.ToLower(d.Name)]
		if !ok {
			return nil, errors.NotFound(errors.PhaseConfig, "mirror type", d.Name)
		}
		mirrors = append(mirrors, Mirror{GoType: t, Declaration: d})
	}
	return mirrors, nil
}
