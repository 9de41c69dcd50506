package registry

// Package registry holds the ordered catalog of regression cases run
// against the runtime. The catalog is data: it is decoded from YAML once
// at startup and never modified afterwards.

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRegistry []byte

// TestCase describes one invocation of the runtime.
type TestCase struct {
	// Name is the qualified entry point passed as the last argument.
	Name string
	// ExpectedExitCode is the exit status that means the case passed.
	ExpectedExitCode int
	// ExtraArgs are inserted between the classpath flag and Name.
	ExtraArgs []string
	// Archs lists the architectures the case runs on.
	Archs []string
}

// SupportedOn reports whether the case is selected on arch.
func (tc TestCase) SupportedOn(arch string) bool {
	return slices.Contains(tc.Archs, arch)
}

// Registry is an immutable, ordered list of test cases. Duplicate names
// are allowed and treated as independent entries.
type Registry struct {
	cases []TestCase
}

// New returns a registry holding copies of cases in the given order.
func New(cases ...TestCase) *Registry {
	r := &Registry{cases: make([]TestCase, 0, len(cases))}
	for _, tc := range cases {
		r.cases = append(r.cases, tc.clone())
	}
	return r
}

// Cases returns all test cases in registry order. The returned slice is
// a copy and may be modified by the caller.
func (r *Registry) Cases() []TestCase {
	out := make([]TestCase, len(r.cases))
	for i, tc := range r.cases {
		out[i] = tc.clone()
	}
	return out
}

// Len returns the number of registered cases.
func (r *Registry) Len() int {
	return len(r.cases)
}

func (tc TestCase) clone() TestCase {
	tc.ExtraArgs = slices.Clone(tc.ExtraArgs)
	tc.Archs = slices.Clone(tc.Archs)
	return tc
}

// Vars are substituted into argument lists while loading.
type Vars struct {
	// TestDir replaces {test_dir}.
	TestDir string
	// Classpath replaces {classpath}.
	Classpath string
}

func (v Vars) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{test_dir}", v.TestDir,
		"{classpath}", v.Classpath,
	)
}

type document struct {
	ArgumentSets map[string][]string `yaml:"argument_sets,omitempty"`
	Cases        []caseEntry         `yaml:"cases"`
}

type caseEntry struct {
	Name        string   `yaml:"name"`
	ExitCode    int      `yaml:"exit_code"`
	ArgumentSet string   `yaml:"argument_set,omitempty"`
	Args        []string `yaml:"args,omitempty"`
	Arch        []string `yaml:"arch"`
}

// Default returns the built-in registry.
func Default(vars Vars) (*Registry, error) {
	return Load(defaultRegistry, vars)
}

// LoadFile reads a registry from a YAML file.
func LoadFile(path string, vars Vars) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}
	return Load(data, vars)
}

// Load decodes a YAML registry. Arguments of a case are the named
// argument set, if any, followed by its inline args.
func Load(data []byte, vars Vars) (*Registry, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}

	if len(doc.Cases) == 0 {
		return nil, errors.New("registry contains no cases")
	}

	rep := vars.replacer()
	cases := make([]TestCase, 0, len(doc.Cases))
	for i, entry := range doc.Cases {
		if entry.Name == "" {
			return nil, fmt.Errorf("case %d: name is required", i+1)
		}
		if len(entry.Arch) == 0 {
			return nil, fmt.Errorf("case %d (%s): at least one arch is required", i+1, entry.Name)
		}

		args := []string{}
		if entry.ArgumentSet != "" {
			set, ok := doc.ArgumentSets[entry.ArgumentSet]
			if !ok {
				return nil, fmt.Errorf("case %d (%s): unknown argument set %q", i+1, entry.Name, entry.ArgumentSet)
			}
			args = append(args, set...)
		}
		args = append(args, entry.Args...)
		for j := range args {
			args[j] = rep.Replace(args[j])
		}

		cases = append(cases, TestCase{
			Name:             entry.Name,
			ExpectedExitCode: entry.ExitCode,
			ExtraArgs:        args,
			Archs:            slices.Clone(entry.Arch),
		})
	}

	return &Registry{cases: cases}, nil
}

func decode(data []byte) (document, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return document{}, fmt.Errorf("failed to parse registry: %w", err)
	}
	return doc, nil
}

// UsesClasspath reports whether an argument set or inline argument of the
// YAML registry refers to the {classpath} placeholder. Comments do not
// count. A registry that does not parse reports false and is rejected by
// Load.
func UsesClasspath(data []byte) bool {
	doc, err := decode(data)
	if err != nil {
		return false
	}

	for _, set := range doc.ArgumentSets {
		if containsClasspath(set) {
			return true
		}
	}
	for _, entry := range doc.Cases {
		if containsClasspath(entry.Args) {
			return true
		}
	}
	return false
}

func containsClasspath(args []string) bool {
	return slices.ContainsFunc(args, func(arg string) bool {
		return strings.Contains(arg, "{classpath}")
	})
}

// DefaultSource returns the raw YAML of the built-in registry.
func DefaultSource() []byte {
	return slices.Clone(defaultRegistry)
}
