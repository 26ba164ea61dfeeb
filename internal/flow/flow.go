// Package flow runs declarative page-object scripts. A flow is a YAML document listing chain
// steps; each flow gets its own page and chain, and independent flows may run in parallel.
package flow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Flow is one scripted session.
type Flow struct {
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	Steps []Step `yaml:"steps"`

	// Source is the file the flow was loaded from, if any.
	Source string `yaml:"-"`
}

// Step addresses a member on the chain and optionally calls it.
//
// Evaluation order is On, Get, Index, Call. Expect awaits the resulting handle and compares its
// printed form; Save names the handle so later steps can start from it with On or reference it
// in an argument as "{{name}}".
type Step struct {
	On     string `yaml:"on"`
	Get    string `yaml:"get"`
	Index  any    `yaml:"index"`
	Call   string `yaml:"call"`
	Args   []any  `yaml:"args"`
	Expect any    `yaml:"expect"`
	Save   string `yaml:"save"`
}

func (s Step) String() string {
	var parts []string
	if s.On != "" {
		parts = append(parts, s.On)
	}
	if s.Get != "" {
		parts = append(parts, s.Get)
	}
	path := strings.Join(parts, ".")
	if s.Index != nil {
		path += fmt.Sprintf("[%v]", s.Index)
	}
	if s.Call != "" {
		if path != "" {
			path += "."
		}
		path += fmt.Sprintf("%s%v", s.Call, s.Args)
	}
	return path
}

// Parse decodes one or more YAML documents into flows.
func Parse(data []byte) ([]*Flow, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var flows []*Flow
	for {
		var f Flow
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flow: invalid document %d: %w", len(flows)+1, err)
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		flows = append(flows, &f)
	}
	if len(flows) == 0 {
		return nil, errors.New("flow: no flows defined")
	}
	return flows, nil
}

// Load reads flows from path. A leading "~" expands to the home directory.
func Load(path string) ([]*Flow, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("flow: failed to expand %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("flow: failed to read %q: %w", expanded, err)
	}
	flows, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", expanded, err)
	}
	for _, f := range flows {
		f.Source = expanded
	}
	return flows, nil
}

// Validate checks the flow for structural mistakes before anything runs.
func (f *Flow) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return errors.New("flow: name is required")
	}
	saved := make(map[string]bool)
	for i, s := range f.Steps {
		if s.Get == "" && s.Index == nil && s.Call == "" && s.On == "" {
			return fmt.Errorf("flow %q: step %d does nothing", f.Name, i+1)
		}
		if s.On != "" && !saved[s.On] {
			return fmt.Errorf("flow %q: step %d starts from %q before it is saved", f.Name, i+1, s.On)
		}
		for _, ref := range references(s.Args) {
			if !saved[ref] {
				return fmt.Errorf("flow %q: step %d references %q before it is saved", f.Name, i+1, ref)
			}
		}
		if s.Save != "" {
			saved[s.Save] = true
		}
	}
	return nil
}

// reference returns the saved name an argument refers to, if it has the form "{{name}}".
func reference(arg any) (string, bool) {
	s, ok := arg.(string)
	if !ok || !strings.HasPrefix(s, "{{") || !strings.HasSuffix(s, "}}") {
		return "", false
	}
	name := strings.TrimSpace(s[2 : len(s)-2])
	return name, name != ""
}

func references(args []any) []string {
	var out []string
	for _, a := range args {
		if name, ok := reference(a); ok {
			out = append(out, name)
		}
	}
	return out
}
