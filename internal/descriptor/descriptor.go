package descriptor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Descriptor lists the build inputs of the program being tuned. It is
// produced by the application's build scripts and read verbatim.
type Descriptor struct {
	KernelFiles  []string `json:"kernel_files"`
	BasicParams  []string `json:"basic_params"`
	IncludePath  []string `json:"include_path"`
	LinkingPath  []string `json:"linking_path"`
	LinkingFiles []string `json:"linking_files"`
}

// DefaultBasicParams is used when a descriptor carries no basic_params.
var DefaultBasicParams = []string{
	"-fPIC", "-Wall", "-ffloat-store", "-g", "-std=c++11", "-fopenmp",
}

// placeholders meaning "the build root"
const (
	includeRootToken = "-I."
	linkingRootToken = "-L."
)

func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor %s: %w", path, err)
	}
	if len(d.LinkingFiles) == 0 && len(d.KernelFiles) == 0 {
		return nil, fmt.Errorf("descriptor %s lists no source files", path)
	}
	return &d, nil
}

// Build is a descriptor resolved against a build root, ready to be
// substituted into a compile template.
type Build struct {
	Program string
	Source  string
	Basic   string
	Include string
	Linking string
}

func (d *Descriptor) Resolve(buildRoot string) Build {
	sources := make([]string, 0, len(d.LinkingFiles))
	for _, f := range d.LinkingFiles {
		if filepath.IsAbs(f) {
			sources = append(sources, f)
		} else {
			sources = append(sources, filepath.Join(buildRoot, f))
		}
	}

	basic := d.BasicParams
	if len(basic) == 0 {
		basic = DefaultBasicParams
	}

	return Build{
		Program: d.programName(),
		Source:  strings.Join(sources, " "),
		Basic:   strings.Join(basic, " "),
		Include: strings.Join(substituteRoot(d.IncludePath, includeRootToken, buildRoot), " "),
		Linking: strings.Join(substituteRoot(d.LinkingPath, linkingRootToken, buildRoot), " "),
	}
}

func (d *Descriptor) programName() string {
	names := d.KernelFiles
	if len(names) == 0 {
		names = d.LinkingFiles
	}
	base := filepath.Base(names[0])
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func substituteRoot(paths []string, token string, buildRoot string) []string {
	res := make([]string, len(paths))
	for i, p := range paths {
		if p == token {
			res[i] = token[:2] + buildRoot
		} else {
			res[i] = p
		}
	}
	return res
}
