package descriptor_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/programme-lv/cctuner/internal/descriptor"
	"github.com/stretchr/testify/require"
)

const cloverleaf = `{
    "kernel_files": ["clover_leaf.cpp", "ideal_gas_kernel.h"],
    "basic_params": ["-fPIC", "-Wall", "-std=c++11", "-fopenmp", "-DOPS_LAZY"],
    "include_path": ["-I.", "-I/opt/ops/c/include"],
    "linking_path": ["-L.", "-L/opt/ops/c/lib/gnu"],
    "linking_files": ["clover_leaf_ops.cpp", "/abs/ops_seq.o"]
}`

func writeDescriptor(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cloverleaf_tunebase.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestResolveSubstitutesBuildRoot(t *testing.T) {
	d, err := descriptor.Load(writeDescriptor(t, cloverleaf))
	require.NoError(t, err)

	b := d.Resolve("/work/CloverLeaf")
	require.Equal(t, "clover_leaf", b.Program)
	require.Equal(t, "/work/CloverLeaf/clover_leaf_ops.cpp /abs/ops_seq.o", b.Source)
	require.Equal(t, "-fPIC -Wall -std=c++11 -fopenmp -DOPS_LAZY", b.Basic)
	require.Equal(t, "-I/work/CloverLeaf -I/opt/ops/c/include", b.Include)
	require.Equal(t, "-L/work/CloverLeaf -L/opt/ops/c/lib/gnu", b.Linking)
}

func TestResolveDefaultsBasicParams(t *testing.T) {
	d, err := descriptor.Load(writeDescriptor(t, `{"linking_files": ["main.cpp"]}`))
	require.NoError(t, err)

	b := d.Resolve("/src")
	require.Equal(t, "main", b.Program)
	require.Contains(t, b.Basic, "-fopenmp")
	require.Contains(t, b.Basic, "-fPIC")
}

func TestLoadRejectsEmptyDescriptor(t *testing.T) {
	_, err := descriptor.Load(writeDescriptor(t, `{"basic_params": ["-O2"]}`))
	require.Error(t, err)

	_, err = descriptor.Load(writeDescriptor(t, `not json`))
	require.Error(t, err)
}

func TestRenderTemplate(t *testing.T) {
	build := descriptor.Build{
		Source:  "a.cpp b.cpp",
		Basic:   "-Wall",
		Include: "-I/inc",
		Linking: "",
	}
	cmd := descriptor.Template(descriptor.DefaultCompileTemplate).Render(build, descriptor.Vars{
		CC:     "/usr/bin/mpicxx",
		Output: "/tmp/trial/tmp.bin",
		Flags:  []string{"-O2", "-funroll-loops"},
	})
	require.Equal(t,
		"/usr/bin/mpicxx a.cpp b.cpp -Wall -I/inc -o /tmp/trial/tmp.bin -lpthread -O2 -funroll-loops",
		cmd)
}

func TestRenderKeepsQuotedArguments(t *testing.T) {
	tmpl := descriptor.Template(`{cc} -DMSG="a  b" {source} {linking} -o {output} {flags}`)
	cmd := tmpl.Render(descriptor.Build{Source: "main.cpp"}, descriptor.Vars{
		CC:     "g++",
		Output: "out.bin",
	})
	require.Equal(t, `g++ -DMSG="a  b" main.cpp -o out.bin`, cmd)
}

func TestCompileCommandQuotesOutput(t *testing.T) {
	tc := descriptor.Toolchain{
		CC:       "g++",
		Template: descriptor.DefaultCompileTemplate,
		Build:    descriptor.Build{Source: "main.cpp"},
	}
	cmd := tc.CompileCommand("/tmp/my dir/tmp.bin", []string{"-O2"})
	require.Equal(t, `g++ main.cpp -o '/tmp/my dir/tmp.bin' -lpthread -O2`, cmd)
}

func TestValidateTemplate(t *testing.T) {
	require.NoError(t, descriptor.Template(descriptor.DefaultCompileTemplate).Validate())
	require.Error(t, descriptor.Template("{cc} {source} -o out").Validate())
}
