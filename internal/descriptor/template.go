package descriptor

import (
	"fmt"
	"strings"
)

const DefaultCompileTemplate = "{cc} {source} {basic} {include} {linking} -o {output} -lpthread {flags}"

type Template string

// Vars are substituted into a compile template. Values are inserted
// as-is; callers quote paths that may contain spaces.
type Vars struct {
	CC     string
	Output string
	Flags  []string
}

func (t Template) Validate() error {
	for _, required := range []string{"{output}", "{flags}"} {
		if !strings.Contains(string(t), required) {
			return fmt.Errorf("compile template %q is missing %s", t, required)
		}
	}
	return nil
}

// Render substitutes vars into the template. An empty placeholder is
// removed together with the space before it; the rest of the template is
// kept byte for byte so quoted arguments survive.
func (t Template) Render(build Build, vars Vars) string {
	values := [][2]string{
		{"{cc}", vars.CC},
		{"{source}", build.Source},
		{"{basic}", build.Basic},
		{"{include}", build.Include},
		{"{linking}", build.Linking},
		{"{output}", vars.Output},
		{"{flags}", strings.Join(vars.Flags, " ")},
	}
	var pairs []string
	for _, kv := range values {
		if kv[1] == "" {
			pairs = append(pairs, " "+kv[0], "")
		}
		pairs = append(pairs, kv[0], kv[1])
	}
	return strings.TrimSpace(strings.NewReplacer(pairs...).Replace(string(t)))
}
