package probe

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/programme-lv/cctuner/internal/cache"
)

var (
	versionRe = regexp.MustCompile(`([0-9]+)[.]([0-9]+)[.]([0-9]+)`)
	flagRe    = regexp.MustCompile(`(?m)^  (-f[a-z0-9-]+) `)
	paramRe   = regexp.MustCompile(`(?m)^  (?:--param=)?([a-z0-9-]+)[= ]`)

	// gcc >= 10: "  --param=max-unroll-times=<0,65536>   8"
	rangedDefaultRe = regexp.MustCompile(`(?m)^\s+(?:--param=)?([a-z0-9-]+)=<(-?[0-9]+),(-?[0-9]+)>\s+(-?[0-9]+)\s*$`)
	// gcc >= 10, no advertised range: "  --param=lazy-modules=   32768"
	openDefaultRe = regexp.MustCompile(`(?m)^\s+--param=([a-z0-9-]+)=\s+(-?[0-9]+)\s*$`)
	// older: "  max-unroll-times   default 8 minimum 0 maximum 0"
	legacyDefaultRe = regexp.MustCompile(`(?m)^\s+([a-z0-9-]+)\s+default\s+(-?[0-9]+)\s+minimum\s+(-?[0-9]+)\s+maximum\s+(-?[0-9]+)`)
)

type Version struct {
	// Identity is the first line of `cc --version`; cache records are
	// keyed by it.
	Identity string
	Major    int
	Minor    int
	Patch    int
	Parsed   bool
}

func (v Version) String() string {
	if !v.Parsed {
		return v.Identity
	}
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor) + "." + strconv.Itoa(v.Patch)
}

func parseVersion(out string) Version {
	out = strings.TrimSpace(out)
	first, _, _ := strings.Cut(out, "\n")
	v := Version{Identity: strings.TrimSpace(first)}
	m := versionRe.FindStringSubmatch(out)
	if m == nil {
		return v
	}
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	v.Patch, _ = strconv.Atoi(m[3])
	v.Parsed = true
	return v
}

func parseFlags(out string) []string {
	return uniqueMatches(flagRe, out)
}

func parseParams(out string) []string {
	return uniqueMatches(paramRe, out)
}

func uniqueMatches(re *regexp.Regexp, out string) []string {
	var res []string
	for _, m := range re.FindAllStringSubmatch(out, -1) {
		if !slices.Contains(res, m[1]) {
			res = append(res, m[1])
		}
	}
	return res
}

func parseParamDefaults(out string) map[string]cache.ParamDefault {
	res := make(map[string]cache.ParamDefault)
	atoi := func(s string) int64 {
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	}
	for _, m := range rangedDefaultRe.FindAllStringSubmatch(out, -1) {
		res[m[1]] = cache.ParamDefault{Min: atoi(m[2]), Max: atoi(m[3]), Default: atoi(m[4])}
	}
	for _, m := range openDefaultRe.FindAllStringSubmatch(out, -1) {
		res[m[1]] = cache.ParamDefault{Default: atoi(m[2])}
	}
	for _, m := range legacyDefaultRe.FindAllStringSubmatch(out, -1) {
		res[m[1]] = cache.ParamDefault{Default: atoi(m[2]), Min: atoi(m[3]), Max: atoi(m[4])}
	}
	return res
}
