package probe

// Verdict is the probed legality of a single flag or parameter.
type Verdict int

const (
	Works Verdict = iota
	CompileError
	UnsupportedByTarget
	Renamed
	InverseFails
	// ProbeFailed covers timeouts and invocation errors.
	ProbeFailed
)

func (v Verdict) String() string {
	switch v {
	case Works:
		return "works"
	case CompileError:
		return "compile error"
	case UnsupportedByTarget:
		return "not supported by target"
	case Renamed:
		return "renamed"
	case InverseFails:
		return "inverse does not compile"
	case ProbeFailed:
		return "probe failed"
	}
	return "unknown"
}

// FlagRecord is the outcome of probing one flag.
type FlagRecord struct {
	Flag    string
	Verdict Verdict
	// InverseChecked is set when the opposite polarity was compiled too.
	InverseChecked bool
}

func (r FlagRecord) Accepted() bool { return r.Verdict == Works }
