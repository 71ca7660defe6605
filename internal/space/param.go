package space

import (
	"fmt"
	"math/bits"
)

// ParamName identifies a tunable dimension. Values of this type are only
// handed out by a Space, so holding one means the name exists.
type ParamName string

// OptLevel is the -O<level> dimension every space has.
const OptLevel ParamName = "-O"

// CacheLineSizeParam only accepts powers of two.
const CacheLineSizeParam = "l1-cache-line-size"

type Kind int

const (
	KindInteger Kind = iota
	KindLogInteger
	KindPowerOfTwo
	KindTriState
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindLogInteger:
		return "log-integer"
	case KindPowerOfTwo:
		return "power-of-two"
	case KindTriState:
		return "tri-state"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParameterSpec is the legal domain of one parameter. The set of
// implementations is closed.
type ParameterSpec interface {
	Kind() Kind
	Contains(v Value) bool
	String() string
	sealed()
}

type IntegerRange struct {
	Min int64
	Max int64
}

type LogIntegerRange struct {
	Min int64
	Max int64
}

type PowerOfTwoRange struct {
	Min int64
	Max int64
}

type TriState struct{}

func (IntegerRange) Kind() Kind    { return KindInteger }
func (LogIntegerRange) Kind() Kind { return KindLogInteger }
func (PowerOfTwoRange) Kind() Kind { return KindPowerOfTwo }
func (TriState) Kind() Kind        { return KindTriState }

func (IntegerRange) sealed()    {}
func (LogIntegerRange) sealed() {}
func (PowerOfTwoRange) sealed() {}
func (TriState) sealed()        {}

func (r IntegerRange) Contains(v Value) bool {
	n, ok := v.Int()
	return ok && r.Min <= n && n <= r.Max
}

func (r LogIntegerRange) Contains(v Value) bool {
	n, ok := v.Int()
	return ok && r.Min <= n && n <= r.Max
}

func (r PowerOfTwoRange) Contains(v Value) bool {
	n, ok := v.Int()
	return ok && r.Min <= n && n <= r.Max && n > 0 && bits.OnesCount64(uint64(n)) == 1
}

func (TriState) Contains(v Value) bool {
	t, ok := v.Tri()
	if !ok {
		return false
	}
	return t == On || t == Off || t == Default
}

func (r IntegerRange) String() string    { return fmt.Sprintf("int[%d,%d]", r.Min, r.Max) }
func (r LogIntegerRange) String() string { return fmt.Sprintf("logint[%d,%d]", r.Min, r.Max) }
func (r PowerOfTwoRange) String() string { return fmt.Sprintf("pow2[%d,%d]", r.Min, r.Max) }
func (TriState) String() string          { return "{on,off,default}" }

type Param struct {
	Name ParamName
	Spec ParameterSpec
}
