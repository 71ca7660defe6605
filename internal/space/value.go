package space

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type Tri string

const (
	On      Tri = "on"
	Off     Tri = "off"
	Default Tri = "default"
)

var TriStates = []Tri{On, Off, Default}

// Value is either an integer or one of the tri-states. The zero Value is
// the integer 0.
type Value struct {
	tri Tri
	num int64
}

func Int(n int64) Value { return Value{num: n} }

func TriValue(t Tri) Value { return Value{tri: t} }

func (v Value) IsTri() bool { return v.tri != "" }

func (v Value) Int() (int64, bool) {
	if v.IsTri() {
		return 0, false
	}
	return v.num, true
}

func (v Value) Tri() (Tri, bool) {
	return v.tri, v.IsTri()
}

func (v Value) String() string {
	if v.IsTri() {
		return string(v.tri)
	}
	return strconv.FormatInt(v.num, 10)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsTri() {
		return json.Marshal(string(v.tri))
	}
	return []byte(strconv.FormatInt(v.num, 10)), nil
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch t := Tri(s); t {
		case On, Off, Default:
			*v = TriValue(t)
			return nil
		}
		return fmt.Errorf("unknown tri-state value %q", s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		// search engines sometimes hand back whole floats
		f, ferr := strconv.ParseFloat(string(data), 64)
		if ferr != nil || f != float64(int64(f)) {
			return fmt.Errorf("value %s is neither an integer nor a tri-state", data)
		}
		n = int64(f)
	}
	*v = Int(n)
	return nil
}
