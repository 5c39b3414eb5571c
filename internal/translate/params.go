// Package translate turns legacy Akamai-style image query parameters into
// canonical transform options understood by the resizer backend.
package translate

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Source records which legacy encoding produced a parameter.
type Source int

const (
	SourceShort Source = iota // composite im=...
	SourceDot                 // im.resize.width=...
	SourceNamed               // imwidth=...
)

func (s Source) String() string {
	switch s {
	case SourceShort:
		return "short"
	case SourceDot:
		return "dot"
	case SourceNamed:
		return "named"
	default:
		return "unknown"
	}
}

// Kind is the scalar type a Value carries.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
)

// Value is a string, number or bool scalar. Values produced by Infer keep
// their original text so string options such as colours survive intact.
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
}

func String(s string) Value  { return Value{kind: KindString, s: s} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }

// Infer types raw query text: numeric text becomes a number, true/false a
// bool, anything else stays a string.
func Infer(raw string) Value {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return Value{kind: KindNumber, n: n, s: raw}
	}
	switch strings.ToLower(raw) {
	case "true":
		return Value{kind: KindBool, b: true, s: raw}
	case "false":
		return Value{kind: KindBool, b: false, s: raw}
	}
	return String(raw)
}

func (v Value) Kind() Kind { return v.kind }

// Float reports the numeric value; strings are parsed.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// String formats the value the way it is written back into a query string.
func (v Value) String() string {
	if v.s != "" || v.kind == KindString {
		return v.s
	}
	if v.kind == KindNumber {
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	}
	return strconv.FormatBool(v.b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return json.Marshal(v.n)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return json.Marshal(v.s)
	}
}

// Param is one recognised legacy parameter in request order.
type Param struct {
	Name   string
	Value  Value
	Source Source
}

// Name is a canonical option name.
type Name string

const (
	Width      Name = "width"
	Height     Name = "height"
	Quality    Name = "quality"
	Fit        Name = "fit"
	Gravity    Name = "gravity"
	Aspect     Name = "aspect"
	Format     Name = "format"
	Derivative Name = "derivative"
	Rotate     Name = "rotate"
	DPR        Name = "dpr"
	Background Name = "background"
	Crop       Name = "crop"
	Bypass     Name = "bypass"
	Blur       Name = "blur"
	Sharpen    Name = "sharpen"
)

var nameKinds = map[Name]Kind{
	Width:      KindNumber,
	Height:     KindNumber,
	Quality:    KindNumber,
	Fit:        KindString,
	Gravity:    KindString,
	Aspect:     KindString,
	Format:     KindString,
	Derivative: KindString,
	Rotate:     KindNumber,
	DPR:        KindNumber,
	Background: KindString,
	Crop:       KindString,
	Bypass:     KindBool,
	Blur:       KindNumber,
	Sharpen:    KindNumber,
}

// Kind returns the scalar kind the backend expects for n.
func (n Name) Kind() Kind { return nameKinds[n] }

// Valid reports whether n is a known canonical name.
func (n Name) Valid() bool {
	_, ok := nameKinds[n]
	return ok
}

// Options maps canonical names to values. A missing key means unset.
type Options map[Name]Value

func (o Options) Get(n Name) (Value, bool) {
	v, ok := o[n]
	return v, ok
}

func (o Options) Has(n Name) bool {
	_, ok := o[n]
	return ok
}

// Names returns the set names in lexical order.
func (o Options) Names() []Name {
	out := make([]Name, 0, len(o))
	for n := range o {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (o Options) Clone() Options {
	out := make(Options, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// OptionsFromStrings builds Options from raw name/value text, coercing each
// value by its canonical kind. Unknown names and invalid values are dropped.
func OptionsFromStrings(raw map[string]string) Options {
	out := Options{}
	for k, v := range raw {
		n := Name(strings.ToLower(strings.TrimSpace(k)))
		if !n.Valid() {
			continue
		}
		if cv, ok := coerce(n, Infer(v)); ok {
			out[n] = cv
		}
	}
	return out
}
