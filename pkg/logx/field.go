package logx

import (
	"time"

	"github.com/rs/zerolog"
)

type fieldKind uint8

const (
	kindString fieldKind = iota + 1
	kindInt
	kindUint
	kindFloat
	kindBool
	kindDuration
	kindTime
	kindError
	kindAny
)

// Field is one key/value pair attached to a record. Build it with String,
// Int, Err and friends; the zero Field is ignored.
type Field struct {
	key  string
	kind fieldKind
	i    int64
	f    float64
	s    string
	v    any
}

func String(k, v string) Field                { return Field{key: k, kind: kindString, s: v} }
func Int(k string, v int) Field               { return Field{key: k, kind: kindInt, i: int64(v)} }
func Int64(k string, v int64) Field           { return Field{key: k, kind: kindInt, i: v} }
func Uint64(k string, v uint64) Field         { return Field{key: k, kind: kindUint, v: v} }
func Float64(k string, v float64) Field       { return Field{key: k, kind: kindFloat, f: v} }
func Duration(k string, v time.Duration) Field { return Field{key: k, kind: kindDuration, i: int64(v)} }
func Time(k string, v time.Time) Field        { return Field{key: k, kind: kindTime, v: v} }
func Any(k string, v any) Field               { return Field{key: k, kind: kindAny, v: v} }

func Bool(k string, v bool) Field {
	f := Field{key: k, kind: kindBool}
	if v {
		f.i = 1
	}
	return f
}

// Err attaches err under "err". A nil error adds nothing.
func Err(err error) Field {
	if err == nil {
		return Field{}
	}
	return Field{key: "err", kind: kindError, v: err}
}

func (f Field) appendTo(e *zerolog.Event) {
	switch f.kind {
	case kindString:
		e.Str(f.key, f.s)
	case kindInt:
		e.Int64(f.key, f.i)
	case kindUint:
		e.Uint64(f.key, f.v.(uint64))
	case kindFloat:
		e.Float64(f.key, f.f)
	case kindBool:
		e.Bool(f.key, f.i == 1)
	case kindDuration:
		e.Dur(f.key, time.Duration(f.i))
	case kindTime:
		e.Time(f.key, f.v.(time.Time))
	case kindError:
		e.AnErr(f.key, f.v.(error))
	case kindAny:
		e.Interface(f.key, f.v)
	}
}
