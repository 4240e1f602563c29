package oml

import (
	"encoding/base64"
	"encoding/json"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/wp-labs/wp-motor/internal/value"
)

// PipeFun is one named OML pipe step: it consumes the current value plus
// its literal arguments and produces the next value, or ok == false to
// stop the chain (§4.3.2's "a pipe that produces no value... leaves the
// target unset").
type PipeFun func(v value.Value, args []string, ctx *EvalContext) (value.Value, bool)

// PipeRegistry resolves a pipe function by its OML name.
var PipeRegistry = map[string]PipeFun{
	"base64_encode":      base64Encode,
	"base64_decode":      base64Decode,
	"to_str":             toStr,
	"to_json":            toJSON,
	"ip4_to_int":         ip4ToInt,
	"time_to_ts_seconds": timeToTsSeconds,
	"time_to_ts_millis":  timeToTsMillis,
	"nth":                nth,
	"get":                get,
	"path":               pathKind,
	"url":                urlPart,
	"skip_empty":         skipEmpty,
	"html_escape":        htmlEscape,
	"json_unescape":      jsonUnescape,
	"vec_to_src":         vecToSrc,
	"split_to_src":       splitToSrc,
}

func base64Encode(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Chars {
		return value.Value{}, false
	}
	return value.NewChars(base64.StdEncoding.EncodeToString([]byte(v.Str()))), true
}

func base64Decode(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Chars {
		return value.Value{}, false
	}
	decoded, err := base64.StdEncoding.DecodeString(v.Str())
	if err != nil {
		return value.Value{}, false
	}
	return value.NewChars(string(decoded)), true
}

func toStr(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	return value.NewChars(value.FormatValue(v)), true
}

func toJSON(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	return value.NewChars(value.RenderLine(value.NewRecord(value.NewField("_", v)), value.FormatJSON)), true
}

func ip4ToInt(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.IPAddr {
		return value.Value{}, false
	}
	ip4 := v.IP().To4()
	if ip4 == nil {
		return value.Value{}, false
	}
	n := int64(ip4[0])<<24 | int64(ip4[1])<<16 | int64(ip4[2])<<8 | int64(ip4[3])
	return value.NewDigit(n), true
}

func timeToTsSeconds(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Time {
		return value.Value{}, false
	}
	return value.NewDigit(v.Tm().Unix()), true
}

func timeToTsMillis(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Time {
		return value.Value{}, false
	}
	return value.NewDigit(v.Tm().UnixMilli()), true
}

func nth(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Array || len(args) == 0 {
		return value.Value{}, false
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 0 || i >= len(v.Items()) {
		return value.Value{}, false
	}
	return v.Items()[i].Val, true
}

func get(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Obj || len(args) == 0 {
		return value.Value{}, false
	}
	for _, f := range v.Fields() {
		if value.BaseName(f.Name) == args[0] {
			return f.Val, true
		}
	}
	return value.Value{}, false
}

func pathKind(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Chars || len(args) == 0 {
		return value.Value{}, false
	}
	u, err := url.Parse(v.Str())
	if err != nil {
		return value.Value{}, false
	}
	switch args[0] {
	case "dir":
		idx := strings.LastIndexByte(u.Path, '/')
		if idx < 0 {
			return value.NewChars(""), true
		}
		return value.NewChars(u.Path[:idx]), true
	case "base":
		idx := strings.LastIndexByte(u.Path, '/')
		return value.NewChars(u.Path[idx+1:]), true
	default:
		return value.NewChars(u.Path), true
	}
}

func urlPart(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Chars || len(args) == 0 {
		return value.Value{}, false
	}
	u, err := url.Parse(v.Str())
	if err != nil {
		return value.Value{}, false
	}
	switch args[0] {
	case "host":
		return value.NewChars(u.Hostname()), true
	case "scheme":
		return value.NewChars(u.Scheme), true
	case "path":
		return value.NewChars(u.Path), true
	case "query":
		return value.NewChars(u.RawQuery), true
	default:
		return value.Value{}, false
	}
}

func skipEmpty(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind == value.Chars && v.Str() == "" {
		return value.Value{}, false
	}
	return v, true
}

func htmlEscape(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Chars {
		return value.Value{}, false
	}
	return value.NewChars(html.EscapeString(v.Str())), true
}

func jsonUnescape(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Chars {
		return value.Value{}, false
	}
	raw := v.Str()
	if !strings.ContainsRune(raw, '\\') {
		return v, true
	}
	var out string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &out); err != nil {
		return value.Value{}, false
	}
	return value.NewChars(out), true
}

// vecToSrc re-injects every element of an Array value as a new source event
// on the named channel (§6.1), enabling recursive transforms. Passes the
// original value through unchanged so the chain can continue independently
// of whether the forward succeeds.
func vecToSrc(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Array || len(args) == 0 || ctx.Forward == nil {
		return v, true
	}
	for _, item := range v.Items() {
		_ = ctx.Forward(args[0], []byte(value.FormatValue(item.Val)))
	}
	return v, true
}

// splitToSrc splits a Chars value on args[1] (default "\n") and re-injects
// each piece as a new source event on channel args[0].
func splitToSrc(v value.Value, args []string, ctx *EvalContext) (value.Value, bool) {
	if v.Kind != value.Chars || len(args) == 0 || ctx.Forward == nil {
		return v, true
	}
	sep := "\n"
	if len(args) > 1 {
		sep = args[1]
	}
	for _, part := range strings.Split(v.Str(), sep) {
		_ = ctx.Forward(args[0], []byte(part))
	}
	return v, true
}
