package normalize

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/fetchgate/engine"
)

// HeaderMapper is implemented by header containers that convert themselves
// and may fail doing so.
type HeaderMapper interface {
	HeaderMap() (map[string]string, error)
}

// Headers converts a header container to a flat string map. Multi-valued
// headers are joined with ", ". Unknown shapes and failures give an empty map.
func Headers(v any) (out map[string]string) {
	defer func() {
		if recover() != nil {
			out = map[string]string{}
		}
	}()

	switch h := v.(type) {
	case nil:
		return map[string]string{}
	case map[string]string:
		out = make(map[string]string, len(h))
		for k, val := range h {
			out[k] = val
		}
		return out
	case http.Header:
		return joinValues(h)
	case map[string][]string:
		return joinValues(h)
	case map[string]any:
		out = make(map[string]string, len(h))
		for k, val := range h {
			out[k] = fmt.Sprint(val)
		}
		return out
	case HeaderMapper:
		m, err := h.HeaderMap()
		if err != nil || m == nil {
			return map[string]string{}
		}
		return m
	default:
		return map[string]string{}
	}
}

func joinValues(h map[string][]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, vals := range h {
		out[k] = strings.Join(vals, ", ")
	}
	return out
}

// Cookies converts a cookie container to a name to value map. It accepts
// direct maps and sequences of cookie records; a record without both a name
// and a value is merged in whole. Other shapes give an empty map.
func Cookies(v any) (out map[string]string) {
	defer func() {
		if recover() != nil {
			out = map[string]string{}
		}
	}()

	out = map[string]string{}
	switch c := v.(type) {
	case map[string]string:
		for k, val := range c {
			out[k] = val
		}
	case map[string]any:
		for k, val := range c {
			out[k] = fmt.Sprint(val)
		}
	case []*http.Cookie:
		for _, ck := range c {
			if ck != nil {
				out[ck.Name] = ck.Value
			}
		}
	case []http.Cookie:
		for _, ck := range c {
			out[ck.Name] = ck.Value
		}
	case []map[string]any:
		for _, rec := range c {
			mergeRecord(out, rec)
		}
	case []map[string]string:
		for _, rec := range c {
			mergeStringRecord(out, rec)
		}
	case []any:
		for _, item := range c {
			switch rec := item.(type) {
			case map[string]any:
				mergeRecord(out, rec)
			case map[string]string:
				mergeStringRecord(out, rec)
			case *http.Cookie:
				if rec != nil {
					out[rec.Name] = rec.Value
				}
			}
		}
	}
	return out
}

func mergeRecord(out map[string]string, rec map[string]any) {
	name, hasName := rec["name"]
	value, hasValue := rec["value"]
	if hasName && hasValue {
		out[fmt.Sprint(name)] = fmt.Sprint(value)
		return
	}
	for k, val := range rec {
		out[k] = fmt.Sprint(val)
	}
}

func mergeStringRecord(out map[string]string, rec map[string]string) {
	name, hasName := rec["name"]
	value, hasValue := rec["value"]
	if hasName && hasValue {
		out[name] = value
		return
	}
	for k, val := range rec {
		out[k] = val
	}
}

// Body renders the response body as text. Bytes are decoded as UTF-8 with
// U+FFFD for every invalid byte. If rendering panics the response's own
// string form is used.
func Body(resp *engine.Response) (out string) {
	defer func() {
		if recover() != nil {
			out = safeString(resp)
		}
	}()

	switch b := resp.Body.(type) {
	case nil:
		return ""
	case []byte:
		return decodeUTF8(b)
	case string:
		return b
	case fmt.Stringer:
		return b.String()
	default:
		return fmt.Sprint(b)
	}
}

func decodeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

func safeString(resp *engine.Response) (out string) {
	defer func() {
		if recover() != nil {
			out = ""
		}
	}()
	return resp.String()
}
