package sign

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Key is the reserved form field the signature is attached under.
const Key = "sign"

// Encode canonicalizes params, computes the service signature with the shared
// secret, and returns the full form body: every original parameter unchanged
// plus the computed "sign" field.
//
// Canonical form: keys sorted lexicographically, rendered as k=v pairs joined
// by "&", secret appended, MD5 hex digest over the whole string. The remote
// service recomputes the exact same digest, so the sort order and the compact
// rendering of values are part of the wire contract.
func Encode(params map[string]any, secret string) url.Values {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, render(v))
	}
	form.Set(Key, Signature(params, secret))
	return form
}

// Signature computes only the digest for params without building a form.
func Signature(params map[string]any, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(render(params[k]))
	}
	b.WriteString(secret)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// render produces the canonical string for a single value. Scalars are
// rendered as-is, structured values as compact JSON with sorted object keys
// (encoding/json sorts map keys, which is exactly the canonical form the
// service expects). A value that cannot be marshaled is a programming error.
func render(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%v", val)
	case float32, float64:
		return fmt.Sprintf("%v", val)
	default:
		out, err := json.Marshal(val)
		if err != nil {
			panic(fmt.Sprintf("sign: unserializable parameter value %T: %v", v, err))
		}
		return string(out)
	}
}
