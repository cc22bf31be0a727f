package protocol

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// EncodeParams encodes m as "<n>|<name>=<value>|" fields in key order, where
// n is the byte length of "<name>=<value>".
func EncodeParams(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		field := k + "=" + formatParam(m[k])
		b.WriteString(strconv.Itoa(len(field)))
		b.WriteByte('|')
		b.WriteString(field)
		b.WriteByte('|')
	}
	return b.String()
}

func formatParam(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float32:
		return formatFloat(float64(x), 32)
	case float64:
		return formatFloat(x, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// formatFloat always includes a decimal point so the value decodes as a
// float again.
func formatFloat(f float64, bits int) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, bits)
	}
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// DecodeParams decodes fields written by EncodeParams or the browser's
// paramPacketize. Decoding stops at the first malformed field and returns
// whatever was decoded before it.
func DecodeParams(s string) map[string]any {
	out := make(map[string]any)
	for strings.Contains(s, "|") {
		i := strings.IndexByte(s, '|')
		n, err := strconv.Atoi(s[:i])
		if err != nil || n < 0 || i+1+n > len(s) {
			break
		}
		field := s[i+1 : i+1+n]
		s = strings.TrimPrefix(s[i+1+n:], "|")

		name, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		out[name] = CoerceParam(value)
	}
	return out
}

// CoerceParam converts an unquoted value to int64 or float64 when it parses
// as one, and otherwise returns it unchanged.
func CoerceParam(v string) any {
	if strings.ContainsAny(v, `"'`) {
		return v
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if isDecimal(v) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

// isDecimal reports whether v is an optionally signed run of digits with
// exactly one '.'.
func isDecimal(v string) bool {
	if v != "" && (v[0] == '-' || v[0] == '+') {
		v = v[1:]
	}
	dots, digits := 0, 0
	for i := 0; i < len(v); i++ {
		switch c := v[i]; {
		case c == '.':
			dots++
		case c >= '0' && c <= '9':
			digits++
		default:
			return false
		}
	}
	return dots == 1 && digits > 0
}
