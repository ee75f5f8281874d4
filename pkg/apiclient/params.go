package apiclient

import (
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"time"
)

// Params are the parameters of one call.
type Params map[string]any

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Query encodes p as a query string. Nil values, including nil pointers
// and nil slices, are dropped. Slices produce repeated keys.
func (p Params) Query() url.Values {
	q := url.Values{}
	for k, v := range p {
		if isAbsent(v) {
			continue
		}
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Pointer {
			rv = rv.Elem()
		}
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			for i := 0; i < rv.Len(); i++ {
				q.Add(k, formatValue(rv.Index(i).Interface()))
			}
			continue
		}
		q.Set(k, formatValue(rv.Interface()))
	}
	return q
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
