package validator

import (
	"fmt"
	"reflect"
)

// Validate fails when any dependency is nil or holds its type's zero value.
func Validate(name string, deps ...any) error {
	for i, dep := range deps {
		if missing(reflect.ValueOf(dep)) {
			return fmt.Errorf("missing required deps for component: %s (argument %d)", name, i)
		}
	}

	return nil
}

func missing(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}

	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}
