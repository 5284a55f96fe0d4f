package stm

import (
	"fmt"
	"reflect"
)

// assertBasic panics if T cannot live safely inside a version node, which is
// allocated through heap.Heap (mmap-backed memory the Go garbage collector
// never scans). Storing a real Go pointer, slice, map, channel, func, or
// interface value there would let the GC collect the only reference to
// whatever it points at. Generalizes the teacher's htable/record_test.go
// "Only Basic" check from a test-time assertion into a construction-time
// guard, since TMVar's payload plays the same role record.go's byte-slice
// fields do.
func assertBasic[T any]() {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		// T is itself an interface type with no underlying concrete type to
		// inspect; reject it outright.
		panic("stm: TMVar payload type must not be an interface type")
	}
	if err := checkBasicType(t); err != nil {
		panic(fmt.Sprintf("stm: TMVar payload type %s is not safe for off-heap storage: %v", t, err))
	}
}

func checkBasicType(t reflect.Type) error {
	switch t.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice, reflect.UnsafePointer, reflect.String:
		return fmt.Errorf("%s fields are not allowed; encode a handle as a uintptr instead", t.Kind())
	case reflect.Array:
		return checkBasicType(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if err := checkBasicType(t.Field(i).Type); err != nil {
				return fmt.Errorf("field %s: %w", t.Field(i).Name, err)
			}
		}
	}
	return nil
}
