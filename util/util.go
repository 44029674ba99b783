package util

import "reflect"

// StructMap flattens a struct's exported fields into a map, keyed by field
// name. Pointers are dereferenced first.
func StructMap(s any) map[string]any {
	out := map[string]any{}
	typ := reflect.TypeOf(s)
	struc := reflect.ValueOf(s)
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
		struc = struc.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		name := typ.Field(i).Name
		out[name] = struc.FieldByName(name).Interface()
	}
	return out
}
