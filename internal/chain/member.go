package chain

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// readMember resolves name on parent: through its Mapping when it publishes one, otherwise as
// an exported method, struct field or string-keyed map entry.
func readMember(parent any, name string) (reflect.Value, error) {
	if parent == nil {
		return reflect.Value{}, memberError(ErrMissingMember, name, parent, "")
	}

	switch m := parent.(type) {
	case Mapping:
		return fromMapping(m, name, parent)
	case Mapper:
		return fromMapping(m.ChainMembers(), name, parent)
	}

	v := reflect.ValueOf(parent)
	if method := v.MethodByName(name); method.IsValid() {
		return method, nil
	}

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, memberError(ErrMissingMember, name, parent, "")
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		if sf, ok := v.Type().FieldByName(name); ok && sf.IsExported() {
			if f, err := v.FieldByIndexErr(sf.Index); err == nil {
				return f, nil
			}
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			if e := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key())); e.IsValid() {
				return e, nil
			}
		}
	}
	return reflect.Value{}, memberError(ErrMissingMember, name, parent, "")
}

func fromMapping(m Mapping, name string, parent any) (reflect.Value, error) {
	member, ok := m[name]
	if !ok {
		return reflect.Value{}, memberError(ErrMissingMember, name, parent, "")
	}
	// Keep nil entries addressable as an (empty) interface value.
	return reflect.ValueOf(&member).Elem(), nil
}

// readIndex resolves parent[key] for Indexers, slices, arrays and maps.
func readIndex(parent any, key any) (any, error) {
	name := fmt.Sprintf("[%v]", key)
	if ix, ok := parent.(Indexer); ok {
		v, err := ix.Lookup(key)
		if err != nil {
			return nil, fmt.Errorf("chain: index %s on %s: %w", name, kindOf(parent), err)
		}
		return v, nil
	}

	v := reflect.ValueOf(parent)
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return nil, memberError(ErrMissingMember, name, parent, "")
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, memberError(ErrMissingMember, name, parent, "")
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		i, ok := toIndex(key)
		if !ok || i < 0 || i >= v.Len() {
			return nil, memberError(ErrMissingMember, name, parent, "index out of range")
		}
		return v.Index(i).Interface(), nil
	case reflect.Map:
		k, err := convertArg(key, v.Type().Key())
		if err != nil {
			return nil, memberError(ErrMissingMember, name, parent, err.Error())
		}
		e := v.MapIndex(k)
		if !e.IsValid() {
			return nil, memberError(ErrMissingMember, name, parent, "")
		}
		return e.Interface(), nil
	}
	return nil, memberError(ErrMissingMember, name, parent, "not indexable")
}

func toIndex(key any) (int, bool) {
	switch k := key.(type) {
	case int:
		return k, true
	case int64:
		return int(k), true
	case uint64:
		return int(k), k <= math.MaxInt
	case float64:
		return int(k), k == math.Trunc(k)
	case string:
		i, err := strconv.Atoi(k)
		return i, err == nil
	}
	return 0, false
}

// invoke calls fn with args, injecting ctx when the first parameter is a context.Context.
// A trailing error result becomes the returned error.
func invoke(ctx context.Context, fn reflect.Value, name string, parent any, args []any) (any, error) {
	for fn.IsValid() && fn.Kind() == reflect.Interface && !fn.IsNil() {
		fn = fn.Elem()
	}
	if !fn.IsValid() || fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, memberError(ErrNotCallable, name, parent, "")
	}

	ft := fn.Type()
	in := make([]reflect.Value, 0, len(args)+1)
	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		offset = 1
	}

	fixed := ft.NumIn() - offset
	if ft.IsVariadic() {
		fixed--
	}
	if len(args) < fixed || (!ft.IsVariadic() && len(args) > fixed) {
		return nil, memberError(ErrBadArguments, name, parent, fmt.Sprintf("expects %d arguments, got %d", fixed, len(args)))
	}

	for i, arg := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= fixed {
			pt = ft.In(ft.NumIn() - 1).Elem()
		} else {
			pt = ft.In(offset + i)
		}
		v, err := convertArg(arg, pt)
		if err != nil {
			return nil, memberError(ErrBadArguments, name, parent, fmt.Sprintf("argument %d: %v", i, err))
		}
		in = append(in, v)
	}

	return splitResults(fn.Call(in))
}

// convertArg adapts loosely typed arguments (numbers and lists decoded from YAML or JSON) to the
// parameter type. Conversions that would change meaning, such as int to string, are refused.
func convertArg(arg any, pt reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch pt.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", pt)
	}

	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(pt) {
		return v, nil
	}

	switch {
	case isNumber(v.Kind()) && isNumber(pt.Kind()):
		if isFloat(v.Kind()) && !isFloat(pt.Kind()) && v.Float() != math.Trunc(v.Float()) {
			return reflect.Value{}, fmt.Errorf("%v is not an integer", arg)
		}
		return v.Convert(pt), nil
	case v.Kind() == pt.Kind() && v.Type().ConvertibleTo(pt):
		if v.Kind() != reflect.Slice {
			return v.Convert(pt), nil
		}
	}

	if v.Kind() == reflect.Slice && pt.Kind() == reflect.Slice {
		out := reflect.MakeSlice(pt, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := convertArg(v.Index(i).Interface(), pt.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(e)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", arg, pt)
}

func isNumber(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || isFloat(k)
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func splitResults(out []reflect.Value) (any, error) {
	var err error
	if n := len(out); n > 0 && out[n-1].Type() == errorType {
		if !out[n-1].IsNil() {
			err = out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return out[0].Interface(), err
	}
	values := make([]any, len(out))
	for i, o := range out {
		values[i] = o.Interface()
	}
	return values, err
}
