package interp

// bindArgs matches positional and keyword arguments onto names. The first
// required names must be supplied; absent optional ones are nil.
func bindArgs(fn string, args []Value, kwargs []Kwarg, names []string, required int) ([]Value, error) {
	if len(args) > len(names) {
		if len(names) == required {
			return nil, excf(TypeErrorType, "%s() takes exactly %d argument%s (%d given)",
				fn, len(names), plural(len(names)), len(args))
		}
		return nil, excf(TypeErrorType, "%s() takes at most %d argument%s (%d given)",
			fn, len(names), plural(len(names)), len(args))
	}
	out := make([]Value, len(names))
	copy(out, args)
	for _, kw := range kwargs {
		i := indexName(names, kw.Name)
		if i < 0 {
			return nil, excf(TypeErrorType, "%s() got an unexpected keyword argument '%s'", fn, kw.Name)
		}
		if out[i] != nil {
			return nil, excf(TypeErrorType, "%s() got multiple values for argument '%s'", fn, kw.Name)
		}
		out[i] = kw.Value
	}
	for i := 0; i < required; i++ {
		if out[i] == nil {
			return nil, excf(TypeErrorType, "%s() missing required argument '%s' (pos %d)", fn, names[i], i+1)
		}
	}
	return out, nil
}

func indexName(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// exactArgs checks a purely positional arity range
func exactArgs(fn string, args []Value, kwargs []Kwarg, min, max int) error {
	if len(kwargs) > 0 {
		return excf(TypeErrorType, "%s() takes no keyword arguments", fn)
	}
	switch {
	case min == max && len(args) != min:
		return excf(TypeErrorType, "%s() takes exactly %d argument%s (%d given)", fn, min, plural(min), len(args))
	case len(args) < min:
		return excf(TypeErrorType, "%s() takes at least %d argument%s (%d given)", fn, min, plural(min), len(args))
	case max >= 0 && len(args) > max:
		return excf(TypeErrorType, "%s() takes at most %d argument%s (%d given)", fn, max, plural(max), len(args))
	}
	return nil
}

// orNone maps an absent optional argument to None
func orNone(v Value) Value {
	if v == nil {
		return None
	}
	return v
}

// optInt reads an optional integer argument, returning def when absent or None
func optInt(fn string, v Value, def int64) (int64, error) {
	if v == nil || isNone(v) {
		return def, nil
	}
	return wantInt(fn, v)
}
