package ffi

// Canonicalise reduces t to one of the small set of canonical wasm-ABI
// shapes, mutating *t in place, and returns the new t.Kind. t may be
// nil only when inResult is true
// (a void return type); passing a nil t with inResult false is a
// programmer error in the caller.
//
// After Canonicalise has run over every reachable type of a CIF:
//   - no descriptor has Kind == KindComplex
//   - every KindStruct either has zero non-void elements (rewritten to
//     KindVoid) or more than one non-void element
//   - a struct with exactly one non-void element has been collapsed to
//     that element's kind
//   - a return-position KindLongDouble has been rewritten to a struct
//     of two signed 64-bit integers
func Canonicalise(t *TypeDescriptor, inResult bool) Kind {
	if t == nil {
		if !inResult {
			abort("Canonicalise", "nil type descriptor is only legal for a return type")
		}
		return KindVoid
	}

	if t.Kind == KindComplex {
		return canonicaliseComplex(t)
	}

	if inResult && t.Kind == KindLongDouble {
		t.Kind = KindStruct
		t.Size = 16
		t.Alignment = 16
		t.Elements = []*TypeDescriptor{NewScalar(KindSint64), NewScalar(KindSint64)}
		return KindStruct
	}

	if t.Kind == KindStruct {
		return canonicaliseStruct(t)
	}

	return t.Kind
}

// canonicaliseComplex implements rule 2: a complex number becomes a
// two-field struct of its underlying floating-point kind. Only float,
// double, and longdouble complex numbers are supported; anything else
// is a fatal type error (the front end built an invalid descriptor).
func canonicaliseComplex(t *TypeDescriptor) Kind {
	if len(t.Elements) == 0 {
		abort("Canonicalise", "COMPLEX type has no underlying element")
	}
	elemKind := t.Elements[0].Kind
	var elem *TypeDescriptor
	switch elemKind {
	case KindFloat, KindDouble, KindLongDouble:
		elem = NewScalar(elemKind)
	default:
		abort("Canonicalise", "unsupported COMPLEX element kind: %s", KindName(elemKind))
		return KindVoid // unreachable
	}
	t.Kind = KindStruct
	t.Size = 2 * elem.Size
	t.Alignment = elem.Alignment
	t.Elements = []*TypeDescriptor{elem, elem}
	return KindStruct
}

// canonicaliseStruct implements rule 4. Recursion into elements always
// passes inResult=false: only the top-level return type is ever
// rewritten by the longdouble-return rule.
func canonicaliseStruct(t *TypeDescriptor) Kind {
	if t.Size == 0 {
		t.Kind = KindVoid
		return KindVoid
	}

	nonVoidCount := 0
	var lastNonVoid Kind
	for _, elem := range t.Elements {
		k := Canonicalise(elem, false)
		if k != KindVoid {
			nonVoidCount++
			lastNonVoid = k
		}
	}

	if nonVoidCount > 1 {
		return KindStruct
	}

	if nonVoidCount == 0 {
		t.Kind = KindVoid
		return KindVoid
	}

	// Exactly one non-void element: collapse to that element's kind.
	// Size and alignment are deliberately left untouched.
	t.Kind = lastNonVoid
	return lastNonVoid
}
