package ffi

// PrepCIFMachdep runs CIF preparation: it canonicalises every argument
// type and the return type (for the WASM32 ABI only — the emscripten
// variant never rewrites types), rejects nargs > MaxArgs, and, for
// non-variadic CIFs, forces NFixedArgs = NArgs.
//
// It is safe to call twice on the same CIF: canonicalisation converges
// after one pass, so a second call is a no-op.
func PrepCIFMachdep(cif *CIF) Status {
	switch cif.ABI {
	case WASM32:
		for _, arg := range cif.ArgTypes {
			Canonicalise(arg, false)
		}
		Canonicalise(cif.RType, true)
	case WASM32Emscripten:
		if topLevelComplex(cif.RType) {
			return BadTypedef
		}
		for _, arg := range cif.ArgTypes {
			if topLevelComplex(arg) {
				return BadTypedef
			}
		}
	default:
		return BadABI
	}

	// Called after PrepCIFMachdepVar, so avoid clobbering NFixedArgs.
	if cif.Flags&FlagVarargs == 0 {
		cif.NFixedArgs = cif.NArgs
	}
	if cif.NArgs > MaxArgs {
		return BadTypedef
	}
	return OK
}

func topLevelComplex(t *TypeDescriptor) bool {
	return t != nil && t.Kind == KindComplex
}

// PrepCIFMachdepVar marks cif as variadic, recording nFixedArgs. Under
// WASM32Emscripten, one extra logical slot is charged for the varargs
// pointer; under WASM32, varargs are unsupported and this always
// returns BadABI.
func PrepCIFMachdepVar(cif *CIF, nFixedArgs, nTotalArgs uint32) Status {
	cif.Flags |= FlagVarargs
	cif.NFixedArgs = nFixedArgs

	if cif.ABI != WASM32Emscripten {
		return BadABI
	}
	if cif.NFixedArgs+1 > MaxArgs {
		return BadTypedef
	}
	return OK
}
