package models

// Variant represents the construction strategy of a factory call site.
type Variant string

const (
	// VariantTransient builds an in-memory object with no identity.
	VariantTransient Variant = "transient"
	// VariantStubPersisted builds an in-memory object that reports a
	// fabricated identity without touching storage.
	VariantStubPersisted Variant = "stub_persisted"
	// VariantPersisted writes the object through the storage layer.
	VariantPersisted Variant = "persisted"
)

// Valid returns true if the variant is a known value.
func (v Variant) Valid() bool {
	switch v {
	case VariantTransient, VariantStubPersisted, VariantPersisted:
		return true
	default:
		return false
	}
}

// Cost returns the relative runtime cost of the variant. Higher is more
// expensive. Persisted > StubPersisted > Transient is a total order.
func (v Variant) Cost() int {
	switch v {
	case VariantPersisted:
		return 2
	case VariantStubPersisted:
		return 1
	case VariantTransient:
		return 0
	default:
		return -1
	}
}

// MethodName returns the factory helper that produces this variant.
// The collection form appends the _list suffix.
func (v Variant) MethodName(list bool) string {
	var base string
	switch v {
	case VariantPersisted:
		base = "create"
	case VariantStubPersisted:
		base = "build_stubbed"
	case VariantTransient:
		base = "build"
	default:
		return ""
	}
	if list {
		return base + "_list"
	}
	return base
}

// VariantForMethod maps a factory helper name to its variant. The second
// result reports whether the helper is the collection form. The third is
// false when the name is not a recognized factory helper.
func VariantForMethod(method string) (Variant, bool, bool) {
	switch method {
	case "create":
		return VariantPersisted, false, true
	case "create_list":
		return VariantPersisted, true, true
	case "build_stubbed":
		return VariantStubPersisted, false, true
	case "build_stubbed_list":
		return VariantStubPersisted, true, true
	case "build":
		return VariantTransient, false, true
	case "build_list":
		return VariantTransient, true, true
	default:
		return "", false, false
	}
}
