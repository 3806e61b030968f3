package payload

// Merge folds each source into target in order. Where both sides hold an
// object the merge recurses; anything else is replaced by a copy of the
// source value, so later sources win. target is returned for chaining; a nil
// or non-object target yields a fresh object.
func Merge(target *Value, sources ...*Value) *Value {
	if !target.IsObject() {
		target = NewObject()
	}
	for _, src := range sources {
		if !src.IsObject() {
			continue
		}
		mergeInto(target, src)
	}
	return target
}

func mergeInto(target, src *Value) {
	for key, value := range src.fields {
		existing, ok := target.fields[key]
		if ok && existing.IsObject() && value.IsObject() {
			mergeInto(existing, value)
			continue
		}
		target.fields[key] = value.Clone()
	}
}
