package sqlrepo

// Unwrap returns *v, or the zero value when v is nil.
func Unwrap[T any](v *T) T {
	var t T
	if v == nil {
		return t
	}
	return *v
}

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
