package repokit

// MustBind panics when the binder is nil. Call at module construction so
// wiring mistakes fail at startup, not mid-cycle
func MustBind[T any](b Binder[T], name string) Binder[T] {
	if b == nil {
		panic("repokit: nil binder for " + name)
	}
	return b
}
