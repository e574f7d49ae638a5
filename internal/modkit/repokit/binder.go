// Package repokit provides small helpers for binding repositories to queryers
// so services can run repo methods inside or outside transactions uniformly
package repokit

import "alertrecon/internal/platform/store"

// Queryer is the minimal query surface repos bind to (pool or tx)
type Queryer = store.RowQuerier

// Binder produces a repo of type T bound to a specific Queryer
type Binder[T any] interface {
	Bind(q Queryer) T
}

// BinderFunc adapts a function to the Binder interface
type BinderFunc[T any] func(q Queryer) T

// Bind implements Binder
func (f BinderFunc[T]) Bind(q Queryer) T { return f(q) }
