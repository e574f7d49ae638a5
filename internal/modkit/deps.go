// Package modkit carries the shared dependency bundle handed to every service module
package modkit

import (
	"alertrecon/internal/platform/config"
	"alertrecon/internal/platform/logger"
	"alertrecon/internal/platform/store"
)

// Deps is the standard constructor argument for service modules
type Deps struct {
	Log *logger.Logger
	Cfg config.Conf
	PG  store.TxRunner
	CH  store.Clickhouse
}

// Named returns a copy of Deps with a component-scoped logger
func (d Deps) Named(component string) Deps {
	d.Log = logger.Named(component)
	return d
}
