package runlog

import "github.com/kilianp07/battopt/core/factory"

var storeRegistry = factory.NewRegistry[Store]()

// RegisterStore adds a store factory identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// NewStore creates a Store from cfg. An empty type disables the history.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" || cfg.Type == "nop" {
		return NopStore{}, nil
	}
	return storeRegistry.Create(cfg)
}
