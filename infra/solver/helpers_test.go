package solver

import (
	"math"

	"github.com/kilianp07/battopt/core/factory"
)

var posInf = math.Inf(1)

func factoryConfig(typ string, conf map[string]any) factory.ModuleConfig {
	return factory.ModuleConfig{Type: typ, Conf: conf}
}
