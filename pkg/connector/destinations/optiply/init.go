package optiply

import (
	"github.com/optisync/optiply-target/pkg/config"
	"github.com/optisync/optiply-target/pkg/connector/core"
	"github.com/optisync/optiply-target/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterDestination("optiply", func(cfg *config.BaseConfig) (core.Destination, error) {
		return NewDestination(), nil
	})
}
