// Package actions lists the native action factories registered at boot.
package actions

import (
	"github.com/chutney-testing/chutney-suite/pkg/actions/basic"
	"github.com/chutney-testing/chutney-suite/pkg/actions/contextput"
	"github.com/chutney-testing/chutney-suite/pkg/actions/debug"
	"github.com/chutney-testing/chutney-suite/pkg/actions/httprequest"
	"github.com/chutney-testing/chutney-suite/pkg/actions/jsonvalidation"
	"github.com/chutney-testing/chutney-suite/pkg/actions/kafka"
	"github.com/chutney-testing/chutney-suite/pkg/actions/sql"
	"github.com/chutney-testing/chutney-suite/pkg/protocol"
)

// Registrar is satisfied by registry.Registry.
type Registrar interface {
	RegisterAction(factory protocol.ActionFactory)
}

func Defaults() []protocol.ActionFactory {
	factories := []protocol.ActionFactory{
		basic.NewSuccessFactory(),
		basic.NewFailFactory(),
		basic.NewSleepFactory(),
		debug.NewActionFactory(),
		contextput.NewActionFactory(),
		jsonvalidation.NewActionFactory(),
		httprequest.NewActionFactory(),
		kafka.NewActionFactory(),
		sql.NewActionFactory(),
	}

	for _, factory := range httprequest.MethodActionFactories() {
		factories = append(factories, factory)
	}

	return factories
}

func RegisterDefaults(registrar Registrar) {
	for _, factory := range Defaults() {
		registrar.RegisterAction(factory)
	}
}
