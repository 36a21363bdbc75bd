// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"github.com/dalemusser/waffle/app"
)

// Hooks wires PinBoard into the WAFFLE lifecycle. app.Run calls them in
// order: config, validation, connections, schema, startup work, handler
// construction and finally shutdown.
var Hooks = app.Hooks[AppConfig, DBDeps]{
	Name:           "pinboard",
	LoadConfig:     LoadConfig,
	ValidateConfig: ValidateConfig,
	ConnectDB:      ConnectDB,
	EnsureSchema:   EnsureSchema,
	Startup:        Startup,
	BuildHandler:   BuildHandler,
	Shutdown:       Shutdown,
}
