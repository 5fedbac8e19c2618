// cmd/server/main.go
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDB,
			provideSender,
			provideDeduper,
			provideInviter,
			provideRouter,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	).Run()
}
