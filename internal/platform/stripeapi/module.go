package stripeapi

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(NewClient),
)
