package jobhealth

import "go.uber.org/fx"

var Module = fx.Module("jobhealth",
	fx.Provide(NewStore),
)
