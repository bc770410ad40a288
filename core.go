package resque

import (
	"github.com/resquego/resque/internal/log"
	"github.com/resquego/resque/internal/nsredis"
)

// core bundles the pieces every component needs: the namespaced Redis
// handle, the logger, the event bus, and the job factory. Both Client and
// Worker hold one; a Worker's core is also reachable from any Job it hands
// out so the job can report its own status and failures.
type core struct {
	rdb     *nsredis.Client
	logger  *log.Logger
	events  *eventBus
	factory Factory
}

func newCore(rdb *nsredis.Client, logger *log.Logger, factory Factory) *core {
	if factory == nil {
		factory = NewLegacyFactory()
	}
	return &core{rdb: rdb, logger: logger, events: newEventBus(), factory: factory}
}
