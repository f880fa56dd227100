package cli

import (
	"github.com/datalab/connectctl/internal/events"
	"github.com/datalab/connectctl/internal/logging"
)

// watchSessionEvents logs every event on bus at debug level until the
// returned stop function is called. Events already buffered at that point
// are still logged.
func watchSessionEvents(bus *events.EventBus, logger *logging.Logger) (stop func()) {
	ch := bus.SubscribeAll()
	quit := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				logSessionEvent(logger, ev)
			case <-quit:
				for {
					select {
					case ev, ok := <-ch:
						if !ok {
							return
						}
						logSessionEvent(logger, ev)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		close(quit)
		<-done
		bus.UnsubscribeAll(ch)
	}
}

func logSessionEvent(logger *logging.Logger, ev events.Event) {
	e := logger.Debug().Str("event", string(ev.Type()))
	switch ev := ev.(type) {
	case *events.StepChangedEvent:
		e.Str("from", ev.From).Str("to", ev.To).
			Int("completed", ev.CompletedSteps).Bool("advanced", ev.AdvancedMode).
			Msg("Wizard step changed")
	case *events.ValidationEvent:
		e.Uint64("generation", ev.Generation).Str("status", ev.Status).AnErr("error", ev.Error).
			Msg("Connection test")
	case *events.CommitEvent:
		e.Str("storage_id", ev.StorageID).Bool("created", ev.Created).AnErr("error", ev.Error).
			Msg("Storage commit")
	case *events.CredentialsEvent:
		e.Str("storage_id", ev.StorageID).Str("action", ev.Action).Strs("fields", ev.Fields).
			AnErr("error", ev.Error).Msg("Storage credentials")
	case *events.ClosedEvent:
		e.Bool("success", ev.Success).Msg("Wizard session closed")
	case *events.LogEvent:
		e.Str("level", ev.Level.String()).AnErr("error", ev.Error).Msg(ev.Message)
	default:
		e.Msg("Session event")
	}
}
