package gql

// event is a change raised by a mutation for Subscription operations.
type event struct {
	name  string
	value interface{}
}

// raise records an event. Events are delivered after the mutation's own
// payload, by flush.
func (e *Engine) raise(name string, value interface{}) {
	e.pending = append(e.pending, event{name: name, value: value})
}

// flush hands pending events to the message pump, or delivers them at once
// when the worker has no pump.
func (e *Engine) flush() {
	events := e.pending
	e.pending = nil
	for _, ev := range events {
		if e.env.Pump != nil {
			if !e.env.Pump.Post(func() { e.deliver(ev) }) {
				e.logger.Warn("event dropped, pump closed", "event", ev.name)
			}
			continue
		}
		e.deliver(ev)
	}
}

// deliver runs every live subscription whose single root field is the
// event's, with the event as the execution root. Subscriptions are visited
// in id order.
func (e *Engine) deliver(ev event) {
	if e.store == nil {
		return
	}
	root := map[string]interface{}{ev.name: ev.value}
	delivered := 0
	for _, id := range sortedIDs(e.subs) {
		sub, ok := e.subs[id]
		if !ok || !sub.registered || len(sub.fields) != 1 || !sub.fields[ev.name] {
			continue
		}
		sub.next(e.execute(sub, root))
		delivered++
	}
	e.logger.Debug("event delivered", "event", ev.name, "subscriptions", delivered)
}
