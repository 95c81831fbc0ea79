package dispatcher

import "github.com/btouchard/xbmcnotify/internal/bus"

// BusRegistrar adapts a *bus.Memory to Registrar.
type BusRegistrar struct {
	Bus *bus.Memory
}

// Subscribe implements Registrar.
func (r BusRegistrar) Subscribe(topics []string, handler bus.Handler) (Subscription, error) {
	sub, err := r.Bus.Subscribe(topics, handler)
	if err != nil {
		return nil, err
	}
	return sub, nil
}
