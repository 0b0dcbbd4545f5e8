package domain

import "fmt"

// Providers dispatches a source tag to its adapter via a keyed lookup
// instead of scanning a supports() chain.
type Providers map[string]Provider

func NewProviders(ps ...Provider) Providers {
	m := make(Providers, len(ps))
	for _, p := range ps {
		m[p.Source()] = p
	}
	return m
}

func (m Providers) For(source string) (Provider, error) {
	p, ok := m[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	return p, nil
}
