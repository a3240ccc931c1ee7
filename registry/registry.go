// Package registry builds and looks up one OrderBook per tradeable symbol.
package registry

import (
	"fmt"
	"sync"

	"echomill/engine"
	"echomill/instrument"
)

// Registry owns one *engine.OrderBook per instrument in a catalog.
type Registry struct {
	mu    sync.RWMutex
	books map[string]*engine.OrderBook
}

// New builds a book for every instrument in cat and returns the registry
// that owns them.
func New(cat *instrument.Catalog) *Registry {
	r := &Registry{books: make(map[string]*engine.OrderBook, cat.Count())}
	for _, symbol := range cat.AllSymbols() {
		inst, _ := cat.Find(symbol)
		r.books[symbol] = engine.NewOrderBook(engine.OrderBookConfig{
			Symbol:   inst.Symbol,
			TickSize: inst.TickSize,
		})
	}
	return r
}

// Book returns the order book for symbol, if one exists.
func (r *Registry) Book(symbol string) (*engine.OrderBook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[symbol]
	return b, ok
}

// MustBook returns the order book for symbol or an error naming it.
func (r *Registry) MustBook(symbol string) (*engine.OrderBook, error) {
	b, ok := r.Book(symbol)
	if !ok {
		return nil, fmt.Errorf("unknown symbol %q", symbol)
	}
	return b, nil
}

// Symbols returns every symbol this registry owns a book for.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols := make([]string, 0, len(r.books))
	for symbol := range r.books {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// StopAll stops every owned book's worker goroutine.
func (r *Registry) StopAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.books {
		b.Stop()
	}
}
