// Package instrument holds the catalog of tradeable symbols and the tick,
// lot and price-scale rules a request-validation layer checks orders
// against before they ever reach an order book.
package instrument

import (
	"fmt"

	"github.com/spf13/viper"
)

// Instrument describes one tradeable symbol's trading rules.
type Instrument struct {
	Symbol      string `mapstructure:"symbol"`
	Description string `mapstructure:"description"`
	TickSize    int64  `mapstructure:"tick_size"`
	LotSize     int64  `mapstructure:"lot_size"`
	PriceScale  int    `mapstructure:"price_scale"`
}

// IsValidPrice reports whether price lands exactly on this instrument's
// tick grid.
func (i Instrument) IsValidPrice(price int64) bool {
	return i.TickSize > 0 && price%i.TickSize == 0
}

// IsValidQty reports whether qty lands exactly on this instrument's lot
// grid.
func (i Instrument) IsValidQty(qty int64) bool {
	return i.LotSize > 0 && qty%i.LotSize == 0
}

// Catalog is a loaded, read-only set of instruments keyed by symbol.
type Catalog struct {
	instruments map[string]Instrument
}

// LoadFromFile reads a YAML (or JSON/TOML — anything viper supports) file
// holding a top-level "instruments" list of {symbol, description, tick_size,
// lot_size, price_scale} entries.
func LoadFromFile(path string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("load instrument catalog %s: %w", path, err)
	}

	var raw struct {
		Instruments []Instrument `mapstructure:"instruments"`
	}
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("parse instrument catalog %s: %w", path, err)
	}

	return newCatalog(raw.Instruments), nil
}

// NewCatalog builds a catalog directly from a slice, useful for tests and
// for programmatic setup without a file on disk.
func NewCatalog(instruments []Instrument) *Catalog {
	return newCatalog(instruments)
}

func newCatalog(instruments []Instrument) *Catalog {
	c := &Catalog{instruments: make(map[string]Instrument, len(instruments))}
	for _, inst := range instruments {
		if inst.Symbol == "" {
			continue
		}
		c.instruments[inst.Symbol] = inst
	}
	return c
}

// Find looks up an instrument by symbol.
func (c *Catalog) Find(symbol string) (Instrument, bool) {
	inst, ok := c.instruments[symbol]
	return inst, ok
}

// AllSymbols returns every known symbol, in no particular order.
func (c *Catalog) AllSymbols() []string {
	symbols := make([]string, 0, len(c.instruments))
	for symbol := range c.instruments {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// Count returns the number of instruments in the catalog.
func (c *Catalog) Count() int {
	return len(c.instruments)
}
