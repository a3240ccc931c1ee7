package engine

import (
	"errors"
	"time"
)

// Side represents the direction of an order.
type Side int

const (
	// Buy indicates a bid order.
	Buy Side = iota
	// Sell indicates an ask order.
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// OrderType represents the execution style for an order.
type OrderType int

const (
	// Limit orders rest on the book until filled or canceled.
	Limit OrderType = iota
	// Market orders consume available liquidity immediately and never rest.
	Market
)

func (t OrderType) String() string {
	if t == Limit {
		return "limit"
	}
	return "market"
}

// ErrNotFound is returned by FindOrder for an unknown id.
var ErrNotFound = errors.New("order not found")

// Order is a work item resting in or aggressing against an OrderBook.
//
// Price is expressed in the instrument's tick scale and is ignored (treated
// as 0) for Market orders. Remaining is mutated in place by matching and by
// ModifyOrder; 0 <= Remaining <= Quantity holds at all times.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      OrderType
	Price     int64
	Quantity  int64
	Remaining int64
	Timestamp time.Time
}

// isFilled reports whether the order has no remaining quantity.
func (o *Order) isFilled() bool { return o.Remaining <= 0 }

// fill reduces Remaining by amount. Callers must ensure amount <= Remaining.
func (o *Order) fill(amount int64) { o.Remaining -= amount }

// Trade records one execution produced while matching an aggressive order.
type Trade struct {
	TakerOrderID string
	MakerOrderID string
	TakerSide    Side
	Price        int64
	Quantity     int64
	Timestamp    time.Time
}

// BookLevel is an aggregated snapshot of one price point on one side.
type BookLevel struct {
	Price      int64
	TotalQty   int64
	OrderCount int
}

// BookView summarizes top-of-book prices for a symbol.
type BookView struct {
	BestBid *int64
	BestAsk *int64
}

// OrderBookConfig controls the parameters of a single instrument's book.
type OrderBookConfig struct {
	Symbol   string
	TickSize int64
}
