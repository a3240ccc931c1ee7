package engine

import (
	"container/list"
	"time"
)

// PriceLevel is the FIFO queue of resting orders at a single price point on
// one side of a book. TotalQty is kept in lockstep with the sum of
// Remaining across queued orders; it must never be read stale.
type PriceLevel struct {
	price    int64
	totalQty int64
	orders   *list.List // *Order elements, head = oldest (time priority)
}

// newPriceLevel builds an empty level at price.
func newPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{price: price, orders: list.New()}
}

// Price returns the level's price point.
func (l *PriceLevel) Price() int64 { return l.price }

// TotalQty returns the sum of Remaining over queued orders.
func (l *PriceLevel) TotalQty() int64 { return l.totalQty }

// OrderCount returns the number of orders queued at this level.
func (l *PriceLevel) OrderCount() int { return l.orders.Len() }

// Empty reports whether the level has no resting orders.
func (l *PriceLevel) Empty() bool { return l.orders.Len() == 0 }

// Front returns the oldest order in the level, or nil if empty.
func (l *PriceLevel) Front() *Order {
	if front := l.orders.Front(); front != nil {
		return front.Value.(*Order)
	}
	return nil
}

// addOrder appends o to the tail of the queue, preserving time priority.
func (l *PriceLevel) addOrder(o *Order) {
	l.totalQty += o.Remaining
	l.orders.PushBack(o)
}

// findElement locates the list element holding the order with the given id.
func (l *PriceLevel) findElement(id string) *list.Element {
	for e := l.orders.Front(); e != nil; e = e.Next() {
		if e.Value.(*Order).ID == id {
			return e
		}
	}
	return nil
}

// removeOrder deletes the order with id from the queue. Reports whether it
// was found.
func (l *PriceLevel) removeOrder(id string) bool {
	e := l.findElement(id)
	if e == nil {
		return false
	}
	l.totalQty -= e.Value.(*Order).Remaining
	l.orders.Remove(e)
	return true
}

// reduceOrder reduces the order with id by reduceBy. If reduceBy is greater
// than or equal to its Remaining, the order is removed entirely (same as
// removeOrder). Position in the queue is preserved otherwise. Reports
// whether the order was found.
func (l *PriceLevel) reduceOrder(id string, reduceBy int64) bool {
	e := l.findElement(id)
	if e == nil {
		return false
	}
	o := e.Value.(*Order)
	if reduceBy >= o.Remaining {
		l.totalQty -= o.Remaining
		l.orders.Remove(e)
		return true
	}
	o.Remaining -= reduceBy
	l.totalQty -= reduceBy
	return true
}

// match consumes this level's queue head-first against aggressor, producing
// one Trade per maker touched, until aggressor is filled or the level empties.
// Every trade's price is this level's price, regardless of aggressor's price.
func (l *PriceLevel) match(aggressor *Order, execTime time.Time) []Trade {
	var trades []Trade

	for e := l.orders.Front(); e != nil && aggressor.Remaining > 0; e = l.orders.Front() {
		maker := e.Value.(*Order)

		fillQty := aggressor.Remaining
		if maker.Remaining < fillQty {
			fillQty = maker.Remaining
		}

		trades = append(trades, Trade{
			TakerOrderID: aggressor.ID,
			MakerOrderID: maker.ID,
			TakerSide:    aggressor.Side,
			Price:        l.price,
			Quantity:     fillQty,
			Timestamp:    execTime,
		})

		aggressor.fill(fillQty)
		maker.fill(fillQty)
		l.totalQty -= fillQty

		if maker.isFilled() {
			l.orders.Remove(e)
		}
	}

	return trades
}
