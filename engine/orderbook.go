package engine

import (
	"fmt"
	"time"
)

// command is one unit of work processed by an OrderBook's owning goroutine.
// Every public OrderBook method builds a command, submits it over reqCh, and
// blocks on done, so every operation serializes through the same worker
// loop without a new case per operation.
type command struct {
	run  func(ob *OrderBook)
	done chan struct{}
}

// OrderBook maintains bids and asks for a single symbol under price-time
// priority. All public methods are safe for concurrent use: each is
// serialized through a single owning goroutine (see run).
type OrderBook struct {
	cfg     OrderBookConfig
	bids    *ladder
	asks    *ladder
	index   orderIndex
	reqCh   chan command
	trades  chan Trade
	updates chan BookView
	now     func() time.Time
	done    chan struct{}
}

// NewOrderBook builds an order book for cfg and launches its worker loop.
func NewOrderBook(cfg OrderBookConfig) *OrderBook {
	ob := &OrderBook{
		cfg:     cfg,
		bids:    newLadder(true),
		asks:    newLadder(false),
		index:   newOrderIndex(),
		reqCh:   make(chan command),
		trades:  make(chan Trade, 64),
		updates: make(chan BookView, 16),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go ob.run()
	return ob
}

func (ob *OrderBook) run() {
	for {
		select {
		case cmd := <-ob.reqCh:
			cmd.run(ob)
			close(cmd.done)
		case <-ob.done:
			close(ob.trades)
			close(ob.updates)
			return
		}
	}
}

// Stop terminates the worker loop and closes the Trades/BookUpdates streams.
func (ob *OrderBook) Stop() {
	close(ob.done)
}

// submit runs fn on the owning goroutine and blocks until it has completed.
func (ob *OrderBook) submit(fn func(ob *OrderBook)) {
	cmd := command{run: fn, done: make(chan struct{})}
	select {
	case ob.reqCh <- cmd:
		<-cmd.done
	case <-ob.done:
	}
}

// Trades exposes the stream of executed trades, in emission order.
func (ob *OrderBook) Trades() <-chan Trade { return ob.trades }

// BookUpdates exposes a best-effort stream of top-of-book changes.
func (ob *OrderBook) BookUpdates() <-chan BookView { return ob.updates }

// AddOrder submits a new order. If the id collides with a resting order,
// matching runs first against the book as it stands — including the prior
// resting order if it sits on the opposite side, producing a self-trade —
// and the prior resting order under that id is only canceled once the new
// order is about to rest itself. The returned trades are in emission
// order, which is also the order the Trades() observer channel sees them
// in.
func (ob *OrderBook) AddOrder(order Order) ([]Trade, error) {
	if order.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive")
	}
	if order.Type == Market {
		order.Price = 0
	} else if order.Price <= 0 {
		return nil, fmt.Errorf("limit order must have a positive price")
	}

	var trades []Trade
	ob.submit(func(ob *OrderBook) {
		order.Remaining = order.Quantity
		order.Timestamp = ob.now()

		trades = ob.matchLocked(&order)

		if order.Remaining > 0 && order.Type == Limit {
			if _, ok := ob.index.get(order.ID); ok {
				ob.cancelLocked(order.ID)
			}
			ob.insertLocked(&order)
		}

		for _, t := range trades {
			ob.emit(t)
		}
		ob.publishViewLocked()
	})
	return trades, nil
}

// CancelOrder removes a resting order by id. Reports whether an order was
// found and removed; never returns an error.
func (ob *OrderBook) CancelOrder(id string) bool {
	var removed bool
	ob.submit(func(ob *OrderBook) {
		removed = ob.cancelLocked(id)
		if removed {
			ob.publishViewLocked()
		}
	})
	return removed
}

// ModifyOrder reduces a resting order's remaining quantity to newQty.
// Reduce-only: returns false if the order does not exist or newQty is
// greater than or equal to the order's current remaining quantity. A
// newQty of 0 performs a cancel. Position in the queue is preserved.
func (ob *OrderBook) ModifyOrder(id string, newQty int64) bool {
	var ok bool
	ob.submit(func(ob *OrderBook) {
		loc, found := ob.index.get(id)
		if !found {
			return
		}
		lvl, found := ob.ladderFor(loc.side).get(loc.price)
		if !found {
			return
		}
		e := lvl.findElement(id)
		if e == nil {
			return
		}
		current := e.Value.(*Order).Remaining
		if newQty >= current {
			return
		}
		if newQty == 0 {
			ok = ob.cancelLocked(id)
			ob.publishViewLocked()
			return
		}
		ok = lvl.reduceOrder(id, current-newQty)
		ob.publishViewLocked()
	})
	return ok
}

// FindOrder returns a copy of a resting order's current state.
func (ob *OrderBook) FindOrder(id string) (Order, error) {
	var result Order
	var err error
	ob.submit(func(ob *OrderBook) {
		loc, found := ob.index.get(id)
		if !found {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			return
		}
		lvl, found := ob.ladderFor(loc.side).get(loc.price)
		if !found {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			return
		}
		e := lvl.findElement(id)
		if e == nil {
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
			return
		}
		result = *e.Value.(*Order)
	})
	return result, err
}

// BestBid returns the highest resting bid price, if any.
func (ob *OrderBook) BestBid() (int64, bool) {
	var price int64
	var ok bool
	ob.submit(func(ob *OrderBook) {
		if lvl, found := ob.bids.best(); found {
			price, ok = lvl.Price(), true
		}
	})
	return price, ok
}

// BestAsk returns the lowest resting ask price, if any.
func (ob *OrderBook) BestAsk() (int64, bool) {
	var price int64
	var ok bool
	ob.submit(func(ob *OrderBook) {
		if lvl, found := ob.asks.best(); found {
			price, ok = lvl.Price(), true
		}
	})
	return price, ok
}

// Spread returns bestAsk - bestBid when both sides are present.
func (ob *OrderBook) Spread() (int64, bool) {
	var spread int64
	var ok bool
	ob.submit(func(ob *OrderBook) {
		bidLvl, bidOK := ob.bids.best()
		askLvl, askOK := ob.asks.best()
		if bidOK && askOK {
			spread, ok = askLvl.Price()-bidLvl.Price(), true
		}
	})
	return spread, ok
}

// BidDepth returns up to n bid levels, highest price first.
func (ob *OrderBook) BidDepth(n int) []BookLevel {
	var levels []BookLevel
	ob.submit(func(ob *OrderBook) { levels = ob.bids.depth(n) })
	return levels
}

// AskDepth returns up to n ask levels, lowest price first.
func (ob *OrderBook) AskDepth(n int) []BookLevel {
	var levels []BookLevel
	ob.submit(func(ob *OrderBook) { levels = ob.asks.depth(n) })
	return levels
}

// BidLevelCount returns the number of distinct non-empty bid price levels.
func (ob *OrderBook) BidLevelCount() int {
	var n int
	ob.submit(func(ob *OrderBook) { n = ob.bids.len() })
	return n
}

// AskLevelCount returns the number of distinct non-empty ask price levels.
func (ob *OrderBook) AskLevelCount() int {
	var n int
	ob.submit(func(ob *OrderBook) { n = ob.asks.len() })
	return n
}

// OrderCount returns the number of resting orders across both sides.
func (ob *OrderBook) OrderCount() int {
	var n int
	ob.submit(func(ob *OrderBook) { n = ob.index.len() })
	return n
}

// Snapshot returns the current top-of-book view.
func (ob *OrderBook) Snapshot() BookView {
	var view BookView
	ob.submit(func(ob *OrderBook) { view = ob.snapshotLocked() })
	return view
}

func (ob *OrderBook) ladderFor(side Side) *ladder {
	if side == Buy {
		return ob.bids
	}
	return ob.asks
}

func (ob *OrderBook) oppositeLadderFor(side Side) *ladder {
	if side == Buy {
		return ob.asks
	}
	return ob.bids
}

// matchLocked runs the crossing algorithm against the opposite ladder. It
// must only be called from the owning goroutine.
func (ob *OrderBook) matchLocked(aggressor *Order) []Trade {
	opposite := ob.oppositeLadderFor(aggressor.Side)
	execTime := ob.now()

	var allTrades []Trade
	for aggressor.Remaining > 0 {
		best, found := opposite.best()
		if !found {
			break
		}

		if aggressor.Type == Limit {
			if aggressor.Side == Buy && aggressor.Price < best.Price() {
				break
			}
			if aggressor.Side == Sell && aggressor.Price > best.Price() {
				break
			}
		}

		price := best.Price()
		trades := best.match(aggressor, execTime)
		allTrades = append(allTrades, trades...)

		for _, t := range trades {
			if lvl, ok := opposite.get(price); !ok || lvl.findElement(t.MakerOrderID) == nil {
				ob.index.delete(t.MakerOrderID)
			}
		}

		if best.Empty() {
			opposite.deleteIfEmpty(price)
		}
	}

	return allTrades
}

// insertLocked rests order on its own side, registering it in the index.
func (ob *OrderBook) insertLocked(order *Order) {
	ob.ladderFor(order.Side).level(order.Price).addOrder(order)
	ob.index.put(order.ID, order.Side, order.Price)
}

// cancelLocked removes a resting order by id, if present.
func (ob *OrderBook) cancelLocked(id string) bool {
	loc, ok := ob.index.get(id)
	if !ok {
		return false
	}
	l := ob.ladderFor(loc.side)
	lvl, ok := l.get(loc.price)
	if !ok {
		return false
	}
	removed := lvl.removeOrder(id)
	if removed {
		l.deleteIfEmpty(loc.price)
		ob.index.delete(id)
	}
	return removed
}

func (ob *OrderBook) snapshotLocked() BookView {
	var view BookView
	if lvl, ok := ob.bids.best(); ok {
		p := lvl.Price()
		view.BestBid = &p
	}
	if lvl, ok := ob.asks.best(); ok {
		p := lvl.Price()
		view.BestAsk = &p
	}
	return view
}

// emit delivers a trade to the observer channel in emission order. It is a
// blocking send: a trade observer must not re-enter the engine or it will
// deadlock against its own owning goroutine, and a slow consumer applies
// backpressure to the whole book.
func (ob *OrderBook) emit(t Trade) {
	ob.trades <- t
}

func (ob *OrderBook) publishViewLocked() {
	view := ob.snapshotLocked()
	select {
	case ob.updates <- view:
	default:
	}
}
