package engine

import "github.com/tidwall/btree"

// ladder is one side of a book: an ordered map of price -> PriceLevel.
//
// Both ladders are backed by a tidwall/btree.Map keyed by int64 price. Asks
// key directly by price so ascending Scan yields the lowest (best) ask
// first. Bids key by the negated price so ascending Scan yields the highest
// (best) bid first, avoiding the need for a second comparator.
type ladder struct {
	tree  *btree.Map[int64, *PriceLevel]
	isBid bool
}

func newLadder(isBid bool) *ladder {
	return &ladder{tree: btree.NewMap[int64, *PriceLevel](32), isBid: isBid}
}

// key maps an actual order price to the tree key for this ladder.
func (l *ladder) key(price int64) int64 {
	if l.isBid {
		return -price
	}
	return price
}

// level returns the level at price, creating it if needed.
func (l *ladder) level(price int64) *PriceLevel {
	k := l.key(price)
	if lvl, ok := l.tree.Get(k); ok {
		return lvl
	}
	lvl := newPriceLevel(price)
	l.tree.Set(k, lvl)
	return lvl
}

// get returns the level at price without creating it.
func (l *ladder) get(price int64) (*PriceLevel, bool) {
	return l.tree.Get(l.key(price))
}

// deleteIfEmpty removes the level at price if it has no resting orders.
func (l *ladder) deleteIfEmpty(price int64) {
	if lvl, ok := l.get(price); ok && lvl.Empty() {
		l.tree.Delete(l.key(price))
	}
}

// best returns the top-of-book level (lowest ask / highest bid), if any.
func (l *ladder) best() (*PriceLevel, bool) {
	var found *PriceLevel
	l.tree.Scan(func(_ int64, lvl *PriceLevel) bool {
		found = lvl
		return false
	})
	return found, found != nil
}

// depth returns up to n levels in priority order.
func (l *ladder) depth(n int) []BookLevel {
	if n <= 0 {
		return nil
	}
	result := make([]BookLevel, 0, n)
	l.tree.Scan(func(_ int64, lvl *PriceLevel) bool {
		result = append(result, BookLevel{Price: lvl.Price(), TotalQty: lvl.TotalQty(), OrderCount: lvl.OrderCount()})
		return len(result) < n
	})
	return result
}

// len returns the number of non-empty price levels.
func (l *ladder) len() int { return l.tree.Len() }
