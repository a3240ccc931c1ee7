package engine

import (
	"testing"
	"time"
)

// TestPriceTimePriority checks that a marketable buy consumes resting sell
// orders at the same price in the order they were posted.
func TestPriceTimePriority(t *testing.T) {
	ob := NewOrderBook(OrderBookConfig{Symbol: "XYZ", TickSize: 1})
	defer ob.Stop()
	ob.now = func() time.Time { return time.Unix(0, 0) }

	mustAdd(t, ob, Order{ID: "1", Side: Sell, Type: Limit, Price: 10000, Quantity: 10})
	mustAdd(t, ob, Order{ID: "2", Side: Sell, Type: Limit, Price: 10000, Quantity: 10})
	mustAdd(t, ob, Order{ID: "3", Side: Sell, Type: Limit, Price: 10000, Quantity: 10})

	trades, err := ob.AddOrder(Order{ID: "4", Side: Buy, Type: Limit, Price: 10000, Quantity: 15})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d: %+v", len(trades), trades)
	}
	if trades[0].MakerOrderID != "1" || trades[0].Quantity != 10 {
		t.Fatalf("unexpected first trade: %+v", trades[0])
	}
	if trades[1].MakerOrderID != "2" || trades[1].Quantity != 5 {
		t.Fatalf("unexpected second trade: %+v", trades[1])
	}

	asks := ob.AskDepth(1)
	if len(asks) != 1 || asks[0].TotalQty != 15 || asks[0].OrderCount != 2 {
		t.Fatalf("unexpected ask top level: %+v", asks)
	}
}

// TestMarketOrderSweep checks that a market order walks the book across
// multiple price levels and any unfilled residual is discarded, not rested.
func TestMarketOrderSweep(t *testing.T) {
	ob := NewOrderBook(OrderBookConfig{Symbol: "XYZ", TickSize: 1})
	defer ob.Stop()

	mustAdd(t, ob, Order{ID: "1", Side: Sell, Type: Limit, Price: 10000, Quantity: 10})
	mustAdd(t, ob, Order{ID: "2", Side: Sell, Type: Limit, Price: 10100, Quantity: 10})
	mustAdd(t, ob, Order{ID: "3", Side: Sell, Type: Limit, Price: 10200, Quantity: 10})

	trades, err := ob.AddOrder(Order{ID: "4", Side: Buy, Type: Market, Quantity: 25})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	want := []struct {
		price, qty int64
	}{{10000, 10}, {10100, 10}, {10200, 5}}
	if len(trades) != len(want) {
		t.Fatalf("expected %d trades, got %d: %+v", len(want), len(trades), trades)
	}
	for i, w := range want {
		if trades[i].Price != w.price || trades[i].Quantity != w.qty {
			t.Fatalf("trade %d mismatch: %+v", i, trades[i])
		}
	}

	asks := ob.AskDepth(5)
	if len(asks) != 1 || asks[0].Price != 10200 || asks[0].TotalQty != 5 || asks[0].OrderCount != 1 {
		t.Fatalf("unexpected ask state after sweep: %+v", asks)
	}
	if _, err := ob.FindOrder("4"); err == nil {
		t.Fatalf("market order should not rest")
	}
}

// TestPartialFillPostsResidual checks that a limit order which only
// partially fills rests the remainder on its own side of the book.
func TestPartialFillPostsResidual(t *testing.T) {
	ob := NewOrderBook(OrderBookConfig{Symbol: "XYZ", TickSize: 1})
	defer ob.Stop()

	mustAdd(t, ob, Order{ID: "1", Side: Sell, Type: Limit, Price: 10000, Quantity: 10})
	trades, err := ob.AddOrder(Order{ID: "2", Side: Buy, Type: Limit, Price: 10000, Quantity: 20})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(trades) != 1 || trades[0].Quantity != 10 {
		t.Fatalf("unexpected trades: %+v", trades)
	}

	bid, ok := ob.BestBid()
	if !ok || bid != 10000 {
		t.Fatalf("expected best bid 10000, got %d ok=%v", bid, ok)
	}
	bids := ob.BidDepth(1)
	if len(bids) != 1 || bids[0].TotalQty != 10 {
		t.Fatalf("unexpected bid depth: %+v", bids)
	}
	if ob.AskLevelCount() != 0 {
		t.Fatalf("expected empty ask side, got %d levels", ob.AskLevelCount())
	}
}

// TestNonCrossingLimit checks that a limit order priced away from the
// opposite side rests without generating any trades.
func TestNonCrossingLimit(t *testing.T) {
	ob := NewOrderBook(OrderBookConfig{Symbol: "XYZ", TickSize: 1})
	defer ob.Stop()

	mustAdd(t, ob, Order{ID: "1", Side: Sell, Type: Limit, Price: 10100, Quantity: 10})
	trades, err := ob.AddOrder(Order{ID: "2", Side: Buy, Type: Limit, Price: 10000, Quantity: 10})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if len(trades) != 0 {
		t.Fatalf("expected zero trades, got %+v", trades)
	}

	bid, _ := ob.BestBid()
	ask, _ := ob.BestAsk()
	spread, ok := ob.Spread()
	if bid != 10000 || ask != 10100 || !ok || spread != 100 {
		t.Fatalf("unexpected book state: bid=%d ask=%d spread=%d ok=%v", bid, ask, spread, ok)
	}
}

// TestCancelAndModify checks reduce-only modify semantics: a smaller
// quantity succeeds, a larger one is rejected, and reducing to zero cancels.
func TestCancelAndModify(t *testing.T) {
	ob := NewOrderBook(OrderBookConfig{Symbol: "XYZ", TickSize: 1})
	defer ob.Stop()

	mustAdd(t, ob, Order{ID: "1", Side: Buy, Type: Limit, Price: 10000, Quantity: 10})

	if !ob.ModifyOrder("1", 4) {
		t.Fatalf("expected modify to succeed")
	}
	o, err := ob.FindOrder("1")
	if err != nil || o.Remaining != 4 {
		t.Fatalf("unexpected order state after modify: %+v err=%v", o, err)
	}

	if ob.ModifyOrder("1", 20) {
		t.Fatalf("modify to a larger quantity must be rejected")
	}

	if !ob.ModifyOrder("1", 0) {
		t.Fatalf("modify to 0 should succeed as a cancel")
	}
	if ob.OrderCount() != 0 {
		t.Fatalf("expected order removed, count=%d", ob.OrderCount())
	}
}

// TestDepthAggregation checks that BidDepth aggregates quantity and order
// count per price level and returns levels best-price-first.
func TestDepthAggregation(t *testing.T) {
	ob := NewOrderBook(OrderBookConfig{Symbol: "XYZ", TickSize: 1})
	defer ob.Stop()

	mustAdd(t, ob, Order{ID: "1", Side: Buy, Type: Limit, Price: 10000, Quantity: 10})
	mustAdd(t, ob, Order{ID: "2", Side: Buy, Type: Limit, Price: 9900, Quantity: 20})
	mustAdd(t, ob, Order{ID: "3", Side: Buy, Type: Limit, Price: 9800, Quantity: 30})
	mustAdd(t, ob, Order{ID: "4", Side: Buy, Type: Limit, Price: 10000, Quantity: 5})

	depth := ob.BidDepth(2)
	if len(depth) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(depth))
	}
	if depth[0] != (BookLevel{Price: 10000, TotalQty: 15, OrderCount: 2}) {
		t.Fatalf("unexpected top level: %+v", depth[0])
	}
	if depth[1] != (BookLevel{Price: 9900, TotalQty: 20, OrderCount: 1}) {
		t.Fatalf("unexpected second level: %+v", depth[1])
	}
}

// TestDuplicateIDReplacesPriorOrder checks that AddOrder with a colliding
// id on the same side, where no match occurs, ends up resting as the new
// order and replaces the prior one.
func TestDuplicateIDReplacesPriorOrder(t *testing.T) {
	ob := NewOrderBook(OrderBookConfig{Symbol: "XYZ", TickSize: 1})
	defer ob.Stop()

	mustAdd(t, ob, Order{ID: "1", Side: Buy, Type: Limit, Price: 10000, Quantity: 10})
	mustAdd(t, ob, Order{ID: "1", Side: Buy, Type: Limit, Price: 9900, Quantity: 3})

	o, err := ob.FindOrder("1")
	if err != nil {
		t.Fatalf("expected order 1 to exist: %v", err)
	}
	if o.Price != 9900 || o.Remaining != 3 {
		t.Fatalf("expected the second add to have replaced the first, got %+v", o)
	}
	if ob.OrderCount() != 1 {
		t.Fatalf("expected exactly one resting order, got %d", ob.OrderCount())
	}
}

// TestDuplicateIDSelfTradesWhenCrossing checks that AddOrder with a
// colliding id on the opposite, crossing side matches against its own
// prior resting order first, and only replaces what's left of it
// afterward — the cancel of the old id is not applied up front.
func TestDuplicateIDSelfTradesWhenCrossing(t *testing.T) {
	ob := NewOrderBook(OrderBookConfig{Symbol: "XYZ", TickSize: 1})
	defer ob.Stop()

	mustAdd(t, ob, Order{ID: "1", Side: Buy, Type: Limit, Price: 10000, Quantity: 10})

	trades := mustAdd(t, ob, Order{ID: "1", Side: Sell, Type: Limit, Price: 10000, Quantity: 5})

	if len(trades) != 1 {
		t.Fatalf("expected one self-trade, got %d", len(trades))
	}
	tr := trades[0]
	if tr.TakerOrderID != "1" || tr.MakerOrderID != "1" || tr.Quantity != 5 || tr.Price != 10000 {
		t.Fatalf("unexpected trade: %+v", tr)
	}

	o, err := ob.FindOrder("1")
	if err != nil {
		t.Fatalf("expected order 1 to still be resting: %v", err)
	}
	if o.Side != Buy || o.Remaining != 5 {
		t.Fatalf("expected the original buy to remain resting with reduced quantity, got %+v", o)
	}
	if ob.OrderCount() != 1 {
		t.Fatalf("expected exactly one resting order, got %d", ob.OrderCount())
	}
}

// TestCancelIsIdempotent checks that canceling an already-canceled order
// id is a no-op rather than an error.
func TestCancelIsIdempotent(t *testing.T) {
	ob := NewOrderBook(OrderBookConfig{Symbol: "XYZ", TickSize: 1})
	defer ob.Stop()

	mustAdd(t, ob, Order{ID: "1", Side: Buy, Type: Limit, Price: 10000, Quantity: 10})

	if !ob.CancelOrder("1") {
		t.Fatalf("expected first cancel to succeed")
	}
	if ob.CancelOrder("1") {
		t.Fatalf("expected second cancel to be a no-op")
	}
	if ob.OrderCount() != 0 {
		t.Fatalf("expected no resting orders, got %d", ob.OrderCount())
	}
}

// TestModifyToSameRemainingIsRejected checks that reduce-only modify
// rejects a newQty equal to the current remaining quantity.
func TestModifyToSameRemainingIsRejected(t *testing.T) {
	ob := NewOrderBook(OrderBookConfig{Symbol: "XYZ", TickSize: 1})
	defer ob.Stop()

	mustAdd(t, ob, Order{ID: "1", Side: Buy, Type: Limit, Price: 10000, Quantity: 10})
	if ob.ModifyOrder("1", 10) {
		t.Fatalf("modify to the current remaining must be rejected, not a no-op")
	}
}

func mustAdd(t *testing.T, ob *OrderBook, o Order) []Trade {
	t.Helper()
	trades, err := ob.AddOrder(o)
	if err != nil {
		t.Fatalf("add order %s failed: %v", o.ID, err)
	}
	return trades
}
