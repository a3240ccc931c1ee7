// Package server exposes a Registry of order books over HTTP and
// WebSocket using gin, with one book per symbol and structured
// logging/metrics.
package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"echomill/engine"
	"echomill/instrument"
	"echomill/registry"
)

// Config controls auth and CORS for a Server.
type Config struct {
	CORSOrigin string
	AuthToken  string
}

// Server wires a Registry and Catalog to an HTTP/WebSocket front end.
type Server struct {
	reg      *registry.Registry
	catalog  *instrument.Catalog
	logger   *zap.Logger
	cfg      Config
	engine   *gin.Engine
	upgrader websocket.Upgrader

	tradeHubs map[string]*hub[engine.Trade]
	bookHubs  map[string]*hub[engine.BookView]
}

// New builds a Server and registers all routes.
func New(reg *registry.Registry, catalog *instrument.Catalog, logger *zap.Logger, cfg Config) *Server {
	s := &Server{
		reg:       reg,
		catalog:   catalog,
		logger:    logger,
		cfg:       cfg,
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		tradeHubs: make(map[string]*hub[engine.Trade]),
		bookHubs:  make(map[string]*hub[engine.BookView]),
	}

	for _, symbol := range reg.Symbols() {
		s.tradeHubs[symbol] = newHub[engine.Trade]()
		s.bookHubs[symbol] = newHub[engine.BookView]()
		book, _ := reg.Book(symbol)
		go s.consumeTrades(symbol, book)
		go s.consumeBookUpdates(symbol, book)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(zapRecovery(logger), zapLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1", bearerAuth(cfg.AuthToken))
	v1.POST("/orders", s.handleAddOrder)
	v1.DELETE("/orders/:symbol/:id", s.handleCancelOrder)
	v1.PATCH("/orders/:symbol/:id", s.handleModifyOrder)
	v1.GET("/orders/:symbol/:id", s.handleFindOrder)
	v1.GET("/book/:symbol", s.handleBookSnapshot)
	v1.GET("/instruments", s.handleInstruments)

	ws := r.Group("/ws", bearerAuth(cfg.AuthToken))
	ws.GET("/trades/:symbol", s.handleTradeStream)
	ws.GET("/book/:symbol", s.handleBookStream)

	s.engine = r
	return s
}

// Handler returns the underlying HTTP handler, for http.ListenAndServe or
// for tests using httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) handleHealthz(c *gin.Context) {
	symbols := s.reg.Symbols()
	orders := make(map[string]int, len(symbols))
	for _, symbol := range symbols {
		book, ok := s.reg.Book(symbol)
		if !ok {
			continue
		}
		orders[symbol] = book.OrderCount()
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "orders": orders})
}

type orderRequest struct {
	ID       string `json:"id" binding:"required"`
	Symbol   string `json:"symbol" binding:"required"`
	Side     string `json:"side" binding:"required"`
	Type     string `json:"type" binding:"required"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity" binding:"required"`
}

type orderResponse struct {
	Trades []tradeView `json:"trades"`
}

type tradeView struct {
	TakerOrderID string    `json:"taker_order_id"`
	MakerOrderID string    `json:"maker_order_id"`
	TakerSide    string    `json:"taker_side"`
	Price        int64     `json:"price"`
	Quantity     int64     `json:"quantity"`
	Timestamp    time.Time `json:"timestamp"`
}

func (s *Server) handleAddOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	symbol := req.Symbol
	book, err := s.reg.MustBook(symbol)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	side, err := parseSide(req.Side)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	otype, err := parseOrderType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, ok := s.catalog.Find(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown instrument %q", symbol)})
		return
	}
	if otype == engine.Limit && !inst.IsValidPrice(req.Price) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("price %d is not a multiple of tick size %d", req.Price, inst.TickSize)})
		return
	}
	if !inst.IsValidQty(req.Quantity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("quantity %d is not a multiple of lot size %d", req.Quantity, inst.LotSize)})
		return
	}

	trades, err := book.AddOrder(engine.Order{
		ID:       req.ID,
		Symbol:   symbol,
		Side:     side,
		Type:     otype,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ordersSubmitted.WithLabelValues(symbol, side.String()).Inc()
	tradesExecuted.WithLabelValues(symbol).Add(float64(len(trades)))

	views := make([]tradeView, len(trades))
	for i, t := range trades {
		views[i] = toTradeView(t)
	}
	c.JSON(http.StatusAccepted, orderResponse{Trades: views})
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	book, err := s.reg.MustBook(c.Param("symbol"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if book.CancelOrder(c.Param("id")) {
		c.JSON(http.StatusOK, gin.H{"status": "canceled"})
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
}

type modifyRequest struct {
	NewQty int64 `json:"new_qty"`
}

func (s *Server) handleModifyOrder(c *gin.Context) {
	book, err := s.reg.MustBook(c.Param("symbol"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if book.ModifyOrder(c.Param("id"), req.NewQty) {
		c.JSON(http.StatusOK, gin.H{"status": "modified"})
		return
	}
	c.JSON(http.StatusConflict, gin.H{"error": "modify rejected"})
}

func (s *Server) handleFindOrder(c *gin.Context) {
	book, err := s.reg.MustBook(c.Param("symbol"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	order, err := book.FindOrder(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toOrderView(order))
}

type bookLevelView struct {
	Price int64 `json:"price"`
	Qty   int64 `json:"qty"`
	Count int   `json:"count"`
}

type bookSnapshotView struct {
	Symbol string          `json:"symbol"`
	Bids   []bookLevelView `json:"bids"`
	Asks   []bookLevelView `json:"asks"`
}

func (s *Server) handleBookSnapshot(c *gin.Context) {
	symbol := c.Param("symbol")
	book, err := s.reg.MustBook(symbol)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	levels := 5
	if raw := c.Query("levels"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			levels = n
		}
	}

	c.JSON(http.StatusOK, bookSnapshotView{
		Symbol: symbol,
		Bids:   toLevelViews(book.BidDepth(levels)),
		Asks:   toLevelViews(book.AskDepth(levels)),
	})
}

type instrumentView struct {
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	TickSize    int64  `json:"tick_size"`
	LotSize     int64  `json:"lot_size"`
	PriceScale  int    `json:"price_scale"`
	DisplayTick string `json:"display_tick"`
}

func (s *Server) handleInstruments(c *gin.Context) {
	symbols := s.catalog.AllSymbols()
	views := make([]instrumentView, 0, len(symbols))
	for _, symbol := range symbols {
		inst, ok := s.catalog.Find(symbol)
		if !ok {
			continue
		}
		views = append(views, instrumentView{
			Symbol:      inst.Symbol,
			Description: inst.Description,
			TickSize:    inst.TickSize,
			LotSize:     inst.LotSize,
			PriceScale:  inst.PriceScale,
			DisplayTick: displayTick(inst),
		})
	}
	c.JSON(http.StatusOK, gin.H{"instruments": views})
}

// displayTick renders a tick size in the instrument's own decimal scale,
// the one place in the repo a decimal type is used — strictly at the
// JSON-rendering boundary, never inside the matching engine.
func displayTick(inst instrument.Instrument) string {
	if inst.PriceScale <= 0 {
		return decimal.NewFromInt(inst.TickSize).String()
	}
	return decimal.NewFromInt(inst.TickSize).Div(decimal.NewFromInt(int64(inst.PriceScale))).String()
}

type outboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func (s *Server) handleTradeStream(c *gin.Context) {
	symbol := c.Param("symbol")
	h, ok := s.tradeHubs[symbol]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.Subscribe(32)
	defer h.Unsubscribe(sub)

	for trade := range sub.ch {
		msg := outboundMessage{Type: "trade", Data: toTradeView(trade)}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *Server) handleBookStream(c *gin.Context) {
	symbol := c.Param("symbol")
	h, ok := s.bookHubs[symbol]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := h.Subscribe(32)
	defer h.Unsubscribe(sub)

	for view := range sub.ch {
		msg := outboundMessage{Type: "book", Data: toBookView(view)}
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

func (s *Server) consumeTrades(symbol string, book *engine.OrderBook) {
	h := s.tradeHubs[symbol]
	for trade := range book.Trades() {
		h.Broadcast(trade)
	}
}

func (s *Server) consumeBookUpdates(symbol string, book *engine.OrderBook) {
	h := s.bookHubs[symbol]
	for view := range book.BookUpdates() {
		h.Broadcast(view)
	}
}

func toLevelViews(levels []engine.BookLevel) []bookLevelView {
	views := make([]bookLevelView, len(levels))
	for i, lvl := range levels {
		views[i] = bookLevelView{Price: lvl.Price, Qty: lvl.TotalQty, Count: lvl.OrderCount}
	}
	return views
}

type orderView struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Type      string    `json:"type"`
	Price     int64     `json:"price"`
	Quantity  int64     `json:"quantity"`
	Remaining int64     `json:"remaining"`
	Timestamp time.Time `json:"timestamp"`
}

func toOrderView(o engine.Order) orderView {
	return orderView{
		ID:        o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side.String(),
		Type:      o.Type.String(),
		Price:     o.Price,
		Quantity:  o.Quantity,
		Remaining: o.Remaining,
		Timestamp: o.Timestamp,
	}
}

func toTradeView(t engine.Trade) tradeView {
	return tradeView{
		TakerOrderID: t.TakerOrderID,
		MakerOrderID: t.MakerOrderID,
		TakerSide:    t.TakerSide.String(),
		Price:        t.Price,
		Quantity:     t.Quantity,
		Timestamp:    t.Timestamp,
	}
}

func toBookView(v engine.BookView) bookSnapshotView {
	view := bookSnapshotView{}
	if v.BestBid != nil {
		view.Bids = []bookLevelView{{Price: *v.BestBid}}
	}
	if v.BestAsk != nil {
		view.Asks = []bookLevelView{{Price: *v.BestAsk}}
	}
	return view
}

func parseSide(value string) (engine.Side, error) {
	switch value {
	case "buy", "bid", "b":
		return engine.Buy, nil
	case "sell", "ask", "s":
		return engine.Sell, nil
	default:
		return 0, fmt.Errorf("unknown side %q", value)
	}
}

func parseOrderType(value string) (engine.OrderType, error) {
	switch value {
	case "limit", "lmt":
		return engine.Limit, nil
	case "market", "mkt":
		return engine.Market, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", value)
	}
}
