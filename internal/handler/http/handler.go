package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla_ws "github.com/gorilla/websocket"
	"github.com/papertrade/papertrade/internal/alerts"
	"github.com/papertrade/papertrade/internal/handler/middleware"
	"github.com/papertrade/papertrade/internal/marketdata"
	"github.com/papertrade/papertrade/internal/service"
	"github.com/papertrade/papertrade/internal/websocket"
	"github.com/papertrade/papertrade/lib/errs"
	"github.com/shopspring/decimal"
)

const (
	userCtx = "userID"
)

type Handler struct {
	usersService     service.UsersService
	tokenService     service.TokenService
	portfolioService service.PortfolioService
	ledgerService    service.LedgerService
	alertsService    *alerts.Service
	gateway          marketdata.Gateway
	wsManager        *websocket.Manager
	log              *slog.Logger
	jwtSecret        string
	refreshTTL       time.Duration
	upgrader         gorilla_ws.Upgrader
}

func NewHandler(
	usersService service.UsersService,
	tokenService service.TokenService,
	portfolioService service.PortfolioService,
	ledgerService service.LedgerService,
	alertsService *alerts.Service,
	gateway marketdata.Gateway,
	wsManager *websocket.Manager,
	log *slog.Logger,
	jwtSecret string,
	refreshTTL time.Duration,
) *Handler {
	return &Handler{
		usersService:     usersService,
		tokenService:     tokenService,
		portfolioService: portfolioService,
		ledgerService:    ledgerService,
		alertsService:    alertsService,
		gateway:          gateway,
		wsManager:        wsManager,
		log:              log,
		jwtSecret:        jwtSecret,
		refreshTTL:       refreshTTL,
		upgrader: gorilla_ws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/health", h.health)

		auth := api.Group("/auth")
		{
			auth.POST("/register", h.register)
			auth.POST("/login", h.login)
			auth.POST("/refresh", h.refresh)
			auth.POST("/logout", h.logout)
		}

		authed := api.Group("", middleware.AuthMiddleware(h.jwtSecret, h.log))
		{
			transactions := authed.Group("/transactions")
			{
				transactions.POST("", h.createTransaction)
				transactions.GET("", h.listTransactions)
				transactions.PATCH("/:id", h.editTransaction)
				transactions.DELETE("/:id", h.deleteTransaction)
			}

			portfolio := authed.Group("/portfolio")
			{
				portfolio.GET("", h.portfolioView)
				portfolio.GET("/value", h.portfolioValue)
				portfolio.GET("/breakdown", h.portfolioBreakdown)
				portfolio.POST("/profit-loss", h.portfolioProfitLoss)
				portfolio.GET("/holdings/:coin", h.holdingCount)
				portfolio.GET("/cash", h.cashBalance)
				portfolio.POST("/cash", h.adjustCash)
			}

			market := authed.Group("/market")
			{
				market.GET("/price/:coin", h.marketPrice)
				market.GET("/trends/:coin", h.marketTrends)
				market.GET("/top", h.marketTop)
				market.GET("/compare", h.marketCompare)
				market.POST("/alerts", h.setPriceAlert)
			}

			authed.GET("/ws", h.wsConnect)
		}
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type authRequest struct {
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.usersService.Register(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
			return
		}
		if errors.Is(err, errs.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("failed to register user", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "user created successfully", "userID": user.ID})
}

func (h *Handler) login(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.usersService.Login(c.Request.Context(), req.Name, req.Password)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.log.Error("failed to login user", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	accessToken, refreshToken, err := h.tokenService.GenerateTokens(user.ID, user.Name)
	if err != nil {
		h.log.Error("failed to generate tokens", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.SetCookie("refreshToken", refreshToken, int(h.refreshTTL/time.Second), "/", "", false, true)

	c.JSON(http.StatusOK, gin.H{"accessToken": accessToken})
}

func (h *Handler) refresh(c *gin.Context) {
	refreshToken, err := c.Cookie("refreshToken")
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token missing"})
		return
	}

	newAccessToken, newRefreshToken, err := h.tokenService.RefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		h.log.Error("failed to refresh tokens", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.SetCookie("refreshToken", newRefreshToken, int(h.refreshTTL/time.Second), "/", "", false, true)

	c.JSON(http.StatusOK, gin.H{"accessToken": newAccessToken})
}

func (h *Handler) logout(c *gin.Context) {
	refreshToken, err := c.Cookie("refreshToken")
	if err == nil && refreshToken != "" {
		if err := h.tokenService.Logout(refreshToken); err != nil {
			h.log.Warn("failed to drop session on logout", slog.Any("error", err))
		}
	}

	c.SetCookie("refreshToken", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

type createTransactionRequest struct {
	CoinID      string `json:"coinID" binding:"required"`
	Type        string `json:"type" binding:"required"`
	Quantity    string `json:"quantity" binding:"required"`
	Price       string `json:"price" binding:"required"`
	TargetPrice string `json:"targetPrice"`
	Recurring   bool   `json:"recurring"`
}

func (h *Handler) createTransaction(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity format"})
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price format"})
		return
	}

	var targetPrice decimal.NullDecimal
	if req.TargetPrice != "" {
		target, err := decimal.NewFromString(req.TargetPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target price format"})
			return
		}
		targetPrice = decimal.NullDecimal{Decimal: target, Valid: true}
	}

	entry, err := h.ledgerService.Create(c.Request.Context(), userID, req.CoinID, req.Type, quantity, price, targetPrice, req.Recurring)
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (h *Handler) listTransactions(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	transactions, err := h.ledgerService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("failed to list transactions", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// editTransaction accepts only the closed set of editable fields; any other
// key in the body is rejected outright.
func (h *Handler) editTransaction(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var updates service.EntryUpdates
	for key, value := range raw {
		switch key {
		case "targetPrice":
			var target *string
			if err := json.Unmarshal(value, &target); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target price"})
				return
			}
			nullTarget := decimal.NullDecimal{}
			if target != nil {
				parsed, err := decimal.NewFromString(*target)
				if err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target price format"})
					return
				}
				nullTarget = decimal.NullDecimal{Decimal: parsed, Valid: true}
			}
			updates.TargetPrice = &nullTarget
		case "recurring":
			var recurring bool
			if err := json.Unmarshal(value, &recurring); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recurring flag"})
				return
			}
			updates.Recurring = &recurring
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "field is not editable: " + key})
			return
		}
	}

	entry, err := h.ledgerService.Edit(c.Request.Context(), uint(id), updates)
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (h *Handler) deleteTransaction(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction id"})
		return
	}

	if err := h.ledgerService.Delete(c.Request.Context(), uint(id)); err != nil {
		h.respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "transaction cancelled"})
}

func (h *Handler) portfolioView(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	view, err := h.portfolioService.View(c.Request.Context(), userID)
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) portfolioValue(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	total, err := h.portfolioService.TotalValue(c.Request.Context(), userID)
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"totalValue": total})
}

func (h *Handler) portfolioBreakdown(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	breakdown, err := h.portfolioService.PercentageBreakdown(c.Request.Context(), userID)
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"breakdown": breakdown})
}

type profitLossRequest struct {
	PurchasePrices map[string]string `json:"purchasePrices"`
}

func (h *Handler) portfolioProfitLoss(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req profitLossRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	purchasePrices := make(map[string]decimal.Decimal, len(req.PurchasePrices))
	for coinID, value := range req.PurchasePrices {
		price, err := decimal.NewFromString(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase price for " + coinID})
			return
		}
		purchasePrices[coinID] = price
	}

	profitLoss, err := h.portfolioService.ProfitLoss(c.Request.Context(), userID, purchasePrices)
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profitLoss": profitLoss})
}

func (h *Handler) holdingCount(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	count, err := h.portfolioService.CoinCount(c.Request.Context(), userID, c.Param("coin"))
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"coinID": c.Param("coin"), "quantity": count})
}

func (h *Handler) cashBalance(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	balance, err := h.portfolioService.CashBalance(c.Request.Context(), userID)
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cashBalance": balance})
}

type adjustCashRequest struct {
	Delta string `json:"delta" binding:"required"`
}

func (h *Handler) adjustCash(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req adjustCashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid delta format"})
		return
	}

	balance, err := h.portfolioService.AdjustCash(c.Request.Context(), userID, delta)
	if err != nil {
		h.respondLedgerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cashBalance": balance})
}

func (h *Handler) marketPrice(c *gin.Context) {
	coinID := c.Param("coin")

	price, ok := h.gateway.Price(c.Request.Context(), coinID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "price unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coinID": coinID, "price": price})
}

func (h *Handler) marketTrends(c *gin.Context) {
	coinID := c.Param("coin")
	rng := c.DefaultQuery("range", "7d")

	series, ok := h.gateway.Trends(c.Request.Context(), coinID, rng)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "trend data unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"coinID": coinID, "range": rng, "prices": series})
}

func (h *Handler) marketTop(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": h.gateway.TopPerformers(c.Request.Context(), limit)})
}

func (h *Handler) marketCompare(c *gin.Context) {
	coinA := c.Query("a")
	coinB := c.Query("b")
	if coinA == "" || coinB == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "both 'a' and 'b' coin ids are required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"comparison": h.gateway.Compare(c.Request.Context(), coinA, coinB)})
}

type priceAlertRequest struct {
	CoinID      string `json:"coinID" binding:"required"`
	TargetPrice string `json:"targetPrice" binding:"required"`
}

func (h *Handler) setPriceAlert(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req priceAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	targetPrice, err := decimal.NewFromString(req.TargetPrice)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target price format"})
		return
	}

	if !h.alertsService.Set(c.Request.Context(), userID, req.CoinID, targetPrice) {
		c.JSON(http.StatusBadRequest, gin.H{"accepted": false, "error": "could not validate coin"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"accepted": true})
}

func (h *Handler) wsConnect(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("failed to upgrade connection", slog.Any("error", err))
		return
	}

	client := &websocket.Client{
		Manager: h.wsManager,
		Conn:    conn,
		UserID:  userID,
		Send:    make(chan []byte, 256),
	}

	client.Manager.Register(client)

	go client.Writer()
	go client.Reader()
}

func (h *Handler) userID(c *gin.Context) (uuid.UUID, bool) {
	userIDRaw, ok := c.Get(userCtx)
	if !ok {
		h.log.Error("handler: userID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDRaw.(string))
	if err != nil {
		h.log.Error("handler: failed to parse userID from context", "userID", userIDRaw)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id in token"})
		return uuid.Nil, false
	}

	return userID, true
}

func (h *Handler) respondLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errs.ErrInsufficientFunds):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient funds"})
	case errors.Is(err, errs.ErrInsufficientHoldings):
		c.JSON(http.StatusConflict, gin.H{"error": "insufficient holdings"})
	case errors.Is(err, errs.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	default:
		h.log.Error("request failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
