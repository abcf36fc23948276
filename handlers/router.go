package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock-ledger/middleware"
	"stock-ledger/models"
)

// NewRouter builds the gin engine with every route of the API.
func NewRouter(h *Handler, logger *zap.Logger, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(logger), middleware.CORS(corsOrigins))

	router.GET("/healthz", h.Health)

	api := router.Group("/api")

	// Public routes
	public := api.Group("/auth")
	{
		public.POST("/register", h.Register)
		public.POST("/login", h.Login)
		public.POST("/refresh", h.Refresh)
	}

	// Protected routes
	authed := api.Group("/")
	authed.Use(middleware.JWTAuth(h.tokens))
	{
		authed.GET("/stocks", h.ListStocks)
		authed.GET("/stocks/:id", h.GetStock)
		authed.GET("/stocks/symbol/:symbol", h.GetStockBySymbol)
		authed.GET("/stocks/symbol/:symbol/history", h.PriceHistory)
		authed.POST("/stocks/refresh-prices", h.RefreshPrices)
		authed.POST("/stocks/update-prices", h.RefreshPrices)

		authed.POST("/trades", h.Execute)
		authed.POST("/trades/buy", h.Buy)
		authed.POST("/trades/sell", h.Sell)
		authed.GET("/trades/history", h.TradeHistory)

		authed.GET("/portfolio", h.GetPortfolio)
		authed.GET("/portfolio/total-profit", h.TotalProfit)
	}

	admin := authed.Group("/")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/stocks", h.CreateStock)
		admin.PUT("/stocks/:id", h.UpdateStock)
		admin.DELETE("/stocks/:id", h.DeleteStock)

		admin.GET("/users", h.ListUsers)
		admin.DELETE("/users/:id", h.DeleteUser)
	}

	return router
}
