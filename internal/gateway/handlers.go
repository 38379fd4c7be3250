package gateway

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers wraps Service in gin.HandlerFuncs for the command-gateway's HTTP
// surface.
type Handlers struct {
	svc *Service
}

// NewHandlers builds Handlers for svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterRoutes mounts the command surface on router.
func (h *Handlers) RegisterRoutes(router *gin.Engine) {
	orders := router.Group("/orders")
	orders.POST("/limit", h.submitLimitOrder)
	orders.POST("/market", h.submitMarketOrder)
	orders.DELETE("/:symbol/:orderID", h.cancelOrder)

	books := router.Group("/books")
	books.GET("/:symbol", h.topOfBook)
	books.GET("/:symbol/depth", h.depth)
}

func (h *Handlers) submitLimitOrder(c *gin.Context) {
	var req LimitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ClientCommandID == uuid.Nil {
		req.ClientCommandID = uuid.New()
	}

	resp, err := h.svc.SubmitLimitOrder(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) submitMarketOrder(c *gin.Context) {
	var req MarketOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ClientCommandID == uuid.Nil {
		req.ClientCommandID = uuid.New()
	}

	resp, err := h.svc.SubmitMarketOrder(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) cancelOrder(c *gin.Context) {
	symbol := c.Param("symbol")
	orderID, err := strconv.ParseUint(c.Param("orderID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	resp := h.svc.CancelOrder(c.Request.Context(), CancelRequest{Symbol: symbol, OrderID: orderID})
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) topOfBook(c *gin.Context) {
	symbol := c.Param("symbol")
	c.JSON(http.StatusOK, h.svc.TopOfBook(symbol))
}

func (h *Handlers) depth(c *gin.Context) {
	symbol := c.Param("symbol")

	depth := 0
	if raw := c.Query("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid depth"})
			return
		}
		depth = parsed
	}

	c.JSON(http.StatusOK, h.svc.Depth(symbol, depth))
}
