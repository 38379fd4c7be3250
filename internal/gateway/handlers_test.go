package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandlers(newTestService()).RegisterRoutes(router)
	return router
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_SubmitLimitOrder_RestsAndReturnsOrderID(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(router, http.MethodPost, "/orders/limit", LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Price: d("100.00"), Quantity: d("1"),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp LimitOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Resting)
	assert.NotZero(t, resp.OrderID)
}

func TestHandlers_SubmitLimitOrder_MalformedBodyReturnsBadRequest(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/orders/limit", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_SubmitMarketOrder_EmptyBookReturnsUnfilled(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(router, http.MethodPost, "/orders/market", MarketOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Quantity: d("1"),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp MarketOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.FullyFilled)
}

func TestHandlers_CancelOrder_UnknownIDReturnsNotCancelled(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(router, http.MethodDelete, "/orders/BTC-USD/42", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CancelResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Cancelled)
}

func TestHandlers_CancelOrder_InvalidIDReturnsBadRequest(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(router, http.MethodDelete, "/orders/BTC-USD/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_TopOfBook_ReportsSentinelsOnEmptyBook(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(router, http.MethodGet, "/books/BTC-USD", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TopOfBookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BTC-USD", resp.Symbol)
}

func TestHandlers_Depth_InvalidQueryParamReturnsBadRequest(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(router, http.MethodGet, "/books/BTC-USD/depth?depth=notanumber", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_Depth_ReturnsRestingLevels(t *testing.T) {
	router := newTestRouter()

	rec := doRequest(router, http.MethodPost, "/orders/limit", LimitOrderRequest{
		Symbol: "BTC-USD", Side: SideBuy, Price: d("100.00"), Quantity: d("1"),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(router, http.MethodGet, "/books/BTC-USD/depth", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DepthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Bids, 1)
	assert.True(t, resp.Bids[0].Price.Equal(d("100")))
	assert.Empty(t, resp.Asks)
}
