package api

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func init() {
	// Report validation failures with JSON field names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

// NewRouter builds the gin engine serving every route
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(RequestLogger(logger), Recovery(logger))

	r.GET("/healthz", h.Health)

	pm := r.Group("/partial-matching")
	{
		pm.POST("/create-engine", h.CreateEngine)
		pm.POST("/add-order", h.AddOrder)
		pm.POST("/cancel-order", h.CancelOrder)
		pm.POST("/process-all", h.ProcessAll)
		pm.POST("/queue-status", h.QueueStatus)
		pm.POST("/clear-queue", h.ClearQueue)
		pm.POST("/orders", h.Orders)
		pm.POST("/set-nav", h.SetNAV)
		pm.GET("/engines", h.ListEngines)
		pm.DELETE("/engines/:engine_id", h.DeleteEngine)
		pm.POST("/cleanup", h.Cleanup)
	}

	ob := r.Group("/order-book")
	{
		ob.POST("", h.OrderBook)
		ob.POST("/funds", h.FundSummaries)
		ob.POST("/completed", h.CompletedOrders)
		ob.POST("/negotiated", h.NegotiatedOrders)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: &ErrorResponse{Code: string(ErrorCodeNotFound), Message: "route not found"}})
	})
	return r
}
