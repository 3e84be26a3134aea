package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/reid/internal/api/handlers"
	"github.com/your-org/reid/internal/api/ws"
)

// VisitStore is everything the API reads from and writes to the visit
// database.
type VisitStore interface {
	handlers.StatsStore
	handlers.VisitorStore
}

type RouterConfig struct {
	APIKey      string
	CORSOrigins []string // empty allows all origins
	Visits      VisitStore
	Checks      map[string]handlers.Pinger
	Hub         *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	if len(cfg.CORSOrigins) > 0 {
		cc := cors.DefaultConfig()
		cc.AllowOrigins = cfg.CORSOrigins
		cc.AddAllowHeaders(apiKeyHeader)
		r.Use(cors.New(cc))
	} else {
		r.Use(cors.Default())
	}

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	v1.Use(APIKeyMiddleware(cfg.APIKey))

	if cfg.Hub != nil {
		v1.GET("/ws", cfg.Hub.HandleWS)
	}

	statsH := handlers.NewStatsHandler(cfg.Visits)
	v1.GET("/stats", statsH.Stats)
	v1.POST("/reset-daily", statsH.ResetDaily)

	visitorH := handlers.NewVisitorHandler(cfg.Visits)
	v1.GET("/visitors", visitorH.List)
	v1.GET("/visitors/:gid/visits", visitorH.Visits)

	return r
}
