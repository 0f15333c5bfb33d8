package router

import (
	"time"

	"comandapos/internal/config"
	"comandapos/internal/handler"
	"comandapos/internal/middleware"
	"comandapos/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the already wired services and infrastructure the routes use.
// Redis and SMTP may be nil.
type Deps struct {
	DB      *gorm.DB
	Redis   redis.Cmdable
	SMTP    handler.SMTPStatus
	Caja    service.CajaService
	Orders  service.OrderService
	Catalog service.CatalogService
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← LedgerStore ← DB/Redis
func New(cfg *config.Config, d Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.ErrorHandler())
	if cfg.RateLimit > 0 {
		r.Use(middleware.RateLimiter(cfg.RateLimit, time.Minute))
	}

	cajaH := handler.NewCajaHandler(d.Caja, cfg.BusinessName)
	comandasH := handler.NewComandasHandler(d.Orders)
	ventasH := handler.NewVentasHandler(d.Orders)
	productosH := handler.NewProductosHandler(d.Catalog)

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis, d.SMTP))

	// Protected routes: the collaborator comes from the token.
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.GET("/productos", productosH.Listar)

		caja := v1.Group("/caja")
		{
			caja.POST("/abrir", cajaH.Abrir)
			caja.POST("/:id/fechar", cajaH.Fechar)
			caja.GET("/activa", cajaH.GetAtiva)
			caja.GET("/resumo", cajaH.Resumo)
			caja.GET("/relatorio.pdf", cajaH.Relatorio)
			caja.POST("/movimento", cajaH.RegistrarMovimento)
			caja.GET("/historico", cajaH.Historico)
		}

		comandas := v1.Group("/comandas")
		{
			comandas.POST("", comandasH.Criar)
			comandas.GET("", comandasH.Listar)
			comandas.GET("/:id", comandasH.Obter)
			comandas.POST("/:id/itens", comandasH.AdicionarItem)
			comandas.POST("/:id/itens/:produto_id/incrementar", comandasH.IncrementarItem)
			comandas.POST("/:id/itens/:produto_id/decrementar", comandasH.DecrementarItem)
			comandas.DELETE("/:id/itens/:produto_id", comandasH.RemoverItem)
			comandas.POST("/:id/finalizar", comandasH.Finalizar)
		}

		v1.POST("/vendas/rapida", ventasH.VendaRapida)
	}

	// Swagger UI, only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
