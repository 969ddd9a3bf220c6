package app

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"

	"github.com/friden-zhang/raspi-todo/internal/cache"
	"github.com/friden-zhang/raspi-todo/internal/config"
	"github.com/friden-zhang/raspi-todo/internal/handlers"
	"github.com/friden-zhang/raspi-todo/internal/hub"
	"github.com/friden-zhang/raspi-todo/internal/realtime"
	"github.com/friden-zhang/raspi-todo/internal/repo"
	"github.com/friden-zhang/raspi-todo/internal/service"
)

// Deps is everything the router needs. Cache may be nil.
type Deps struct {
	Config     config.Config
	Logger     *log.Logger
	DB         handlers.Pinger
	Todos      repo.TodoRepo
	Categories repo.CategoryRepo
	Cache      *cache.ListCache
	Hub        *hub.Hub
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}))

	Setup(r, d)
	return r
}

// Setup registers all routes on the given engine.
func Setup(r *gin.Engine, d Deps) {
	cfg := d.Config
	health := handlers.NewHealthHandler(d.DB)

	r.GET("/health", health.Health)
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
	))
	r.GET("/ws/updates", realtime.NewGateway(d.Hub, cfg.Hub.WriteTimeout.Duration(), d.Logger).ServeWS)

	api := r.Group("/api")
	api.GET("/health", health.Health)

	todoSvc := service.NewTodoService(d.Todos, d.Categories, d.Cache, d.Hub, d.Logger)
	registerTodoRoutes(api, handlers.NewTodoHandler(todoSvc))

	categorySvc := service.NewCategoryService(d.Categories, d.Todos, d.Cache, d.Hub, d.Logger)
	registerCategoryRoutes(api, handlers.NewCategoryHandler(categorySvc))

	if dir := cfg.App.StaticDir; dir != "" {
		if _, err := os.Stat(filepath.Join(dir, "index.html")); err == nil {
			r.NoRoute(spaHandler(dir))
			d.Logger.Info("serving static files", "dir", dir)
			return
		}
		d.Logger.Warn("STATIC_DIR has no index.html, static serving disabled", "dir", dir)
	}
	r.GET("/", rootHandler(cfg))
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Raspi Todo API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
			"api":     "/api",
			"ws":      "/ws/updates",
		})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

// spaHandler serves files under dir and falls back to index.html so client-side
// routes resolve. API paths that matched nothing stay JSON 404s.
func spaHandler(dir string) gin.HandlerFunc {
	root, _ := filepath.Abs(dir)
	index := filepath.Join(root, "index.html")
	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/ws/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		file := filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+p)))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			c.File(file)
			return
		}
		c.File(index)
	}
}

func registerTodoRoutes(api *gin.RouterGroup, h *handlers.TodoHandler) {
	api.GET("/todos", h.List)
	api.POST("/todos", h.Create)
	api.POST("/todos/reorder", h.Reorder)
	api.GET("/todos/:id", h.GetByID)
	api.PUT("/todos/:id", h.Update)
	api.PATCH("/todos/:id/status", h.UpdateStatus)
	api.DELETE("/todos/:id", h.Delete)
}

func registerCategoryRoutes(api *gin.RouterGroup, h *handlers.CategoryHandler) {
	api.GET("/categories", h.List)
	api.POST("/categories", h.Create)
	api.GET("/categories/:id", h.GetByID)
	api.PUT("/categories/:id", h.Update)
	api.DELETE("/categories/:id", h.Delete)
}
