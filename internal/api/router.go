package api

import (
	"github.com/eventpool/backend/internal/api/handler"
	"github.com/eventpool/backend/internal/api/middleware"
	"github.com/eventpool/backend/internal/logger"
	"github.com/eventpool/backend/internal/repository"
	"github.com/eventpool/backend/internal/service"
	"github.com/gin-gonic/gin"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Ingest     *service.IngestService
	Events     *service.EventService
	Dedupe     *service.DedupeService
	Jobs       *service.AIJobService
	SourceRepo *repository.SourceRepository
	RunRepo    *repository.RunRepository
	DupRepo    *repository.DuplicateRepository
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svcs Services, cors middleware.CORSConfig, mode string) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(logger.NewDefault()))
	r.Use(middleware.CORS(cors))

	healthHandler := handler.NewHealthHandler()
	ingestHandler := handler.NewIngestHandler(svcs.Ingest)
	eventHandler := handler.NewEventHandler(svcs.Events)
	sourceHandler := handler.NewSourceHandler(svcs.SourceRepo)
	runHandler := handler.NewRunHandler(svcs.RunRepo)
	dupHandler := handler.NewDuplicateHandler(svcs.Dedupe, svcs.DupRepo)
	jobHandler := handler.NewJobHandler(svcs.Jobs)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Ingestion
		v1.POST("/ingest", ingestHandler.Ingest)

		// Sources
		v1.POST("/sources", sourceHandler.CreateSource)
		v1.GET("/sources", sourceHandler.ListSources)
		v1.GET("/sources/:id", sourceHandler.GetSource)

		// Events and curation
		v1.GET("/events", eventHandler.ListEvents)
		v1.GET("/events/:id", eventHandler.GetEvent)
		v1.POST("/events/:id/approve", eventHandler.ApproveEvent)
		v1.POST("/events/:id/reject", eventHandler.RejectEvent)
		v1.POST("/events/:id/lock", eventHandler.LockField)

		// Ingest runs
		v1.GET("/runs", runHandler.ListRuns)
		v1.GET("/runs/:id", runHandler.GetRun)

		// Duplicate review
		v1.GET("/duplicates", dupHandler.ListDuplicates)
		v1.POST("/duplicates/:id/resolve", dupHandler.ResolveDuplicate)

		// AI enrichment jobs
		v1.POST("/ai/jobs", jobHandler.StartJob)
		v1.GET("/ai/jobs", jobHandler.ListJobs)
		v1.GET("/ai/jobs/:id", jobHandler.GetJob)
		v1.POST("/ai/jobs/:id/cancel", jobHandler.CancelJob)

		// Stats
		v1.GET("/stats", eventHandler.GetStats)
	}

	return r
}
