package router

import (
	"mip-lab/internal/handler"
	"mip-lab/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(svc *service.ServiceContext) *gin.Engine {
	r := gin.Default()

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	instanceHandler := handler.NewInstanceHandler(svc.Store, svc.Config.Experiment.Selection)
	jobHandler := handler.NewJobHandler(svc.Store)
	experimentHandler := handler.NewExperimentHandler(svc.BatchRunner, svc.Store)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		instances := api.Group("/instances")
		{
			instances.GET("", instanceHandler.ListInstances)
			instances.GET("/:id", instanceHandler.GetInstance)
			instances.POST("/select", instanceHandler.SelectInstances)
		}

		jobs := api.Group("/jobs")
		{
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.GET("/:id/metrics", jobHandler.GetJobMetrics)
			jobs.GET("/:id/metrics/export", jobHandler.ExportJobMetrics)
		}

		experiments := api.Group("/experiments")
		{
			experiments.GET("/stats", experimentHandler.GetExperimentStats)
			experiments.GET("/groups", experimentHandler.ListGroups)
			experiments.POST("/run", experimentHandler.RunExperiment)
		}
	}

	return r
}
