package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/colegio-app/colegio-api/api/swagger"
	"github.com/colegio-app/colegio-api/internal/handler"
	"github.com/colegio-app/colegio-api/internal/middleware"
	"github.com/colegio-app/colegio-api/internal/models"
	"github.com/colegio-app/colegio-api/internal/repository"
	"github.com/colegio-app/colegio-api/internal/service"
	"github.com/colegio-app/colegio-api/pkg/cache"
	"github.com/colegio-app/colegio-api/pkg/config"
	"github.com/colegio-app/colegio-api/pkg/database"
	"github.com/colegio-app/colegio-api/pkg/logger"
	corsmiddleware "github.com/colegio-app/colegio-api/pkg/middleware/cors"
	reqidmiddleware "github.com/colegio-app/colegio-api/pkg/middleware/requestid"
	"github.com/colegio-app/colegio-api/pkg/storage"
)

// @title Colegio API
// @version 1.0.0
// @description School management backend with qualification grading
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, roster cache disabled", zap.Error(err))
		cacheSvc = service.NewCacheService(nil, metricsSvc, cfg.Roster.CacheTTL, logr, false)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close()
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Roster.CacheTTL, logr, cfg.Roster.CacheEnabled)
	}

	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	offeringRepo := repository.NewClassroomSubjectRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	qualificationRepo := repository.NewQualificationRepository(db)

	authSvc := service.NewAuthService(userRepo, teacherRepo, studentRepo, nil, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
		Issuer: cfg.JWT.Issuer,
	})
	teacherSvc := service.NewTeacherService(teacherRepo, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, enrollmentRepo, nil, logr)
	classroomSvc := service.NewClassroomService(classroomRepo, teacherRepo, nil, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, offeringRepo, studentRepo, nil, logr)
	qualificationSvc := service.NewQualificationService(enrollmentRepo, qualificationRepo, cacheSvc, nil, logr)
	rosterSvc := service.NewRosterService(teacherRepo, classroomRepo, offeringRepo, cacheSvc, nil, logr)
	reportSvc := service.NewReportService(studentRepo, enrollmentRepo, logr)

	var exportSvc *service.ExportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.ExportDir)
		if err != nil {
			logr.Fatal("failed to init export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Reports.ExportTTL)
		exportSvc = service.NewExportService(reportSvc, store, signer, service.ExportConfig{
			Workers: cfg.Reports.ExportWorkers,
			FileTTL: cfg.Reports.ExportTTL,
		}, logr)
		exportSvc.Start(context.Background())
		defer exportSvc.Stop()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc, qualificationSvc, rosterSvc)
	studentHandler := handler.NewStudentHandler(studentSvc, reportSvc)
	classroomHandler := handler.NewClassroomHandler(classroomSvc)
	subjectHandler := handler.NewSubjectHandler(subjectSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	var exportHandler *handler.ExportHandler
	if exportSvc != nil {
		exportHandler = handler.NewExportHandler(exportSvc)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	protected.GET("/auth/me", authHandler.Me)

	teachers := protected.Group("/teachers")
	{
		teachers.GET("", middleware.RequirePermission(models.PermViewTeachers), teacherHandler.List)
		teachers.GET("/:teacherId", middleware.RequirePermission(models.PermViewTeachers), teacherHandler.Get)
		teachers.POST("", middleware.RequirePermission(models.PermManageUsers), teacherHandler.Create)
		teachers.PUT("/:teacherId", middleware.RequirePermission(models.PermManageUsers), teacherHandler.Update)
		teachers.DELETE("/:teacherId", middleware.RequirePermission(models.PermManageUsers), teacherHandler.Deactivate)

		grading := middleware.RequireTeacherOrPermission("teacherId", models.PermManageQualifications)
		teachers.GET("/:teacherId/classrooms", grading, teacherHandler.Classrooms)
		teachers.POST("/:teacherId/qualifications", grading, teacherHandler.ManageQualification)
		teachers.DELETE("/:teacherId/qualifications/:qualificationId", grading, teacherHandler.DeleteQualification)
		teachers.GET("/:teacherId/classrooms/:classroomId/students", grading, teacherHandler.ClassroomStudents)
	}

	students := protected.Group("/students")
	{
		students.GET("", middleware.RequirePermission(models.PermViewStudents), studentHandler.List)
		students.GET("/:id", middleware.RequirePermission(models.PermViewStudents), studentHandler.Get)
		students.POST("", middleware.RequirePermission(models.PermManageUsers), studentHandler.Create)
		students.PUT("/:id", middleware.RequirePermission(models.PermManageUsers), studentHandler.Update)
		students.DELETE("/:id", middleware.RequirePermission(models.PermManageUsers), studentHandler.Deactivate)

		self := middleware.RequireStudentOrPermission("id", models.PermViewStudents)
		students.GET("/:id/subjects", self, studentHandler.Subjects)
		students.GET("/:id/subjects/qualifications", self, studentHandler.SubjectQualifications)

		if cfg.Reports.Enabled {
			students.GET("/:id/grade-report", middleware.RequirePermission(models.PermViewStudents), studentHandler.GradeReport)
			students.POST("/:id/grade-report/exports", middleware.RequirePermission(models.PermViewStudents), exportHandler.Create)
		}
	}

	if exportHandler != nil {
		// Downloads carry a signed token instead of a session.
		api.GET("/exports/download", exportHandler.Download)
		protected.GET("/exports/jobs/:jobId", middleware.RequirePermission(models.PermViewStudents), exportHandler.Status)
	}

	classrooms := protected.Group("/classrooms")
	{
		classrooms.GET("", classroomHandler.List)
		classrooms.GET("/:id", classroomHandler.Get)
		classrooms.POST("", middleware.RequirePermission(models.PermManageClassrooms), classroomHandler.Create)
		classrooms.PUT("/:id", middleware.RequirePermission(models.PermManageClassrooms), classroomHandler.Update)
		classrooms.DELETE("/:id", middleware.RequirePermission(models.PermManageClassrooms), classroomHandler.Delete)
	}

	subjects := protected.Group("/subjects")
	{
		subjects.GET("", subjectHandler.List)
		subjects.GET("/:id", subjectHandler.Get)
		subjects.POST("", middleware.RequirePermission(models.PermManageClassrooms), subjectHandler.Create)
		subjects.PUT("/:id", middleware.RequirePermission(models.PermManageClassrooms), subjectHandler.Update)
		subjects.DELETE("/:id", middleware.RequirePermission(models.PermManageClassrooms), subjectHandler.Delete)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", middleware.RequirePermission(models.PermViewStudents), enrollmentHandler.List)
		enrollments.GET("/:id", middleware.RequirePermission(models.PermViewStudents), enrollmentHandler.Get)
		enrollments.POST("", middleware.RequirePermission(models.PermManageClassrooms), enrollmentHandler.Create)
		enrollments.PUT("/:id", middleware.RequirePermission(models.PermManageClassrooms), enrollmentHandler.Update)
	}

	offerings := protected.Group("/offerings")
	{
		offerings.POST("", middleware.RequirePermission(models.PermManageClassrooms), enrollmentHandler.CreateOffering)
		offerings.PUT("/:id", middleware.RequirePermission(models.PermManageClassrooms), enrollmentHandler.UpdateOffering)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
