package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rfidattend/internal/attendance"
	"rfidattend/internal/auth"
	"rfidattend/internal/cloudinary"
	"rfidattend/internal/config"
	"rfidattend/internal/engine"
	"rfidattend/internal/httpmiddleware"
	"rfidattend/internal/queue"
	"rfidattend/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "")
	}

	loc := cfg.Location()
	repo := attendance.NewRepository(db.Client)
	settings := attendance.NewSettingsCache(repo, redisClient.Client, cfg.SettingsTTL)
	svc := attendance.NewService(repo, settings, q, loc)

	// Cloudinary client (nil when not configured)
	var cdn *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdn = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured; student photo uploads disabled")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	// Registration is unauthenticated, so it gets its own IP-keyed limiter.
	// The station limiter sits behind StationAuth where token claims exist.
	registerLimiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	stationLimiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Healthy(c.Request.Context())
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/devices/register", registerLimiter.GinMiddleware(), func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := repo.UpsertDevice(c.Request.Context(), req.DeviceID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		tokens, err := auth.Issue(req.DeviceID, auth.RoleScanner, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		_ = repo.SaveRefreshToken(c.Request.Context(), req.DeviceID, tokens.RefreshToken, tokens.RefreshExp)

		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.StationAuth(cfg.JWTSigningKey, cfg.JWTIssuer), stationLimiter.GinMiddleware())

	authGroup.POST("/scans", func(c *gin.Context) {
		var req struct {
			RFID       string `json:"rfid_id" binding:"required"`
			SubjectID  int64  `json:"subject_id" binding:"required"`
			ManualTime string `json:"manual_time"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		at := time.Now().In(loc)
		if req.ManualTime != "" {
			parsed, err := parseManualTime(req.ManualTime, at)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "manual_time must be HH:MM or HH:MM:SS"})
				return
			}
			at = parsed
		}

		result, err := svc.Scan(c.Request.Context(), req.RFID, req.SubjectID, at)
		if err != nil {
			var notEnrolled *attendance.NotEnrolledError
			switch {
			case errors.Is(err, attendance.ErrUnknownCard), errors.Is(err, attendance.ErrUnknownSubject):
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			case errors.As(err, &notEnrolled):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, result)
	})

	authGroup.GET("/scans", func(c *gin.Context) {
		subjectID, err := strconv.ParseInt(c.Query("subject_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "subject_id required"})
			return
		}
		limit := 50
		if v := c.Query("limit"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				limit = parsed
			}
		}
		records, err := svc.RecentScans(c.Request.Context(), subjectID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	authGroup.GET("/subjects/active", func(c *gin.Context) {
		subject, err := svc.ActiveSubject(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if subject == nil {
			c.JSON(http.StatusOK, gin.H{"subject": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"subject": subject})
	})

	authGroup.POST("/students/:id/photo", func(c *gin.Context) {
		if cdn == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
			return
		}
		studentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student id"})
			return
		}

		file, _, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
			return
		}

		result, err := cdn.UploadStudentPhoto(data, "student-"+strconv.FormatInt(studentID, 10))
		if err != nil {
			log.Printf("cloudinary upload failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
			return
		}
		if err := repo.SetStudentPhoto(c.Request.Context(), studentID, result.SecureURL); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": result.SecureURL})
	})

	authGroup.GET("/settings", func(c *gin.Context) {
		st, err := svc.CurrentSettings(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	})

	authGroup.PUT("/settings", func(c *gin.Context) {
		var req struct {
			EnableTimeValidation      *bool  `json:"enable_time_validation"`
			EarlyMinutes              *int   `json:"early_attendance_minutes"`
			LateMinutes               *int   `json:"late_attendance_minutes"`
			GraceMinutes              *int   `json:"grace_period_minutes"`
			TimeoutBeforeMinutes      *int   `json:"timeout_before_minutes"`
			ClassStart                string `json:"class_start_time"`
			ClassEnd                  string `json:"class_end_time"`
			EmailNotificationsEnabled *bool  `json:"email_notifications_enabled"`
			SendWarningsAfter         *int   `json:"send_warnings_after"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		// Partial update over the current values.
		st, err := svc.CurrentSettings(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if req.EnableTimeValidation != nil {
			st.EnableTimeValidation = *req.EnableTimeValidation
		}
		if req.EarlyMinutes != nil {
			st.EarlyMinutes = *req.EarlyMinutes
		}
		if req.LateMinutes != nil {
			st.LateMinutes = *req.LateMinutes
		}
		if req.GraceMinutes != nil {
			st.GraceMinutes = *req.GraceMinutes
		}
		if req.TimeoutBeforeMinutes != nil {
			st.TimeoutBeforeMinutes = *req.TimeoutBeforeMinutes
		}
		if req.ClassStart != "" {
			td, err := parseClassTime(req.ClassStart)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "class_start_time must be HH:MM or HH:MM:SS"})
				return
			}
			st.ClassStart = td
		}
		if req.ClassEnd != "" {
			td, err := parseClassTime(req.ClassEnd)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "class_end_time must be HH:MM or HH:MM:SS"})
				return
			}
			st.ClassEnd = td
		}
		if req.EmailNotificationsEnabled != nil {
			st.EmailNotificationsEnabled = *req.EmailNotificationsEnabled
		}
		if req.SendWarningsAfter != nil {
			st.SendWarningsAfter = *req.SendWarningsAfter
		}

		if err := svc.UpdateSettings(c.Request.Context(), st); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, st)
	})

	authGroup.POST("/absences/mark", func(c *gin.Context) {
		var req struct {
			Date string `json:"date"` // YYYY-MM-DD, defaults to today
		}
		_ = c.ShouldBindJSON(&req)

		date := time.Now().In(loc)
		if req.Date != "" {
			parsed, err := time.ParseInLocation("2006-01-02", req.Date, loc)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
				return
			}
			date = parsed
		}

		marked, err := svc.MarkAbsent(c.Request.Context(), date)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "marked": marked})
			return
		}
		c.JSON(http.StatusOK, gin.H{"marked": marked})
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// parseManualTime combines an HH:MM or HH:MM:SS override with today's date
// in the institution timezone.
func parseManualTime(s string, ref time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		if t, err = time.Parse("15:04:05", s); err != nil {
			return time.Time{}, err
		}
	}
	y, m, d := ref.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, ref.Location()), nil
}

func parseClassTime(s string) (*engine.TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		if t, err = time.Parse("15:04:05", s); err != nil {
			return nil, err
		}
	}
	td := engine.TimeOfDayOf(t)
	return &td, nil
}

// CORS middleware for browser requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
