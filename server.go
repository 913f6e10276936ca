package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/domeotech/doors_backend/config"
	"bitbucket.org/domeotech/doors_backend/middlewares"
	"bitbucket.org/domeotech/doors_backend/models"
	"bitbucket.org/domeotech/doors_backend/models/reports"
	"bitbucket.org/domeotech/doors_backend/utils"
	"bitbucket.org/domeotech/doors_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("doors-backend")

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

// statusForError maps the workflow error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	switch utils.ErrorCode(err) {
	case utils.ErrCodeNotFound:
		return http.StatusNotFound
	case utils.ErrCodeValidation:
		return http.StatusBadRequest
	case utils.ErrCodeBlocked:
		return http.StatusUnprocessableEntity
	case utils.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{
		"error": err.Error(),
		"code":  utils.ErrorCode(err),
	})
}

func signInHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.SignInInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		payload, err := models.SignIn(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": payload})
	}
}

func createUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewUser
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		user, err := models.CreateUser(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": user})
	}
}

func createClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		client, err := models.CreateClient(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": client})
	}
}

func updateClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewClient
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		client, err := models.UpdateClient(c.Request.Context(), c.Param("id"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": client})
	}
}

func getClientHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		client, err := models.GetClient(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": client})
	}
}

func listClientsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		clients, err := models.ListClients(c.Request.Context(), c.Query("name"), c.Query("phone"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": clients})
	}
}

func createOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewOrder
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		// Duplicate guard: the storefront retries on timeouts, so an
		// identical cart from the same client inside the window is
		// almost certainly the same order submitted twice.
		if dup, err := models.FindDuplicateOrder(c.Request.Context(), input.ClientId, input.Items, 30*time.Minute); err == nil && dup != nil {
			c.JSON(http.StatusOK, gin.H{"data": dup, "duplicate": true})
			return
		}

		order, err := models.CreateOrder(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": order})
	}
}

func getOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := models.GetOrder(c.Request.Context(), c.Param("id"), "Client")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := models.ListOrders(c.Request.Context(), c.Query("status"), c.Query("client_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": orders})
	}
}

func updateOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.UpdateOrderInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		order, err := models.UpdateOrderDetails(c.Request.Context(), c.Param("id"), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

func changeStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "workflow.ChangeStatus")
		defer span.End()

		var input workflow.ChangeStatusInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		if id := c.Param("id"); id != "" {
			input.DocumentId = id
		}
		ref, err := workflow.ChangeStatus(ctx, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": ref})
	}
}

func createQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewQuote
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		quote, err := models.CreateQuote(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": quote})
	}
}

func getQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		quote, err := models.GetQuote(c.Request.Context(), c.Param("id"), "Client")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": quote})
	}
}

func listQuotesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		quotes, err := models.ListQuotes(c.Request.Context(), c.Query("status"), c.Query("client_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": quotes})
	}
}

func deleteQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := models.DeleteQuote(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func convertQuoteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := workflow.ConvertQuoteToOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": order})
	}
}

func createInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInvoice
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		invoice, err := models.CreateInvoice(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": invoice})
	}
}

func getInvoiceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invoice, err := models.GetInvoice(c.Request.Context(), c.Param("id"), "Client")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": invoice})
	}
}

func listInvoicesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		invoices, err := models.ListInvoices(c.Request.Context(), c.Query("status"), c.Query("client_id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": invoices})
	}
}

func createSupplierOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input workflow.CreateDependentDocumentInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		so, created, err := workflow.CreateDependentDocument(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"data": so, "created": created})
	}
}

func getSupplierOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		so, err := models.GetSupplierOrder(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": so})
	}
}

func listSupplierOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sos, err := models.ListSupplierOrders(c.Request.Context(), c.Query("status"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sos})
	}
}

func exportSupplierOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		buf, filename, err := reports.BuildSupplierOrderExcel(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Data(http.StatusOK,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			buf.Bytes())
	}
}

func resolveDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ref, err := models.ResolveDocument(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": ref})
	}
}

func relatedDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := workflow.GetRelatedDocuments(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

func documentChainHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		chain, err := workflow.GetDocumentChain(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": chain})
	}
}

func documentHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := models.ListHistory(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": history})
	}
}

type auditLinkRequest struct {
	KindA string `json:"kind_a" binding:"required"`
	IdA   string `json:"id_a" binding:"required"`
	KindB string `json:"kind_b" binding:"required"`
	IdB   string `json:"id_b" binding:"required"`
}

func (r *auditLinkRequest) kinds() (models.DocumentKind, models.DocumentKind, error) {
	kindA, err := models.ParseDocumentKind(r.KindA)
	if err != nil {
		return "", "", utils.NewValidationError("kind_a", "invalid document kind")
	}
	kindB, err := models.ParseDocumentKind(r.KindB)
	if err != nil {
		return "", "", utils.NewValidationError("kind_b", "invalid document kind")
	}
	return kindA, kindB, nil
}

func auditLinkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auditLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		kindA, kindB, err := req.kinds()
		if err != nil {
			respondError(c, err)
			return
		}
		result, err := workflow.AuditLinks(c.Request.Context(), kindA, req.IdA, kindB, req.IdB)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result})
	}
}

func repairLinkHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req auditLinkRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		kindA, kindB, err := req.kinds()
		if err != nil {
			respondError(c, err)
			return
		}
		if err := workflow.RepairLink(c.Request.Context(), kindA, req.IdA, kindB, req.IdB); err != nil {
			respondError(c, err)
			return
		}
		dryRun := config.LinkRepairDryRun()
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"repaired": !dryRun, "dry_run": dryRun}})
	}
}

func graphAuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "workflow.AuditAllLinks")
		defer span.End()

		report, err := workflow.AuditAllLinks(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": report})
	}
}

func listNotificationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		unreadOnly := strings.EqualFold(c.Query("unread"), "true")
		notifications, err := models.ListNotifications(c.Request.Context(), userId, unreadOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": notifications})
	}
}

func markNotificationReadHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		if err := models.MarkNotificationRead(c.Request.Context(), userId, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Shutdown coordination.
	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until the DB is ready, we return 503 for app endpoints.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Header("x-correlation-id", cid)
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow Cloud Run startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate critical endpoints on dependency readiness. Redis is a
		// best-effort optimization; the DB is not.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS:
	// - In production, require explicit allowlist via CORS_ALLOWED_ORIGINS (comma-separated).
	// - In non-production, allow all (developer convenience).
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			// Safer default: deny all if not configured in production.
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true

	r.Use(cors.New(corsConfig))

	// Optional rate limiting (recommended for production).
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/auth/sign-in", signInHandler())

	api := r.Group("/api", middlewares.RequireAuth())
	{
		api.POST("/clients", createClientHandler())
		api.GET("/clients", listClientsHandler())
		api.GET("/clients/:id", getClientHandler())
		api.PUT("/clients/:id", updateClientHandler())

		api.POST("/orders", createOrderHandler())
		api.GET("/orders", listOrdersHandler())
		api.GET("/orders/:id", getOrderHandler())
		api.PATCH("/orders/:id", updateOrderHandler())
		api.POST("/orders/:id/status", changeStatusHandler())
		api.POST("/orders/:id/project-file", projectFileUploadHandler())

		api.POST("/quotes", createQuoteHandler())
		api.GET("/quotes", listQuotesHandler())
		api.GET("/quotes/:id", getQuoteHandler())
		api.DELETE("/quotes/:id", deleteQuoteHandler())
		api.POST("/quotes/:id/convert", convertQuoteHandler())
		api.POST("/quotes/:id/status", changeStatusHandler())

		api.POST("/invoices", createInvoiceHandler())
		api.GET("/invoices", listInvoicesHandler())
		api.GET("/invoices/:id", getInvoiceHandler())
		api.POST("/invoices/:id/status", changeStatusHandler())

		api.POST("/supplier-orders", createSupplierOrderHandler())
		api.GET("/supplier-orders", listSupplierOrdersHandler())
		api.GET("/supplier-orders/:id", getSupplierOrderHandler())
		api.POST("/supplier-orders/:id/status", changeStatusHandler())
		api.GET("/supplier-orders/:id/export.xlsx", exportSupplierOrderHandler())

		api.GET("/documents/:id", resolveDocumentHandler())
		api.GET("/documents/:id/related", relatedDocumentsHandler())
		api.GET("/documents/:id/chain", documentChainHandler())
		api.GET("/documents/:id/history", documentHistoryHandler())

		api.GET("/notifications", listNotificationsHandler())
		api.POST("/notifications/:id/read", markNotificationReadHandler())

		api.POST("/uploads/sign", signUploadHandler())
		api.POST("/uploads/complete", completeUploadHandler())
		api.GET("/uploads/object", uploadObjectHandler())
	}

	// Ops tooling (admin only): user provisioning plus link integrity audit and repair.
	ops := r.Group("/internal/ops", middlewares.RequireAuth(), middlewares.RequireAdmin())
	{
		ops.POST("/users", createUserHandler())
		ops.POST("/audit-link", auditLinkHandler())
		ops.POST("/repair-link", repairLinkHandler())
		ops.POST("/audit-links", graphAuditHandler())
	}

	r.NoRoute(customNotFoundHandler)

	// Start listening immediately (Cloud Run startup probe is TCP based).
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Now DB is ready; run migrations.
	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// IMPORTANT: AutoMigrate can run DDL that blocks tables and causes 504/502 timeouts.
	// Allow disabling migrations on startup (run them as a separate job instead).
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Drain HTTP requests.
	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only log when there are errors
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	// Get the IP address or user identifier from the request.
	key := c.ClientIP() // Assuming IP-based rate limiting

	// Check if the key exists in Redis.
	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the key doesn't exist, create it and set expiry.
	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	// If the key exists, get the current count.
	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	// If the count exceeds the limit, return an error response.
	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
