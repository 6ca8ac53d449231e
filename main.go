package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"kakeibo/db"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

var (
	dbPool  *pgxpool.Pool
	queries *db.Queries
	appEnv  string
)

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func isProduction() bool {
	return appEnv == "production"
}

// requestIDMiddleware tags every request with a UUID, echoed in the
// X-Request-ID response header and used as the log prefix.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString("request_id")
}

// @Summary Health check
// @Description Report database connectivity and schema state
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{} "Healthy"
// @Failure 503 {object} map[string]interface{} "Database unreachable or schema incomplete"
// @Router /api/health [get]
func getHealth(c *gin.Context) {
	report := queries.CheckHealth(c.Request.Context())
	status := http.StatusOK
	if !report.Connected || len(report.MissingTables) > 0 {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"success": status == http.StatusOK, "data": report})
}

// registerRoutes wires every API route onto the engine. Tests share this
// with main so they exercise the real routing table.
func registerRoutes(r *gin.Engine) {
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":     "許可されていないメソッドです",
			"errorType": errTypeMethodNotAllowed,
		})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "リソースが見つかりません",
			"errorType": errTypeNotFound,
		})
	})

	r.GET("/api/health", getHealth)

	r.GET("/api/categories", getCategories)
	r.POST("/api/categories", createCategory)
	r.PUT("/api/categories/reorder", reorderCategories)
	r.GET("/api/categories/:id", getCategory)
	r.PUT("/api/categories/:id", updateCategory)
	r.DELETE("/api/categories/:id", deleteCategory)

	r.GET("/api/transactions", getTransactions)
	r.POST("/api/transactions", createTransaction)
	r.GET("/api/transactions/summary", getTransactionsSummary)
	r.POST("/api/transactions/import-csv", importTransactionsCSV)
	r.GET("/api/transactions/:id", getTransaction)
	r.PUT("/api/transactions/:id", updateTransaction)
	r.DELETE("/api/transactions/:id", deleteTransaction)

	r.GET("/api/subscriptions", getSubscriptions)
	r.POST("/api/subscriptions", createSubscription)
	r.POST("/api/subscriptions/process", processSubscriptions)
	r.GET("/api/subscriptions/:id", getSubscription)
	r.PUT("/api/subscriptions/:id", updateSubscription)
	r.DELETE("/api/subscriptions/:id", deleteSubscription)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// @title Kakeibo API
// @version 1.0
// @description Household finance tracker: categories, transactions and subscriptions.
// @BasePath /
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	appEnv = getEnvOrDefault("APP_ENV", "development")

	dbHost := getEnvOrDefault("DB_HOST", "localhost")
	dbPort := getEnvOrDefault("DB_PORT", "5432")
	dbUser := getEnvOrDefault("DB_USER", "postgres")
	dbPassword := getEnvOrDefault("DB_PASSWORD", "password")
	dbName := getEnvOrDefault("DB_NAME", "kakeibo")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	// Connect to database with retry logic
	maxRetries := 30
	retryInterval := time.Second * 2

	var err error
	for i := 0; i < maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		dbPool, err = pgxpool.New(ctx, connStr)
		if err == nil {
			err = dbPool.Ping(ctx)
		}
		cancel()
		if err == nil {
			log.Println("Successfully connected to database")
			break
		}
		log.Printf("Attempt %d: Error connecting to database: %v", i+1, err)
		if dbPool != nil {
			dbPool.Close()
			dbPool = nil
		}
		time.Sleep(retryInterval)
	}
	if err != nil {
		log.Fatal("Failed to connect to database after retries: ", err)
	}
	defer dbPool.Close()

	queries = db.New(dbPool)

	// Run database migrations
	migrationsPath := filepath.Join(".", "db", "migrations")
	if _, err := os.Stat(migrationsPath); os.IsNotExist(err) {
		log.Printf("Migrations directory not found at %s, skipping migrations", migrationsPath)
	} else {
		migrateDB, err := sql.Open("postgres", connStr)
		if err != nil {
			log.Fatal("Error opening migration connection: ", err)
		}

		log.Println("Running database migrations...")
		if err := runMigrations(migrateDB, migrationsPath); err != nil {
			log.Fatal("Error running migrations: ", err)
		}

		if version, dirty, err := getMigrationVersion(migrateDB, migrationsPath); err == nil {
			if dirty {
				log.Printf("Current migration version: %d (DIRTY - migration failed)", version)
			} else {
				log.Printf("Current migration version: %d", version)
			}
		}
		migrateDB.Close()
		log.Println("Database migrations completed successfully")
	}

	if isProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(requestIDMiddleware())

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{getEnvOrDefault("FRONTEND_ORIGIN", "http://localhost:3000")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "X-Request-ID", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
	}))

	registerRoutes(r)

	port := getEnvOrDefault("PORT", "8080")
	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Server error: ", err)
	}
}
