package server

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/parloir/parloir/internal/database"
	"github.com/parloir/parloir/internal/handlers"
	"github.com/parloir/parloir/internal/hub"
	"github.com/parloir/parloir/pkg/auth"
)

// tokenDuration is the bearer credential validity, one week.
const tokenDuration = 7 * 24 * time.Hour

type Server struct {
	Router     *gin.Engine
	DB         *database.Database
	Redis      *redis.Client
	Hub        *hub.Hub
	JWTManager *auth.JWTManager
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			logrus.Info(".env not found, using environment variables")
		}
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(); err != nil {
		logrus.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		logrus.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logrus.Fatalf("Redis connect failed: %v", err)
	}

	jwtMgr := auth.NewJWTManager(os.Getenv("JWT_SECRET"), tokenDuration)

	fanoutHub := hub.NewHub(fanoutDelay())

	authH := handlers.NewAuthHandler(dbConn, jwtMgr, rdb)
	roomH := handlers.NewRoomHandler(dbConn, fanoutHub)
	gatewayH := handlers.NewGatewayHandler(dbConn, fanoutHub, jwtMgr, rdb, authTimeout())

	router := gin.Default()
	APIEndpoints(router, authH, roomH, gatewayH, jwtMgr, rdb)

	return &Server{
		Router:     router,
		DB:         dbConn,
		Redis:      rdb,
		Hub:        fanoutHub,
		JWTManager: jwtMgr,
	}
}

func (s *Server) Run() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	logrus.Infof("Server starting on port %s", port)
	if err := s.Router.Run(":" + port); err != nil {
		logrus.Fatalf("Server run error: %v", err)
	}
}

func fanoutDelay() time.Duration {
	if raw := os.Getenv("FANOUT_DELAY_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return hub.DefaultDelay
}

func authTimeout() time.Duration {
	if raw := os.Getenv("AUTH_TIMEOUT_SEC"); raw != "" {
		if sec, err := strconv.Atoi(raw); err == nil && sec > 0 {
			return time.Duration(sec) * time.Second
		}
	}
	return handlers.DefaultAuthTimeout
}
