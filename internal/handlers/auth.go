package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/parloir/parloir/internal/database"
	"github.com/parloir/parloir/pkg/auth"
)

// AuthHandler serves the stateless pre-session surface: availability
// checks, registration and credential issuance.
type AuthHandler struct {
	db         *database.Database
	jwtManager *auth.JWTManager
	redis      *redis.Client
}

func NewAuthHandler(db *database.Database, jwtMgr *auth.JWTManager, rdb *redis.Client) *AuthHandler {
	return &AuthHandler{db: db, jwtManager: jwtMgr, redis: rdb}
}

func (h *AuthHandler) UsernameCheck(c *gin.Context) {
	username := c.Param("username")
	if username == "" {
		respondError(c, "user/usernamecheck", database.ErrInvalid)
		return
	}

	available, err := h.db.UsernameAvailable(username)
	if err != nil {
		respondError(c, "user/usernamecheck", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "available": available})
}

func (h *AuthHandler) EmailCheck(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		respondError(c, "user/emailcheck", database.ErrInvalid)
		return
	}

	available, err := h.db.EmailAvailable(email)
	if err != nil {
		respondError(c, "user/emailcheck", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "available": available})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Pseudo   string `json:"pseudo"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil ||
		req.Username == "" || req.Email == "" || req.Pseudo == "" || req.Password == "" {
		respondError(c, "user/register", database.ErrInvalid)
		return
	}

	if _, err := h.db.CreateUser(req.Username, req.Email, req.Pseudo, req.Password); err != nil {
		respondError(c, "user/register", err)
		return
	}

	logrus.WithField("user", req.Username).Info("user registered")
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// Authenticate issues a one-week bearer token. An already-connected user
// is refused, and credential mismatches answer 412 without detail.
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"path":    "user/authenticate",
			"error":   "invalid request",
		})
		return
	}

	presence, err := h.db.IsConnectedUser(req.Username)
	if err != nil {
		respondError(c, "user/authenticate", err)
		return
	}
	if presence.Online {
		c.JSON(http.StatusPreconditionFailed, gin.H{
			"success": false,
			"path":    "user/authenticate",
			"error":   "user already connected",
		})
		return
	}

	user, err := h.db.GetUser(req.Username)
	if err != nil || !h.db.ComparePassword(req.Password, user.PasswordHash) {
		c.JSON(http.StatusPreconditionFailed, gin.H{
			"success": false,
			"path":    "user/authenticate",
			"error":   "wrong username or password",
		})
		return
	}

	token, err := h.jwtManager.Generate(user.Username)
	if err != nil {
		respondError(c, "user/authenticate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "token": token})
}

// Logout blacklists the presented token in Redis until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	rawToken, err := auth.ExtractTokenFromHeader(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	exp, err := h.jwtManager.Expiry(rawToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
		return
	}

	ttl := time.Until(exp)
	h.redis.Set(context.Background(), "blacklist:"+rawToken, 1, ttl)

	c.JSON(http.StatusOK, gin.H{"success": true})
}
