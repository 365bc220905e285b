package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Handlers interface {
	PostRegister(gctx *gin.Context)
	PostLogin(gctx *gin.Context)
}

type handlers struct {
	store UserStore
	jwt   JWT
}

func NewHandlers(store UserStore, jwt JWT) Handlers {
	return &handlers{store: store, jwt: jwt}
}

func (h *handlers) PostRegister(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var request credentialsRequest

	err := gctx.ShouldBindJSON(&request)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "failed to bind JSON"})

		return
	}

	request.Username = strings.TrimSpace(request.Username)
	if request.Username == "" || len(request.Password) < 8 {
		gctx.AbortWithStatusJSON(http.StatusBadRequest,
			gin.H{"message": "username is required and password must be at least 8 characters"})

		return
	}

	hash, err := HashPassword(request.Password)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("hashing password failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "registration failed"})

		return
	}

	user, err := h.store.CreateUser(ctx, request.Username, hash)
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			gctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "username is already taken"})

			return
		}

		log.Ctx(ctx).Error().Err(err).Msg("creating user failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "registration failed"})

		return
	}

	gctx.JSON(http.StatusCreated, user)
}

func (h *handlers) PostLogin(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var request credentialsRequest

	err := gctx.ShouldBindJSON(&request)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to bind JSON")
		gctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "failed to bind JSON"})

		return
	}

	user, err := h.store.GetUserByUsername(ctx, request.Username)
	if err != nil {
		// Same signal as a wrong password: no username enumeration.
		log.Ctx(ctx).Info().Err(err).Msg("login failed")
		gctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})

		return
	}

	err = VerifyPassword(user.PasswordHash, request.Password)
	if err != nil {
		log.Ctx(ctx).Info().Msg("login failed")
		gctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials"})

		return
	}

	token, expiresAt, err := h.jwt.Sign(user.Id, user.Username)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("signing token failed")
		gctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "login failed"})

		return
	}

	gctx.JSON(http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}
