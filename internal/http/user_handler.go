package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"users-api/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
// Todos sus métodos corren detrás de JWTAuthMiddleware.
type UserHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, userServ *service.UserService) *UserHandler {
	return &UserHandler{
		logger:   logger,
		userServ: userServ,
	}
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// CreateUser maneja POST /users.
func (h *UserHandler) CreateUser(c *gin.Context, claims service.Claims) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, "create user", err)
		return
	}

	user, err := h.userServ.CreateUser(c.Request.Context(), service.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, "create user", err)
		return
	}

	h.logger.Info("user created", zap.String("user_id", user.ID), zap.String("actor", claims.UserID))
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// ListUsers maneja GET /users?page=&limit=&search=.
func (h *UserHandler) ListUsers(c *gin.Context, _ service.Claims) {
	res, err := h.userServ.ListUsers(c.Request.Context(), service.ListUsersInput{
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
		Search: c.Query("search"),
	})
	if err != nil {
		respondError(c, h.logger, "list users", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetUser maneja GET /users/:id.
func (h *UserHandler) GetUser(c *gin.Context, _ service.Claims) {
	user, err := h.userServ.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "get user", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateUser maneja PUT /users/:id con actualización parcial.
func (h *UserHandler) UpdateUser(c *gin.Context, claims service.Claims) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, h.logger, "update user", err)
		return
	}

	user, err := h.userServ.UpdateUser(c.Request.Context(), c.Param("id"), service.UpdateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.logger, "update user", err)
		return
	}

	h.logger.Info("user updated", zap.String("user_id", user.ID), zap.String("actor", claims.UserID))
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// DeleteUser maneja DELETE /users/:id.
func (h *UserHandler) DeleteUser(c *gin.Context, claims service.Claims) {
	id := c.Param("id")
	if err := h.userServ.DeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, "delete user", err)
		return
	}

	h.logger.Info("user deleted", zap.String("user_id", id), zap.String("actor", claims.UserID))
	c.Status(http.StatusNoContent)
}

// queryInt devuelve 0 si el parámetro falta o no es numérico; el servicio aplica los defaults.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}
