package person

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextUserKey is where the access-token middleware stores the authenticated *Person.
const ContextUserKey = "user"

type CreatePersonRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type UpdateEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

type IDRequest struct {
	ID uint `uri:"id" binding:"required,min=1"`
}

type IDResponse struct {
	ID uint `json:"id"`
}

// PasswordChangeResponse reports how many refresh sessions the change ended.
type PasswordChangeResponse struct {
	SessionsRevoked int64 `json:"sessionsRevoked"`
}

// errorStatus maps service errors to a response; anything unlisted is a 500.
var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{ErrInvalidEmailFormat, http.StatusBadRequest, "invalid email format"},
	{ErrPasswordTooShort, http.StatusBadRequest, "invalid password format"},
	{ErrPersonNotFound, http.StatusNotFound, "person not found"},
	{ErrEmailAlreadyExists, http.StatusConflict, "email already registered"},
}

type PersonHandler struct {
	router  *gin.RouterGroup
	service PersonService
	logger  *zap.Logger
}

// NewPersonHandler registers the admin person endpoints on the given router group.
func NewPersonHandler(router *gin.RouterGroup, service PersonService, logger *zap.Logger) *PersonHandler {
	h := &PersonHandler{router: router, service: service, logger: logger}
	h.router.POST("/persons", h.CreatePerson)
	h.router.GET("/persons", h.ReadPersonByEmail)
	h.router.GET("/persons/:id", h.ReadPersonByID)
	h.router.PUT("/persons/:id/email", h.UpdateEmail)
	h.router.PUT("/persons/:id/password", h.UpdatePassword)
	h.router.PUT("/persons/:id/confirm", h.ConfirmEmail)
	h.router.DELETE("/persons/:id", h.DeletePerson)
	return h
}

// NewSelfServiceHandler registers the endpoints an authenticated person uses
// on their own account.
func NewSelfServiceHandler(router *gin.RouterGroup, service PersonService, logger *zap.Logger) *PersonHandler {
	h := &PersonHandler{router: router, service: service, logger: logger}
	h.router.GET("/persons/me", h.ReadCurrentPerson)
	h.router.PUT("/persons/me/password", h.UpdateCurrentPassword)
	return h
}

func (h *PersonHandler) fail(c *gin.Context, op string, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.message})
			return
		}
	}
	h.logger.Error("person request failed", zap.String("op", op), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "could not " + op})
}

func (h *PersonHandler) bindID(c *gin.Context) (uint, bool) {
	var uri IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or missing id"})
		return 0, false
	}
	return uri.ID, true
}

func (h *PersonHandler) bindBody(c *gin.Context, req any, message string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Warn("invalid person payload", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": message})
		return false
	}
	return true
}

func currentPerson(c *gin.Context) (*Person, bool) {
	raw, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := raw.(*Person)
	return user, ok
}

// ReadCurrentPerson godoc
// @Summary      Get current user
// @Description  Fetch the "me" record for the authenticated user
// @Tags         persons
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} Person
// @Failure      401 {object} map[string]string
// @Router       /persons/me [get]
func (h *PersonHandler) ReadCurrentPerson(c *gin.Context) {
	user, ok := currentPerson(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateCurrentPassword godoc
// @Summary      Change own password
// @Description  Change the authenticated user's password and end every refresh session
// @Tags         persons
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      UpdatePasswordRequest  true  "New password payload"
// @Success      200      {object}  PasswordChangeResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /persons/me/password [put]
func (h *PersonHandler) UpdateCurrentPassword(c *gin.Context) {
	user, ok := currentPerson(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	h.changePassword(c, user.ID)
}

// CreatePerson godoc
// @Summary      Create Person
// @Description  Register a new person
// @Tags         persons
// @Accept       json
// @Produce      json
// @Param        payload  body      CreatePersonRequest  true  "Person payload"
// @Success      201      {object}  IDResponse
// @Failure      400      {object}  map[string]string
// @Failure      409      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /persons [post]
func (h *PersonHandler) CreatePerson(c *gin.Context) {
	var req CreatePersonRequest
	if !h.bindBody(c, &req, "invalid email or password format") {
		return
	}
	p, err := h.service.CreatePerson(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "create person", err)
		return
	}
	c.JSON(http.StatusCreated, IDResponse{ID: p.ID})
}

// ReadPersonByID godoc
// @Summary      Get Person by ID
// @Tags         persons
// @Produce      json
// @Param        id   path      int  true  "Person ID"
// @Success      200  {object}  Person
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /persons/{id} [get]
func (h *PersonHandler) ReadPersonByID(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	p, err := h.service.ReadPersonByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "fetch person", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ReadPersonByEmail godoc
// @Summary      Get Person by Email
// @Tags         persons
// @Produce      json
// @Param        email  query     string  true  "Email address"
// @Success      200    {object}  Person
// @Failure      400    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /persons [get]
func (h *PersonHandler) ReadPersonByEmail(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter required"})
		return
	}
	p, err := h.service.ReadPersonByEmail(c.Request.Context(), email)
	if err != nil {
		h.fail(c, "fetch person", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateEmail godoc
// @Summary      Update Person Email
// @Description  Change a person's email; the new address starts unconfirmed
// @Tags         persons
// @Accept       json
// @Param        id       path  int                 true  "Person ID"
// @Param        payload  body  UpdateEmailRequest  true  "New email payload"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /persons/{id}/email [put]
func (h *PersonHandler) UpdateEmail(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	var req UpdateEmailRequest
	if !h.bindBody(c, &req, "invalid email format") {
		return
	}
	if err := h.service.UpdateEmail(c.Request.Context(), id, req.Email); err != nil {
		h.fail(c, "update email", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdatePassword godoc
// @Summary      Update Person Password
// @Description  Change a person's password and end every refresh session they hold
// @Tags         persons
// @Accept       json
// @Produce      json
// @Param        id       path      int                    true  "Person ID"
// @Param        payload  body      UpdatePasswordRequest  true  "New password payload"
// @Success      200      {object}  PasswordChangeResponse
// @Failure      400      {object}  map[string]string
// @Failure      404      {object}  map[string]string
// @Router       /persons/{id}/password [put]
func (h *PersonHandler) UpdatePassword(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	h.changePassword(c, id)
}

func (h *PersonHandler) changePassword(c *gin.Context, id uint) {
	var req UpdatePasswordRequest
	if !h.bindBody(c, &req, "invalid password format") {
		return
	}
	revoked, err := h.service.UpdatePassword(c.Request.Context(), id, req.Password)
	if err != nil {
		h.fail(c, "update password", err)
		return
	}
	c.JSON(http.StatusOK, PasswordChangeResponse{SessionsRevoked: revoked})
}

// ConfirmEmail godoc
// @Summary      Confirm Person Email
// @Description  Mark a person's email address as confirmed so login issues tokens
// @Tags         persons
// @Param        id  path  int  true  "Person ID"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /persons/{id}/confirm [put]
func (h *PersonHandler) ConfirmEmail(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	if err := h.service.ConfirmEmail(c.Request.Context(), id); err != nil {
		h.fail(c, "confirm email", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeletePerson godoc
// @Summary      Delete Person
// @Tags         persons
// @Param        id  path  int  true  "Person ID"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /persons/{id} [delete]
func (h *PersonHandler) DeletePerson(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}
	if err := h.service.DeletePerson(c.Request.Context(), id); err != nil {
		h.fail(c, "delete person", err)
		return
	}
	c.Status(http.StatusNoContent)
}
