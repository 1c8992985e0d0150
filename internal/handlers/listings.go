package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dormline/dormline/internal/listings"
	"github.com/dormline/dormline/internal/users"
)

// ListingsHandler is the read-and-maintain admin surface over listings and
// users. The conversational flow is the only way listings are created;
// this API exists for operators.
type ListingsHandler struct {
	store     *listings.Store
	assembler *listings.Assembler
	userStore *users.Store
	logger    *slog.Logger
}

// NewListingsHandler creates the admin listings handler.
func NewListingsHandler(log *slog.Logger, store *listings.Store, assembler *listings.Assembler, userStore *users.Store) *ListingsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ListingsHandler{
		store:     store,
		assembler: assembler,
		userStore: userStore,
		logger:    log.With(slog.String("handler", "listings")),
	}
}

func (h *ListingsHandler) Register(e *echo.Echo) {
	group := e.Group("/listings")
	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.POST("/:id/renew", h.Renew)

	e.GET("/users", h.ListUsers)
}

type listingListResponse struct {
	Items []listings.Listing `json:"items"`
}

// List returns listings filtered by status, defaulting to published.
func (h *ListingsHandler) List(c echo.Context) error {
	status := listings.Status(c.QueryParam("status"))
	if status == "" {
		status = listings.StatusPublished
	}
	if !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	items, err := h.store.ListByStatus(c.Request().Context(), status, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []listings.Listing{}
	}
	return c.JSON(http.StatusOK, listingListResponse{Items: items})
}

// Get returns one listing by id.
func (h *ListingsHandler) Get(c echo.Context) error {
	listing, err := h.store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, listings.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "listing not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, listing)
}

// Renew extends a listing's expiry by the full lifetime.
func (h *ListingsHandler) Renew(c echo.Context) error {
	listing, err := h.assembler.Renew(c.Request().Context(), c.Param("id"), time.Now())
	if err != nil {
		if errors.Is(err, listings.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "listing not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.logger.Info("listing renewed", slog.String("listing_id", listing.ID))
	return c.JSON(http.StatusOK, listing)
}

type userListResponse struct {
	Items []users.User `json:"items"`
}

// ListUsers returns all users with their trust standing.
func (h *ListingsHandler) ListUsers(c echo.Context) error {
	items, err := h.userStore.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []users.User{}
	}
	return c.JSON(http.StatusOK, userListResponse{Items: items})
}
