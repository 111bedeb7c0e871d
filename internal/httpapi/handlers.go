package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"PolicyScanner/internal/domain"
	"PolicyScanner/internal/infrastructure/storage"
	"PolicyScanner/internal/usecase"
)

// PolicyStore is the policy query surface the API needs.
type PolicyStore interface {
	ListActive(ctx context.Context, page storage.Page) ([]domain.Policy, error)
	CountActive(ctx context.Context) (int, error)
	SoftDelete(ctx context.Context, id int64) error
}

// LogStore is the audit query surface the API needs.
type LogStore interface {
	ListLogs(ctx context.Context, page storage.Page, isDuplicate *bool) ([]domain.LogRecord, error)
	CountLogs(ctx context.Context, isDuplicate *bool) (int, error)
}

type handlers struct {
	policies PolicyStore
	logs     LogStore
	runner   usecase.Runner
}

func (h *handlers) listPolicies(c *gin.Context) {
	p := ParsePagination(c.Query("page"), c.Query("pageSize"))
	ctx := c.Request.Context()

	total, err := h.policies.CountActive(ctx)
	if err != nil {
		h.serverError(c, err)
		return
	}
	policies, err := h.policies.ListActive(ctx, p.Window())
	if err != nil {
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        policies,
		"currentPage": p.Page,
		"totalPages":  p.TotalPages(total),
	})
}

func (h *handlers) deletePolicy(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid policy id")
		return
	}

	if err := h.policies.SoftDelete(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fail(c, http.StatusNotFound, "Policy not found")
			return
		}
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Policy soft-deleted successfully"})
}

func (h *handlers) listLogs(c *gin.Context) {
	p := ParsePagination(c.Query("page"), c.Query("pageSize"))

	var filter *bool
	if raw, ok := c.GetQuery("isDuplicate"); ok && raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "isDuplicate must be true or false")
			return
		}
		filter = &v
	}

	ctx := c.Request.Context()
	total, err := h.logs.CountLogs(ctx, filter)
	if err != nil {
		h.serverError(c, err)
		return
	}
	records, err := h.logs.ListLogs(ctx, p.Window(), filter)
	if err != nil {
		h.serverError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        records,
		"currentPage": p.Page,
		"totalPages":  p.TotalPages(total),
	})
}

func (h *handlers) triggerCrawler(c *gin.Context) {
	// The run is not tied to the caller's connection; server shutdown still cancels it.
	if _, err := h.runner.Run(context.WithoutCancel(c.Request.Context())); err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Crawler execution is completed."})
}

func (h *handlers) serverError(c *gin.Context, err error) {
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, err.Error())
}
