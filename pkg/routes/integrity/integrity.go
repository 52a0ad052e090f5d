package integrity

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/routes/identity"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/labstack/echo/v4"

	integritypkg "github.com/Ramsey-B/fern/pkg/integrity"
)

// fixLockTTL bounds how long a crashed fix pass can hold its domain lock.
const fixLockTTL = 5 * time.Minute

// Register registers integrity routes
func Register(g *echo.Group) {
	g.POST("/check", Check)
	g.POST("/fix", Fix)
}

// requireAdmin gates integrity passes: system admins may target any domain
// (or all of them), domain admins only their own.
func requireAdmin(principal *models.Principal, domainID string) error {
	if principal.IsAdmin {
		return nil
	}
	if domainID != "" && domainID == principal.DomainID && principal.IsDomainAdmin {
		return nil
	}
	return httperror.NewHTTPError(http.StatusForbidden, "integrity endpoints require admin access")
}

func domainLabel(domainID string) string {
	if domainID == "" {
		return "all"
	}
	return domainID
}

// Check runs a read-only integrity pass and returns the report
func Check(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "integrity_handler.Check")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	var req models.CheckIntegrityRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := requireAdmin(principal, req.DomainID); err != nil {
		return err
	}

	ctx, enforcer, err := ectoinject.GetContext[*integritypkg.Enforcer](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get integrity enforcer")
	}

	report, err := enforcer.Check(ctx, req)
	if err != nil {
		metrics.IntegrityRunsTotal.WithLabelValues("check", "error").Inc()
		return err
	}

	metrics.IntegrityRunsTotal.WithLabelValues("check", "ok").Inc()
	for issueType, count := range report.Summary {
		metrics.IntegrityIssuesFound.WithLabelValues(domainLabel(req.DomainID), issueType).Add(float64(count))
	}

	return c.JSON(http.StatusOK, report)
}

// Fix runs a repair pass under a per-domain lock so passes cannot interleave
func Fix(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "integrity_handler.Fix")
	defer span.End()

	ctx, principal, err := identity.Principal(ctx)
	if err != nil {
		return err
	}

	var req models.FixIntegrityRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := requireAdmin(principal, req.DomainID); err != nil {
		return err
	}

	ctx, locker, err := ectoinject.GetContext[*redis.Locker](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get lock service")
	}

	lock, err := locker.Acquire(ctx, fmt.Sprintf("integrity:fix:%s", domainLabel(req.DomainID)), fixLockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			return httperror.NewHTTPError(http.StatusConflict, "a repair pass is already running for this domain")
		}
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to acquire repair lock")
	}
	defer lock.Release(ctx)

	ctx, enforcer, err := ectoinject.GetContext[*integritypkg.Enforcer](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get integrity enforcer")
	}

	result, err := enforcer.Fix(ctx, req)
	if err != nil {
		metrics.IntegrityRunsTotal.WithLabelValues("fix", "error").Inc()
		return err
	}

	metrics.IntegrityRunsTotal.WithLabelValues("fix", "ok").Inc()
	if !result.DryRun {
		for _, item := range result.Fixed {
			metrics.IntegrityRepairsTotal.WithLabelValues(domainLabel(req.DomainID), item.Type, "fixed").Inc()
		}
		for _, item := range result.Errors {
			metrics.IntegrityRepairsTotal.WithLabelValues(domainLabel(req.DomainID), item.Type, "error").Inc()
		}
	}

	return c.JSON(http.StatusOK, result)
}
