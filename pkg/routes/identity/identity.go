// Package identity hydrates the calling principal from the identity headers.
package identity

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Ramsey-B/fern/internal/repositories/directory"
	pkgcontext "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Principal resolves the caller from the X-Domain-ID and X-User-ID values the
// context middleware copied onto the request context. Requests missing either
// header are anonymous and get a 401, as do user ids the directory has never
// seen.
func Principal(ctx context.Context) (context.Context, *models.Principal, error) {
	domainID := pkgcontext.GetDomainID(ctx)
	if domainID == "" {
		return ctx, nil, httperror.NewHTTPError(http.StatusUnauthorized, "domain_id is required")
	}

	userID := pkgcontext.GetUserID(ctx)
	if userID == "" {
		return ctx, nil, httperror.NewHTTPError(http.StatusUnauthorized, "user_id is required")
	}

	ctx, repo, err := ectoinject.GetContext[directory.DirectoryRepository](ctx)
	if err != nil {
		return ctx, nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get directory repository")
	}

	principal, err := repo.GetPrincipal(ctx, domainID, userID)
	if err != nil {
		return ctx, nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load principal")
	}
	if principal == nil {
		return ctx, nil, httperror.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}

	return ctx, principal, nil
}

// Domain resolves just the domain id for endpoints that do not act on behalf
// of a user, such as the directory sync endpoints that run before any user
// record exists.
func Domain(ctx context.Context) (string, error) {
	domainID := pkgcontext.GetDomainID(ctx)
	if domainID == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "domain_id is required")
	}
	return domainID, nil
}
