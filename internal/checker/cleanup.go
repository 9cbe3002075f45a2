package checker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/khanhnv2901/idprecon/internal/domain/scan"
	"github.com/khanhnv2901/idprecon/internal/probe"
	sharedErrors "github.com/khanhnv2901/idprecon/internal/shared/errors"
)

// Identity is an account the scan made the tenant create.
type Identity struct {
	Connection string `json:"connection"`
	Email      string `json:"email"`
	// UserID is the management API id, "auth0|<_id>" for database users.
	UserID  string `json:"user_id,omitempty"`
	CheckID string `json:"check_id"`
}

func (i Identity) String() string {
	if i.UserID != "" {
		return fmt.Sprintf("%s (%s, %s)", i.Email, i.Connection, i.UserID)
	}
	return fmt.Sprintf("%s (%s)", i.Email, i.Connection)
}

// Registry records created identities. It is safe for concurrent use and
// append-only.
type Registry struct {
	mu         sync.Mutex
	identities []Identity
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register records an identity that needs cleanup.
func (r *Registry) Register(id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities = append(r.identities, id)
}

// Identities returns a copy of everything registered so far.
func (r *Registry) Identities() []Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Identity, len(r.identities))
	copy(out, r.identities)
	return out
}

// Len returns how many identities are registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.identities)
}

// registerCreated stores the identity behind a successful signup response.
func registerCreated(reg *Registry, checkID, connection, email string, res probe.Result) Identity {
	id := Identity{Connection: connection, Email: email, CheckID: checkID}
	if raw := createdUserID(res.Body); raw != "" {
		id.UserID = "auth0|" + raw
	}
	if reg != nil {
		reg.Register(id)
	}
	return id
}

// Deleter removes one identity from the tenant.
type Deleter interface {
	Delete(ctx context.Context, id Identity) error
}

// HTTPDeleter deletes users through the management API.
type HTTPDeleter struct {
	prober  Prober
	baseURL string
	token   string
}

// NewHTTPDeleter returns a Deleter using the bearer token for the
// management API of the tenant at baseURL.
func NewHTTPDeleter(prober Prober, baseURL, token string) *HTTPDeleter {
	return &HTTPDeleter{prober: prober, baseURL: baseURL, token: token}
}

// Delete sends DELETE /api/v2/users/{id}. A 404 counts as deleted.
func (d *HTTPDeleter) Delete(ctx context.Context, id Identity) error {
	if d.token == "" {
		return sharedErrors.ErrCleanupUnauthorized
	}
	if id.UserID == "" {
		return fmt.Errorf("%w: no user id recorded for %s", sharedErrors.ErrCleanupFailed, id.Email)
	}
	req := probe.Request{
		Key:    probe.Key{Check: CheckCleanup, Connection: id.Connection},
		Method: http.MethodDelete,
		URL:    Target{BaseURL: d.baseURL}.endpoint("/api/v2/users/" + url.PathEscape(id.UserID)),
	}
	req = req.WithHeader("Authorization", "Bearer "+d.token)

	res := d.prober.Execute(ctx, req)
	if res.Failed() {
		return fmt.Errorf("%w: %v", sharedErrors.ErrCleanupFailed, res.Failure)
	}
	switch {
	case res.StatusCode == http.StatusNoContent, res.StatusCode == http.StatusOK, res.StatusCode == http.StatusNotFound:
		return nil
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", sharedErrors.ErrCleanupUnauthorized, res.StatusCode)
	default:
		return fmt.Errorf("%w: HTTP %d", sharedErrors.ErrCleanupFailed, res.StatusCode)
	}
}

// Cleanup makes one best-effort deletion attempt per registered identity.
// Errors are logged and reported in the summary, never returned.
func Cleanup(ctx context.Context, reg *Registry, deleter Deleter, logger *zap.Logger) *scan.CleanupSummary {
	if logger == nil {
		logger = zap.NewNop()
	}
	identities := reg.Identities()
	summary := &scan.CleanupSummary{Enabled: true, Registered: len(identities)}

	for _, id := range identities {
		if ctx.Err() != nil {
			summary.Pending = append(summary.Pending, id.String())
			continue
		}
		err := deleter.Delete(ctx, id)
		switch {
		case err == nil:
			summary.Deleted++
			logger.Debug("deleted test account", zap.String("email", id.Email), zap.String("connection", id.Connection))
		case errors.Is(err, sharedErrors.ErrCleanupUnauthorized):
			summary.Pending = append(summary.Pending, id.String())
			logger.Warn("test account left in place", zap.String("email", id.Email), zap.Error(err))
		default:
			summary.Failed = append(summary.Failed, id.String())
			logger.Warn("test account deletion failed", zap.String("email", id.Email), zap.Error(err))
		}
	}
	sort.Strings(summary.Failed)
	sort.Strings(summary.Pending)
	return summary
}

// PendingSummary reports registered identities without deleting them, used
// when cleanup is disabled or cannot run. reason says which.
func PendingSummary(reg *Registry, reason string) *scan.CleanupSummary {
	identities := reg.Identities()
	summary := &scan.CleanupSummary{Registered: len(identities), Reason: reason}
	for _, id := range identities {
		summary.Pending = append(summary.Pending, id.String())
	}
	sort.Strings(summary.Pending)
	return summary
}
