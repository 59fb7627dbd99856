package executormanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/agentforge/controlplane/internal/apperr"
	"github.com/agentforge/controlplane/internal/common/logger"
	"github.com/agentforge/controlplane/internal/serviceauth"
)

// Dispatcher posts a prepared DispatchTask to an executor worker's HTTP
// endpoint, the same way the teacher's agentctl client talks to its
// in-container process: a thin wrapper over http.Client with a fixed base
// URL and context-scoped requests.
type Dispatcher struct {
	httpClient *http.Client
	baseURL    string
	issuer     *serviceauth.Issuer
	log        *logger.Logger
}

// NewDispatcher creates a Dispatcher that POSTs to baseURL+"/tasks" with a
// fresh service token minted per request.
func NewDispatcher(baseURL string, timeout time.Duration, issuer *serviceauth.Issuer, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		issuer:     issuer,
		log:        log.With(zap.String("component", "dispatcher")),
	}
}

// Dispatch hands task to the configured executor worker. A non-2xx response
// or transport error surfaces as an apperr ExternalService error so callers
// can fail the run rather than leave it stuck in "running".
func (d *Dispatcher) Dispatch(ctx context.Context, task DispatchTask) error {
	body, err := json.Marshal(task)
	if err != nil {
		return apperr.Wrap(err, "marshal dispatch task")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(err, "build dispatch request")
	}
	req.Header.Set("Content-Type", "application/json")
	if d.issuer != nil {
		token, err := d.issuer.Mint()
		if err != nil {
			return apperr.Wrap(err, "mint service token")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return apperr.ExternalService("executor worker", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		d.log.Warn("executor worker rejected task",
			zap.String("run_id", task.RunID), zap.Int("status", resp.StatusCode))
		return apperr.ExternalService("executor worker", fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return nil
}
