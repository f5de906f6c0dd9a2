package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	sonic "github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/oddsline/internal/platform/logging"
	"github.com/riskibarqy/oddsline/internal/usecase"
)

const maxRequestBodyBytes = 1 << 20

type Handler struct {
	registry   *usecase.SupervisorRegistry
	dashboard  *usecase.DashboardService
	settlement *usecase.SettlementService
	accounts   *usecase.AccountService
	tasks      usecase.TaskQueue
	logger     *logging.Logger
	validator  *validator.Validate
}

func NewHandler(
	registry *usecase.SupervisorRegistry,
	dashboard *usecase.DashboardService,
	settlement *usecase.SettlementService,
	accounts *usecase.AccountService,
	tasks usecase.TaskQueue,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if tasks == nil {
		tasks = usecase.NewNoopTaskQueue()
	}

	return &Handler{
		registry:   registry,
		dashboard:  dashboard,
		settlement: settlement,
		accounts:   accounts,
		tasks:      tasks,
		logger:     logger.Named("http"),
		validator:  validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startHandlerSpan(r, "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read request body: %v", usecase.ErrInvalidInput, err)
	}
	if len(body) > maxRequestBodyBytes {
		return fmt.Errorf("%w: request body too large", usecase.ErrInvalidInput)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: request body is required", usecase.ErrInvalidInput)
	}

	if err := sonic.ConfigStd.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func parseMatchID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("matchID"))
	matchID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || matchID <= 0 {
		return 0, fmt.Errorf("%w: invalid match id %q", usecase.ErrInvalidInput, raw)
	}
	return matchID, nil
}

func parseUserID(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(r.PathValue("userID"))
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: invalid user id %q", usecase.ErrInvalidInput, raw)
	}
	return userID, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid limit %q", usecase.ErrInvalidInput, raw)
	}
	return limit, nil
}

// logFailure logs at warn for client errors and at error otherwise.
func (h *Handler) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if errors.Is(err, usecase.ErrInvalidInput) ||
		errors.Is(err, usecase.ErrNotFound) ||
		errors.Is(err, usecase.ErrConflict) ||
		errors.Is(err, usecase.ErrAlreadyRunning) ||
		errors.Is(err, usecase.ErrNotRunning) ||
		errors.Is(err, usecase.ErrMatchNotFinishable) {
		h.logger.WarnContext(ctx, msg, args...)
		return
	}
	h.logger.ErrorContext(ctx, msg, args...)
}
