package agent

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yaroslav/nnctl/internal/history"
	"github.com/yaroslav/nnctl/internal/namenode"
)

// Orchestrator runs lifecycle actions.
type Orchestrator interface {
	RunWithID(ctx context.Context, invocationID string, req namenode.Request) error
}

// HistoryLister reads the action journal.
type HistoryLister interface {
	List(ctx context.Context, action string, limit int) ([]history.Entry, error)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// SuccessResponse wraps successful payloads.
type SuccessResponse struct {
	Data interface{} `json:"data,omitempty"`
}

// ActionRequest is the JSON body of POST /v1/actions/:action.
type ActionRequest struct {
	HDFSBinary string `json:"hdfs_binary"`
	// DoFormat defaults to true when omitted.
	DoFormat         *bool  `json:"do_format"`
	Force            bool   `json:"force"`
	UpgradeType      string `json:"upgrade_type"`
	UpgradeDirection string `json:"upgrade_direction"`
	Phase            string `json:"phase"`
}

// ActionResponse reports a finished action.
type ActionResponse struct {
	InvocationID string `json:"invocation_id"`
	Action       string `json:"action"`
	Result       string `json:"result"`
}

// ActionHandler runs one action at a time.
type ActionHandler struct {
	orch Orchestrator

	// mu serializes orchestrations on this host.
	mu sync.Mutex
}

// NewActionHandler creates an action handler.
func NewActionHandler(orch Orchestrator) *ActionHandler {
	return &ActionHandler{orch: orch}
}

// Run handles POST /v1/actions/:action.
//
// Returns:
//   - 200 with the invocation id when the action succeeded
//   - 400 for an invalid action or request body
//   - 409 when status finds the NameNode not running
//   - 500 when the action failed
func (h *ActionHandler) Run(c *gin.Context) {
	action, err := namenode.ParseAction(c.Param("action"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_action", err.Error())
		return
	}

	var body ActionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
			return
		}
	}

	req, err := body.toRequest(action)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	invocationID := uuid.NewString()
	logger := getLogger(c).With(zap.String("invocation_id", invocationID))

	// A client that hangs up must not abort a half-done Start.
	ctx := context.WithoutCancel(c.Request.Context())

	h.mu.Lock()
	err = h.orch.RunWithID(ctx, invocationID, req)
	h.mu.Unlock()

	switch {
	case err == nil:
		respondSuccess(c, http.StatusOK, ActionResponse{
			InvocationID: invocationID,
			Action:       string(action),
			Result:       history.ResultSuccess,
		})
	case errors.Is(err, namenode.ErrConfiguration):
		respondError(c, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, namenode.ErrNotRunning):
		respondError(c, http.StatusConflict, "not_running", err.Error())
	default:
		logger.Error("action failed", zap.Error(err))
		_ = c.Error(err)
		respondError(c, http.StatusInternalServerError, "action_failed", err.Error())
	}
}

func (b ActionRequest) toRequest(action namenode.Action) (namenode.Request, error) {
	upType, err := namenode.ParseUpgradeType(b.UpgradeType)
	if err != nil {
		return namenode.Request{}, err
	}
	dir, err := namenode.ParseDirection(b.UpgradeDirection)
	if err != nil {
		return namenode.Request{}, err
	}
	phase, err := namenode.ParsePhase(b.Phase)
	if err != nil {
		return namenode.Request{}, err
	}
	return namenode.Request{
		Action:      action,
		HDFSBinary:  b.HDFSBinary,
		DoFormat:    b.DoFormat == nil || *b.DoFormat,
		ForceFormat: b.Force,
		Upgrade: namenode.UpgradeContext{
			Type:      upType,
			Direction: dir,
			Phase:     phase,
		},
	}, nil
}

// HistoryHandler serves the action journal.
type HistoryHandler struct {
	journal HistoryLister
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(journal HistoryLister) *HistoryHandler {
	return &HistoryHandler{journal: journal}
}

// List handles GET /v1/history?action=&limit=.
func (h *HistoryHandler) List(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			respondError(c, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	entries, err := h.journal.List(c.Request.Context(), c.Query("action"), limit)
	if err != nil {
		getLogger(c).Error("failed to list history", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal_error", "Failed to read action history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	respondSuccess(c, http.StatusOK, entries)
}

// LivenessResponse is the body of GET /health/live.
type LivenessResponse struct {
	Status   string `json:"status"`
	Hostname string `json:"hostname"`
}

// liveness always reports ok while the server runs.
func liveness(hostname string) gin.HandlerFunc {
	return func(c *gin.Context) {
		respondSuccess(c, http.StatusOK, LivenessResponse{Status: "ok", Hostname: hostname})
	}
}

func respondError(c *gin.Context, statusCode int, errorCode, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestID: getRequestID(c),
	})
}

func respondSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, SuccessResponse{Data: data})
}
