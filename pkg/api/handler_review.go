package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/critique/pkg/events"
	"github.com/codeready-toolchain/critique/pkg/llm"
	"github.com/codeready-toolchain/critique/pkg/models"
	"github.com/codeready-toolchain/critique/pkg/orchestrator"
)

// ndjsonContentType is the streaming response media type.
const ndjsonContentType = "application/x-ndjson"

// reviewResponse is the non-streaming envelope.
type reviewResponse struct {
	Result *models.ReviewResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// reviewHandler handles POST /api/v1/review. With "Accept:
// application/x-ndjson" the response is the event stream, one JSON object per
// line, ending with a final or error event. Otherwise it is a single JSON
// envelope.
func (s *Server) reviewHandler(c *gin.Context) {
	var req models.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if msg := validateRequest(&req); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	if req.Mode == "" {
		req.Mode = models.ModeFull
	}

	emitter := events.NewEmitter(0)
	if strings.Contains(c.GetHeader("Accept"), ndjsonContentType) {
		s.streamReview(c, &req, emitter)
		return
	}

	// Non-streaming: drain events in the background, reply with the envelope.
	go func() {
		for range emitter.Events() {
		}
	}()
	result, err := s.coordinator.Orchestrate(c.Request.Context(), &req, emitter)
	if err != nil {
		status := http.StatusInternalServerError
		if err == orchestrator.ErrCancelled {
			status = 499 // client closed request
		}
		c.JSON(status, reviewResponse{Error: llm.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, reviewResponse{Result: result})
}

func (s *Server) streamReview(c *gin.Context, req *models.ReviewRequest, emitter *events.Emitter) {
	c.Header("Content-Type", ndjsonContentType)
	c.Header("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	go func() {
		_, _ = s.coordinator.Orchestrate(c.Request.Context(), req, emitter)
	}()

	encoder := json.NewEncoder(c.Writer)
	for ev := range emitter.Events() {
		if err := encoder.Encode(ev); err != nil {
			slog.Debug("Event stream write failed, client gone", "error", err)
			// Keep draining so the coordinator's terminal send never blocks.
			continue
		}
		c.Writer.Flush()
	}
}

// validateRequest checks the fields the pipeline cannot run without.
func validateRequest(req *models.ReviewRequest) string {
	switch {
	case req.Workspace == "":
		return "'workspace' is required"
	case req.RepoSlug == "":
		return "'repo_slug' is required"
	case req.PullRequestID == "":
		return "'pull_request_id' is required"
	case req.TargetBranch == "":
		return "'target_branch' is required"
	case req.Provider == "":
		return "'provider' is required"
	case strings.TrimSpace(req.Diff) == "":
		return "'diff' is required"
	case req.Mode != "" && req.Mode != models.ModeFull && req.Mode != models.ModeIncremental:
		return "'mode' must be FULL or INCREMENTAL"
	}
	return ""
}
