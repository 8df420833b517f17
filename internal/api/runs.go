// internal/api/runs.go
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/backlab/simcore/internal/api/response"
	"github.com/backlab/simcore/internal/config"
	"github.com/backlab/simcore/internal/core"
	"github.com/backlab/simcore/internal/exit"
	"go.uber.org/zap"
)

type signalRequest struct {
	core.Signal
	ExitStrategy *exit.Strategy `json:"exit_strategy,omitempty"`
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var cfg config.RunConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	runID, err := s.coord.Submit(r.Context(), cfg)
	if err != nil {
		response.Error(w, statusFor(err), err)
		return
	}

	run, err := s.coord.Status(runID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, err)
		return
	}
	response.JSON(w, http.StatusAccepted, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, s.coord.Runs())
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.coord.Status(r.PathValue("id"))
	if err != nil {
		response.Error(w, statusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if err := s.coord.Cancel(runID); err != nil {
		response.Error(w, statusFor(err), err)
		return
	}
	s.logger.Info("run cancellation requested", zap.String("run_id", runID))
	response.JSON(w, http.StatusAccepted, map[string]string{"id": runID, "status": "cancelling"})
}

func (s *Server) handleRunResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.coord.Result(r.PathValue("id"))
	if err != nil {
		response.Error(w, statusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

func (s *Server) handlePauseRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if err := s.coord.Pause(runID); err != nil {
		response.Error(w, statusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"id": runID, "status": "pausing"})
}

func (s *Server) handleResumeRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if err := s.coord.Resume(runID); err != nil {
		response.Error(w, statusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"id": runID, "status": "running"})
}

func (s *Server) handleSubmitSignal(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, core.WrapError(core.ErrMissingParams, err))
		return
	}

	if err := s.coord.SubmitSignal(r.PathValue("id"), req.Signal, req.ExitStrategy); err != nil {
		response.Error(w, statusFor(err), err)
		return
	}
	response.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// statusFor maps typed domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrRunNotFound), errors.Is(err, core.ErrTradeNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRunExists), errors.Is(err, core.ErrRunTerminal),
		errors.Is(err, core.ErrRunActive), errors.Is(err, core.ErrPositionExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrConfigInvalid), errors.Is(err, core.ErrConfigMissing),
		errors.Is(err, core.ErrMissingParams), errors.Is(err, core.ErrInvalidStopLoss),
		errors.Is(err, core.ErrInvalidExitStrategy), errors.Is(err, core.ErrInvalidShares),
		errors.Is(err, core.ErrUntrackedSymbol):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
