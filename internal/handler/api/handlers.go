package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"StratEq/internal/domain/models"
	"StratEq/internal/domain/repository"
	"StratEq/internal/jobs"
	"StratEq/internal/usecase"
	xhttp "StratEq/pkg/http"
	xlogger "StratEq/pkg/logger"
	"StratEq/pkg/util"
)

// PredictionHandler exposes the prediction engine over HTTP: a synchronous
// prediction endpoint plus submit/poll/cancel for the long-running jobs.
type PredictionHandler struct {
	logger       *xlogger.Logger
	predictor    *usecase.PredictorUseCase
	orchestrator *jobs.Orchestrator
	features     repository.FeatureStore
}

func NewPredictionHandler(logger *xlogger.Logger, predictor *usecase.PredictorUseCase, orchestrator *jobs.Orchestrator, features repository.FeatureStore) *PredictionHandler {
	return &PredictionHandler{
		logger:       logger,
		predictor:    predictor,
		orchestrator: orchestrator,
		features:     features,
	}
}

func (h *PredictionHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/predictions", h.Predict)
	g.POST("/backtest", h.SubmitBacktest)
	g.POST("/sensitivity", h.SubmitSensitivity)
	g.GET("/jobs", h.ListJobs)
	g.GET("/jobs/:id", h.JobStatus)
	g.DELETE("/jobs/:id", h.CancelJob)
}

func (h *PredictionHandler) Predict(c echo.Context) error {
	req := &PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := util.ParseDate(req.Date)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	pred, err := h.predictor.Predict(c.Request().Context(), date, models.EquilibriumType(req.Type))
	if err != nil {
		return h.domainError(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, pred)
}

func (h *PredictionHandler) SubmitBacktest(c echo.Context) error {
	req := &BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start, err := util.ParseDate(req.Start)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	end, err := util.ParseDate(req.End)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	spec := models.BacktestSpec{
		Start:     start,
		End:       end,
		Frequency: models.Frequency(req.Frequency),
		Type:      models.EquilibriumType(req.Type),
	}
	job, err := h.orchestrator.Submit(c.Request().Context(), models.JobBacktest, spec)
	if err != nil {
		return h.domainError(c, "submit backtest", err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, JobSubmitted{JobID: job.ID, Status: string(job.Status)})
}

func (h *PredictionHandler) SubmitSensitivity(c echo.Context) error {
	req := &SensitivityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date, err := util.ParseDate(req.Date)
	if err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}

	spec := models.SensitivitySpec{
		Date:        date,
		NoiseLevels: req.NoiseLevels,
		Trials:      req.Trials,
		Seed:        req.Seed,
	}
	job, err := h.orchestrator.Submit(c.Request().Context(), models.JobSensitivity, spec)
	if err != nil {
		return h.domainError(c, "submit sensitivity", err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, JobSubmitted{JobID: job.ID, Status: string(job.Status)})
}

func (h *PredictionHandler) ListJobs(c echo.Context) error {
	all, err := h.orchestrator.List(c.Request().Context())
	if err != nil {
		return h.domainError(c, "list jobs", err)
	}
	// Poll responses never carry full result payloads.
	for _, job := range all {
		job.Result = nil
	}
	return xhttp.ListResponse(c, all, int64(len(all)))
}

func (h *PredictionHandler) JobStatus(c echo.Context) error {
	job, err := h.orchestrator.Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.domainError(c, "job status", err)
	}
	return xhttp.SuccessResponse(c, job)
}

func (h *PredictionHandler) CancelJob(c echo.Context) error {
	if err := h.orchestrator.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return h.domainError(c, "cancel job", err)
	}
	return xhttp.SuccessResponse(c, map[string]string{"job_id": c.Param("id"), "status": "cancel_requested"})
}

func (h *PredictionHandler) Health(c echo.Context) error {
	status := map[string]string{"status": "ok"}
	if h.features != nil {
		if err := h.features.Health(c.Request().Context()); err != nil {
			h.logger.Warn("feature store unhealthy", xlogger.Error(err))
			status["status"] = "degraded"
			status["feature_store"] = err.Error()
			return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
		}
	}
	return xhttp.SuccessResponse(c, status)
}

// domainError maps the engine's error taxonomy onto HTTP statuses.
func (h *PredictionHandler) domainError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, models.ErrConfiguration):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	case errors.Is(err, models.ErrDataUnavailable):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, models.ErrJobNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	case errors.Is(err, models.ErrJobTerminal):
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_CONFLICT", "", err.Error(), http.StatusConflict))
	default:
		h.logger.Error(op+" failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
}
