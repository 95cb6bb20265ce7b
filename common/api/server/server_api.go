package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monobilisim/logagent/common/api/assistant"
	"github.com/monobilisim/logagent/common/api/ingest"
	"github.com/monobilisim/logagent/common/api/logstore"
	"github.com/monobilisim/logagent/common/api/models"
	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/telemetry"
	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
)

// Searcher answers log queries, usually through the cache.
type Searcher interface {
	SearchLimit(ctx context.Context, q query.Query, limit int) ([]types.LogEntry, error)
}

// Counter reports how many entries match a query.
type Counter interface {
	Count(ctx context.Context, q query.Query) (int64, error)
}

// Queue accepts submitted entries for batched writing.
type Queue interface {
	Add(entry types.LogEntry)
}

// API holds what the handlers need.
type API struct {
	Search Searcher
	Count  Counter
	Queue  Queue
	Sink   *telemetry.Counter
}

func setupRoutes(r *gin.Engine, api *API) {
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/logs", api.getLogs)
		v1.POST("/logs", api.submitLog)
		v1.POST("/logs/search", api.searchLogs)
		v1.POST("/chat", chat)
		v1.GET("/errors", api.getErrors)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) getLogs(c *gin.Context) {
	req := models.SearchRequest{
		Keyword: c.Query("q"),
		Level:   c.Query("level"),
	}

	for key, dst := range map[string]**time.Time{"start": &req.StartTime, "end": &req.EndTime} {
		if v := c.Query(key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid " + key + " time, expected RFC3339"})
				return
			}
			*dst = &t
		}
	}

	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid limit"})
			return
		}
		req.Limit = limit
	}

	a.respondSearch(c, req)
}

func (a *API) searchLogs(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	a.respondSearch(c, req)
}

func (a *API) respondSearch(c *gin.Context, req models.SearchRequest) {
	q, err := queryFromRequest(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	limit := req.Limit
	if limit > logstore.MaxLimit {
		limit = logstore.MaxLimit
	}

	entries, err := a.Search.SearchLimit(c.Request.Context(), q, limit)
	if err != nil {
		a.storeFailure(c, "search", err)
		return
	}

	total := int64(len(entries))
	if a.Count != nil {
		if total, err = a.Count.Count(c.Request.Context(), q); err != nil {
			a.storeFailure(c, "count", err)
			return
		}
	}

	c.JSON(http.StatusOK, models.LogsResponse{Logs: entries, Total: int(total)})
}

func queryFromRequest(req models.SearchRequest) (query.Query, error) {
	q := query.Query{Keyword: strings.TrimSpace(req.Keyword)}
	if req.Level != "" {
		l, ok := types.ParseLevel(req.Level)
		if !ok {
			return query.Query{}, errors.New("invalid level: " + req.Level)
		}
		q.Level = l
	}
	if req.StartTime != nil || req.EndTime != nil {
		q.Range = &query.TimeRange{}
		if req.StartTime != nil {
			q.Range.Start = *req.StartTime
		}
		if req.EndTime != nil {
			q.Range.End = *req.EndTime
		}
		if !q.Range.Start.IsZero() && !q.Range.End.IsZero() && q.Range.End.Before(q.Range.Start) {
			return query.Query{}, errors.New("end_time is before start_time")
		}
	}
	return q, nil
}

func (a *API) storeFailure(c *gin.Context, operation string, err error) {
	kind, ok := types.KindOf(err)
	if !ok || kind != types.KindStoreTimeout {
		kind = types.KindStoreUnavailable
	}
	if a.Sink != nil {
		a.Sink.Report(kind, err)
	}

	log.Error().
		Str("component", "api").
		Str("operation", operation).
		Str("error_kind", string(kind)).
		Err(err).
		Msg("Log store request failed")

	status := http.StatusServiceUnavailable
	if kind == types.KindStoreTimeout {
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, models.ErrorResponse{Error: string(kind)})
}

func (a *API) submitLog(c *gin.Context) {
	var req models.LogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	entry, err := ingest.FromRequest(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	a.Queue.Add(entry)
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "message is empty"})
		return
	}
	c.JSON(http.StatusOK, assistant.Respond(req.Message))
}

func (a *API) getErrors(c *gin.Context) {
	counts := map[string]int64{}
	if a.Sink != nil {
		counts = a.Sink.Snapshot()
	}
	c.JSON(http.StatusOK, models.ErrorsResponse{Errors: counts})
}
