package v1

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shenikar/waste_incident_sync/internal/models"
	"github.com/shenikar/waste_incident_sync/internal/query"
	"github.com/shenikar/waste_incident_sync/internal/service"
)

type liveStream struct {
	owner string
	view  *query.View
}

// liveStreams - открытые живые запросы по идентификатору потока
type liveStreams struct {
	mu      sync.Mutex
	streams map[string]liveStream
}

func newLiveStreams() *liveStreams {
	return &liveStreams{streams: make(map[string]liveStream)}
}

func (s *liveStreams) add(owner string, view *query.View) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[id] = liveStream{owner: owner, view: view}
	return id
}

// get возвращает представление, только если поток открыт тем же пользователем
func (s *liveStreams) get(owner, id string) (*query.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream, ok := s.streams[id]
	if !ok || stream.owner != owner {
		return nil, false
	}
	return stream.view, true
}

func (s *liveStreams) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.streams, id)
}

// @Summary Live filtered incidents
// @Description Server-sent events stream. Each "snapshot" event carries the full filtered result and is sent on every change. The "stream" field identifies the stream for PATCH /incidents/live/{stream}.
// @Tags Incidents
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Param q query string false "Text search"
// @Param status query string false "Status bucket" Enums(All, Pending, Resolved)
// @Param sort query string false "Sort mode" Enums(Newest, Oldest, Severity)
// @Param category query string false "Category"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD), inclusive"
// @Param lat query number false "Center latitude"
// @Param lon query number false "Center longitude"
// @Param radius query number false "Radius in meters"
// @Param mine query bool false "Only own reports"
// @Param group query string false "Grouping" Enums(none, day)
// @Success 200 {object} LiveEvent
// @Failure 400 {object} map[string]string "Invalid filter"
// @Router /incidents/live [get]
func (h *Handler) liveIncidents(c *gin.Context) {
	actor := identityFrom(c)
	log := h.logger.WithField("method", "liveIncidents").WithField("user_id", actor.UserID)

	filter, mine, err := parseFilter(c)
	if err != nil {
		writeError(c, log, err)
		return
	}
	byDay, err := parseGroup(c)
	if err != nil {
		writeError(c, log, err)
		return
	}

	scope := service.ScopeFor(actor, mine)
	view := query.NewView(h.openFeed(scope), filter)
	defer view.Close()

	streamID := h.streams.add(actor.UserID, view)
	defer h.streams.remove(streamID)

	results, unsubscribe := view.Subscribe()
	defer unsubscribe()

	log = log.WithField("stream", streamID)
	log.WithField("scope", scope.Key()).Info("Live query opened")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case res, ok := <-results:
			if !ok {
				return false
			}
			ev := ResultToLiveEvent(streamID, res)
			if byDay {
				ev.Groups = GroupsToResponse(res.Incidents, h.now())
			}
			c.SSEvent("snapshot", ev)
			return true
		}
	})
	log.Info("Live query closed")
}

// @Summary Change criteria of a live query
// @Description Changes the given criteria of an open live stream. Every changed criterion produces a recomputed "snapshot" event on that stream.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param stream path string true "Stream ID from the live event"
// @Param patch body LiveFilterPatch true "Changed criteria"
// @Success 200 {object} LiveFilterResponse
// @Failure 400 {object} map[string]string "Invalid filter"
// @Failure 404 {object} map[string]string "Stream not found"
// @Router /incidents/live/{stream} [patch]
func (h *Handler) updateLiveFilter(c *gin.Context) {
	actor := identityFrom(c)
	streamID := c.Param("stream")
	log := h.logger.WithField("method", "updateLiveFilter").WithField("stream", streamID)

	view, ok := h.streams.get(actor.UserID, streamID)
	if !ok {
		writeError(c, log, fmt.Errorf("live stream %s: %w", streamID, models.ErrNotFound))
		return
	}

	var patch LiveFilterPatch
	if !h.bind(c, log, &patch) {
		return
	}
	next, err := applyPatch(view.Filter(), patch)
	if err != nil {
		writeError(c, log, err)
		return
	}

	if patch.Q != nil {
		view.SetText(next.Text)
	}
	if patch.Status != nil {
		view.SetBucket(next.Bucket)
	}
	if patch.Sort != nil {
		view.SetSort(next.Sort)
	}
	if patch.Category != nil {
		view.SetCategory(next.Category)
	}
	if patch.ClearRange || patch.From != nil || patch.To != nil {
		view.SetRange(next.Range)
	}
	if patch.ClearNear || patch.Near != nil {
		view.SetNear(next.Near)
	}

	log.Info("Live query criteria changed")
	resp := LiveFilterResponse{Stream: streamID}
	if res, ok := view.Current(); ok {
		resp.Version = res.Version
		resp.Count = len(res.Incidents)
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Live incident statistics
// @Description Server-sent events stream of "stats" events recomputed on every change. Shares the remote subscription with other live queries over the same incident set.
// @Tags Incidents
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Success 200 {object} LiveStatsEvent
// @Router /incidents/stats/live [get]
func (h *Handler) liveStats(c *gin.Context) {
	actor := identityFrom(c)
	log := h.logger.WithField("method", "liveStats").WithField("user_id", actor.UserID)

	scope := service.ScopeFor(actor, false)
	view := query.NewView(h.openFeed(scope), query.Filter{})
	defer view.Close()

	results, unsubscribe := view.Subscribe()
	defer unsubscribe()

	log.WithField("scope", scope.Key()).Info("Live stats opened")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case res, ok := <-results:
			if !ok {
				return false
			}
			c.SSEvent("stats", ResultToLiveStatsEvent(res, h.now()))
			return true
		}
	})
	log.Info("Live stats closed")
}
