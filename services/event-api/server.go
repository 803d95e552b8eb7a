package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"eventscout/common/cache"
	"eventscout/common/calendar"
	"eventscout/common/extractor"
	"eventscout/common/fetcher"
	"eventscout/common/metrics"
	"eventscout/common/models"
	_ "eventscout/services/event-api/docs"
)

// @title        Event API
// @version      1.0
// @description  Finds recent events and extracts structured event records from event pages

// @license.name MIT
// @license.url  https://opensource.org/licenses/MIT

// @BasePath  /

const searchFailure = "Failed to get search results from Metaphor"

// EventSearcher finds recent events.
type EventSearcher interface {
	Recent(ctx context.Context) (models.SearchResults, error)
}

// DocumentFetcher retrieves one document by id.
type DocumentFetcher interface {
	Fetch(ctx context.Context, id string) (models.Document, error)
}

// EventExtractor turns a document into an event.
type EventExtractor interface {
	Extract(ctx context.Context, doc models.Document) (models.Event, error)
}

// Server binds the components to HTTP routes. All dependencies are injected.
type Server struct {
	Search       EventSearcher
	Fetcher      DocumentFetcher
	Extractor    EventExtractor
	Cache        *cache.Cache[models.Event]
	EventTTL     time.Duration
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	AllowOrigins []string
	Now          func() time.Time
}

// Router builds the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	if s.Now == nil {
		s.Now = time.Now
	}
	if len(s.AllowOrigins) == 0 {
		s.AllowOrigins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(s.Logger), s.Metrics.Middleware())

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     s.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders:    []string{"Content-Length", requestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger documentation
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"service": "event-api",
		})
	})
	router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))

	router.GET("/", s.handleSearch)
	router.GET("/event", s.handleEvent)
	router.GET("/event.ics", s.handleEventICS)
	router.POST("/rec", s.handleRec)

	return router
}

// handleSearch returns recent events from the search provider
//
// @Summary      Recent events
// @Description  Searches for recent events and returns the raw result list
// @Tags         search
// @Produce      json,plain
// @Success      200  {array}   object
// @Failure      500  {string}  string
// @Router       / [get]
func (s *Server) handleSearch(c *gin.Context) {
	results, err := s.Search.Recent(c.Request.Context())
	if err != nil {
		s.Logger.Error("search failed", "err", err, "request_id", c.GetString(requestIDKey))
		c.String(http.StatusInternalServerError, searchFailure)
		return
	}
	c.JSON(http.StatusOK, results)
}

// handleEvent extracts the event described by one document
//
// @Summary      Extract event
// @Description  Fetches one document and extracts a structured event from it
// @Tags         event
// @Produce      json
// @Param        id   query     string  true  "Document id"
// @Success      200  {object}  models.Event
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /event [get]
func (s *Server) handleEvent(c *gin.Context) {
	ev, ok := s.eventFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ev)
}

// handleEventICS is handleEvent rendered as iCalendar
//
// @Summary      Extract event as iCalendar
// @Description  Same as /event, rendered as an iCalendar file
// @Tags         event
// @Produce      text/calendar
// @Param        id   query     string  true  "Document id"
// @Success      200  {string}  string
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      422  {object}  models.ErrorResponse
// @Failure      500  {object}  models.ErrorResponse
// @Router       /event.ics [get]
func (s *Server) handleEventICS(c *gin.Context) {
	ev, ok := s.eventFor(c)
	if !ok {
		return
	}
	body, err := calendar.Render(ev, s.Now())
	if err != nil {
		abortWithError(c, http.StatusUnprocessableEntity, "Event has no usable date", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="event.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// handleRec is reserved for similar-link recommendations
//
// @Summary      Recommendations
// @Description  Similar-link recommendations. Not implemented.
// @Tags         search
// @Produce      json
// @Failure      501  {object}  models.ErrorResponse
// @Router       /rec [post]
func (s *Server) handleRec(c *gin.Context) {
	abortWithError(c, http.StatusNotImplemented, "Recommendations are not implemented", nil)
}

// eventFor resolves the id query parameter to an Event, consulting the cache first.
// On failure it writes the error response and returns false.
func (s *Server) eventFor(c *gin.Context) (models.Event, bool) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		abortWithError(c, http.StatusBadRequest, "Query parameter 'id' is required", nil)
		return models.Event{}, false
	}

	key := cache.Key("event", id)
	if ev, ok := s.Cache.Get(key); ok {
		s.Metrics.CacheLookup("/event", true)
		return ev, true
	}
	s.Metrics.CacheLookup("/event", false)

	ctx := c.Request.Context()
	log := s.Logger.With("id", id, "request_id", c.GetString(requestIDKey))

	doc, err := s.Fetcher.Fetch(ctx, id)
	if err != nil {
		log.Error("fetch failed", "err", err)
		switch {
		case errors.Is(err, fetcher.ErrMissingID):
			abortWithError(c, http.StatusBadRequest, "Query parameter 'id' is required", err)
		case errors.Is(err, fetcher.ErrNotFound):
			abortWithError(c, http.StatusNotFound, "Document not found", err)
		default:
			abortWithError(c, http.StatusInternalServerError, "Failed to fetch document", err)
		}
		return models.Event{}, false
	}

	ev, err := s.Extractor.Extract(ctx, doc)
	if err != nil {
		log.Error("extraction failed", "err", err, "schema", errors.Is(err, extractor.ErrSchema))
		abortWithError(c, http.StatusInternalServerError, "Failed to extract event", err)
		return models.Event{}, false
	}

	s.Cache.Set(key, ev, s.EventTTL)
	log.Info("event extracted", "year", ev.Year, "month", ev.Month, "day", ev.Day)
	return ev, true
}

func abortWithError(c *gin.Context, status int, message string, err error) {
	resp := models.ErrorResponse{
		Status:  status,
		Message: message,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.AbortWithStatusJSON(status, resp)
}
