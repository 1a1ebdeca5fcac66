package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/campaign-radar/internal/auth"
	"github.com/david/campaign-radar/internal/ingest"
	"github.com/david/campaign-radar/internal/logger"
	"github.com/david/campaign-radar/internal/models"
	"github.com/david/campaign-radar/internal/scoring"
)

// CampaignSource is the aggregation entry point the handlers read from.
type CampaignSource interface {
	Get(ctx context.Context, forceRefresh bool) ([]models.Campaign, ingest.CollectReport)
	CollectSource(ctx context.Context, sourceID string) (ingest.SourceResult, error)
}

// ProfileStore persists user profiles. Profile routes exist only when one is configured.
type ProfileStore interface {
	GetOrCreateProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	AddCard(ctx context.Context, userID string, card models.Card) (*models.UserProfile, error)
	AddFavoriteStore(ctx context.Context, userID, store string) (*models.UserProfile, error)
	SetPlan(ctx context.Context, userID string, plan models.Plan) (*models.UserProfile, error)
}

type Summarizer interface {
	SummarizeAll(ctx context.Context, campaigns []models.Campaign)
}

type Options struct {
	Campaigns    CampaignSource
	Profiles     ProfileStore
	Summarizer   Summarizer
	Ranker       *scoring.Ranker
	JWTSecret    []byte
	ForcePlan    string
	AllowOrigins []string
	Log          *logger.Logger
	Now          func() time.Time
}

type Server struct {
	Echo *echo.Echo

	campaigns  CampaignSource
	profiles   ProfileStore
	summarizer Summarizer
	ranker     *scoring.Ranker
	secret     []byte
	forcePlan  string
	log        *logger.Logger
	now        func() time.Time
}

func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	allowedOrigins := opts.AllowOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	s := &Server{
		Echo:       e,
		campaigns:  opts.Campaigns,
		profiles:   opts.Profiles,
		summarizer: opts.Summarizer,
		ranker:     opts.Ranker,
		secret:     opts.JWTSecret,
		forcePlan:  opts.ForcePlan,
		log:        opts.Log,
		now:        opts.Now,
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.ranker == nil {
		s.ranker = &scoring.Ranker{Now: s.now}
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/campaigns", s.handleListCampaigns)
	api.POST("/rank", s.handleRank)
	api.POST("/missed-value", s.handleMissedValue)
	api.GET("/digest", s.handleDigest, auth.OptionalMiddleware(s.secret))

	protected := api.Group("")
	protected.Use(auth.Middleware(s.secret))
	protected.POST("/sources/:id/collect", s.handleCollectSource)

	if s.profiles == nil {
		return
	}
	me := api.Group("/me")
	me.Use(auth.Middleware(s.secret))
	me.GET("", s.handleGetProfile)
	me.GET("/top", s.handleTop)
	me.POST("/cards", s.handleAddCard)
	me.POST("/stores", s.handleAddStore)
	me.POST("/plan", s.handleSetPlan)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "campaign-radar"})
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
