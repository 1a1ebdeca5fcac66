package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/david/campaign-radar/internal/auth"
	"github.com/david/campaign-radar/internal/models"
	"github.com/david/campaign-radar/internal/scoring"
)

// resolvePlan applies a configured plan override before the stored plan.
func resolvePlan(forcePlan string, profile *models.UserProfile) models.Plan {
	if forced, ok := models.ParsePlan(strings.ToLower(strings.TrimSpace(forcePlan))); ok {
		return forced
	}
	if profile == nil {
		return models.PlanFree
	}
	if plan, ok := models.ParsePlan(string(profile.Plan)); ok {
		return plan
	}
	return models.PlanFree
}

func (s *Server) currentProfile(c echo.Context) (*models.UserProfile, error) {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	if s.profiles == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, errNoProfiles.Error())
	}
	profile, err := s.profiles.GetOrCreateProfile(c.Request().Context(), userID)
	if err != nil {
		s.log.Error("failed to load profile", "user_id", userID, "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load profile")
	}
	return profile, nil
}

type profileResponse struct {
	*models.UserProfile
	EffectivePlan models.Plan `json:"effective_plan"`
	MissedValue   int         `json:"missed_value"`
}

func (s *Server) profileJSON(c echo.Context, profile *models.UserProfile) error {
	return c.JSON(http.StatusOK, profileResponse{
		UserProfile:   profile,
		EffectivePlan: resolvePlan(s.forcePlan, profile),
		MissedValue:   scoring.EstimateMissedValue(profile.View()),
	})
}

func (s *Server) handleGetProfile(c echo.Context) error {
	profile, err := s.currentProfile(c)
	if err != nil {
		return err
	}
	return s.profileJSON(c, profile)
}

func (s *Server) handleAddCard(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var card models.Card
	if err := c.Bind(&card); err != nil || strings.TrimSpace(card.Name) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "card name is required"})
	}

	profile, err := s.profiles.AddCard(c.Request().Context(), userID, card)
	if err != nil {
		s.log.Error("failed to add card", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to add card"})
	}
	return s.profileJSON(c, profile)
}

type storeRequest struct {
	Store string `json:"store"`
}

func (s *Server) handleAddStore(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req storeRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Store) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "store is required"})
	}

	profile, err := s.profiles.AddFavoriteStore(c.Request().Context(), userID, req.Store)
	if err != nil {
		s.log.Error("failed to add store", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to add store"})
	}
	return s.profileJSON(c, profile)
}

type planRequest struct {
	Plan string `json:"plan"`
}

func (s *Server) handleSetPlan(c echo.Context) error {
	userID, err := auth.UserIDFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
	}

	var req planRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	plan, ok := models.ParsePlan(strings.ToLower(strings.TrimSpace(req.Plan)))
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "plan must be free or paid"})
	}

	profile, err := s.profiles.SetPlan(c.Request().Context(), userID, plan)
	if err != nil {
		s.log.Error("failed to set plan", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to set plan"})
	}
	return s.profileJSON(c, profile)
}
