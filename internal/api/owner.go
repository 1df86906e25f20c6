package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/internal/store"
)

const invalidLink = "this link is invalid or has expired"

// ownerView is what the owner sees behind an onboarding link.
type ownerView struct {
	ID                  string     `json:"id"`
	Name                string     `json:"facility_name"`
	City                string     `json:"city"`
	Jurisdiction        string     `json:"state"`
	Slug                string     `json:"slug"`
	Phone               string     `json:"phone,omitempty"`
	Address             string     `json:"address,omitempty"`
	Tier                model.Tier `json:"sponsor_tier"`
	ViolationCount      *int       `json:"violation_count"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
	WebsiteURL          string     `json:"website_url"`
	ContactEmail        string     `json:"contact_email"`
	Description         string     `json:"facility_description"`
	ResponseText        string     `json:"facility_response,omitempty"`
}

func newOwnerView(f *model.Facility) ownerView {
	return ownerView{
		ID:                  f.ID,
		Name:                f.Name,
		City:                f.City,
		Jurisdiction:        f.Jurisdiction,
		Slug:                f.Slug,
		Phone:               f.Phone,
		Address:             f.Address,
		Tier:                f.SponsorTier,
		ViolationCount:      f.ViolationCount,
		OnboardingCompleted: f.OnboardingCompleted,
		WebsiteURL:          f.WebsiteURL,
		ContactEmail:        f.ContactEmail,
		Description:         f.Description,
		ResponseText:        f.ResponseText,
	}
}

// Only enhancement fields are decoded; anything else in the body, such as a
// tier, is dropped.
type onboardRequest struct {
	WebsiteURL   *string `json:"website_url"`
	ContactEmail *string `json:"contact_email"`
	Description  *string `json:"facility_description"`
}

type responseRequest struct {
	ResponseText *string `json:"facility_response"`
}

// ownerFacility resolves the token in the path. It writes the error response
// and returns nil when the link is not usable.
func (s *Server) ownerFacility(w http.ResponseWriter, r *http.Request, need model.Tier) *model.Facility {
	f, err := s.opts.Owners.FacilityByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, invalidLink)
			return nil
		}
		zap.L().Error("api: owner token lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return nil
	}
	if need != "" && f.SponsorTier != need {
		writeError(w, http.StatusNotFound, invalidLink)
		return nil
	}
	return f
}

func (s *Server) saveEnhancements(w http.ResponseWriter, r *http.Request, f *model.Facility, e store.Enhancements) {
	if err := s.opts.Owners.UpdateEnhancements(r.Context(), f.ID, e); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, invalidLink)
			return
		}
		zap.L().Error("api: save owner changes failed", zap.String("facility_id", f.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save changes")
		return
	}
	zap.L().Info("api: owner changes saved", zap.String("facility_id", f.ID))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleGetOnboard(w http.ResponseWriter, r *http.Request) {
	if f := s.ownerFacility(w, r, ""); f != nil {
		writeJSON(w, http.StatusOK, newOwnerView(f))
	}
}

func (s *Server) handleOnboard(w http.ResponseWriter, r *http.Request) {
	f := s.ownerFacility(w, r, "")
	if f == nil {
		return
	}
	var req onboardRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var e store.Enhancements
	if req.WebsiteURL != nil {
		site, err := cleanWebsite(*req.WebsiteURL)
		if err != nil {
			writeError(w, http.StatusBadRequest, "website_url must be an http or https URL")
			return
		}
		e.WebsiteURL = &site
	}
	if req.ContactEmail != nil {
		email, err := cleanEmail(*req.ContactEmail)
		if err != nil {
			writeError(w, http.StatusBadRequest, "contact_email is not a valid address")
			return
		}
		e.ContactEmail = &email
	}
	if req.Description != nil {
		desc := model.TruncateRunes(strings.TrimSpace(*req.Description), model.MaxDescriptionLength)
		e.Description = &desc
	}
	s.saveEnhancements(w, r, f, e)
}

func (s *Server) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	if f := s.ownerFacility(w, r, model.TierResponseOnly); f != nil {
		writeJSON(w, http.StatusOK, newOwnerView(f))
	}
}

func (s *Server) handleResponse(w http.ResponseWriter, r *http.Request) {
	f := s.ownerFacility(w, r, model.TierResponseOnly)
	if f == nil {
		return
	}
	var req responseRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var e store.Enhancements
	if req.ResponseText != nil {
		text := model.TruncateRunes(strings.TrimSpace(*req.ResponseText), model.MaxResponseLength)
		e.ResponseText = &text
	}
	s.saveEnhancements(w, r, f, e)
}

// cleanWebsite trims raw and checks it is an absolute http(s) URL. An empty
// value clears the field.
func cleanWebsite(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", eris.Errorf("not an http url: %q", raw)
	}
	return u.String(), nil
}

// cleanEmail returns the bare address in raw. An empty value clears the field.
func cleanEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}
