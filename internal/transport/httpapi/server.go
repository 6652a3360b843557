package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"market-delivery/internal/auth"
	"market-delivery/internal/domain"
	"market-delivery/internal/logger"
	"market-delivery/internal/service"
	"market-delivery/internal/transport"
)

type Server struct {
	svc  *service.Service
	auth *auth.Authenticator
}

func NewServer(svc *service.Service, authenticator *auth.Authenticator, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{svc: svc, auth: authenticator}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.Std(), NoColor: true}))

	r.Post("/auth/token", s.handleIssueToken)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/delivery/config", s.handleDeliveryConfig)
		r.Get("/delivery/eta", s.handleEstimateTime)
		r.Get("/coverage", s.handleCoverage)

		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(domain.RoleCustomer, domain.RoleBusiness))
			r.Post("/orders/calculate-delivery", s.handleCalculateDelivery)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireRole(domain.RoleCustomer))
			r.Post("/cart/price", s.handlePriceCart)
			r.Post("/orders/{id}/regret", s.handleStartRegret)
			r.Get("/orders/{id}/regret", s.handleRegretStatus)
			r.Delete("/orders/{id}/regret", s.handleRegret)
			r.Post("/orders/{id}/confirm", s.handleConfirm)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireRole(domain.RoleAdmin))
		r.Get("/tariff", s.handleGetTariffRecord)
		r.Put("/tariff", s.handleUpdateTariff)
	})

	return r
}

func (s *Server) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := s.auth.Authorize(r.Header.Get("Authorization"), roles...)
			if err != nil {
				writeError(w, err)
				return
			}
			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	token, exp, err := s.auth.IssueToken(req.Name, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": exp,
	})
}

func (s *Server) handleDeliveryConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"config":  transport.FromTariff(s.svc.GetTariff(r.Context())),
	})
}

func (s *Server) handleCalculateDelivery(w http.ResponseWriter, r *http.Request) {
	var req transport.CalculateDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelopeError(w, domain.ErrInvalid)
		return
	}
	business, delivery := req.Locations()
	quote, err := s.svc.QuoteDelivery(r.Context(), business, delivery)
	if err != nil {
		writeEnvelopeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromDeliveryQuote(quote))
}

func (s *Server) handleEstimateTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	km, err := strconv.ParseFloat(q.Get("distanceKm"), 64)
	if err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	var prep *float64
	if v := q.Get("prepTime"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			writeError(w, domain.ErrInvalid)
			return
		}
		prep = &p
	}
	minutes, err := s.svc.EstimateDeliveryTime(km, prep)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"etaMinutes": minutes})
}

func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocationQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	in, err := s.svc.CheckCoverage(loc)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"inCoverage": in})
}

func (s *Server) handlePriceCart(w http.ResponseWriter, r *http.Request) {
	var req transport.CartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	items, priceReq := transport.ToCartInput(req)
	quote, err := s.svc.PriceCart(r.Context(), items, priceReq)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromCartQuote(quote))
}

func (s *Server) handleStartRegret(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.StartRegretWindow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transport.FromRegretStatus(st))
}

func (s *Server) handleRegretStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.GetRegretStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromRegretStatus(st))
}

func (s *Server) handleRegret(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.RegretOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromDecision(d))
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.ConfirmOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromDecision(d))
}

func (s *Server) handleGetTariffRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.TariffRecord(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromTariffRecord(rec))
}

func (s *Server) handleUpdateTariff(w http.ResponseWriter, r *http.Request) {
	claims := mustClaims(r)
	var req transport.TariffResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalid)
		return
	}
	rec, err := s.svc.UpdateTariff(r.Context(), claims.Subject, transport.ToTariff(req))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transport.FromTariffRecord(rec))
}

func mustClaims(r *http.Request) *auth.Claims {
	claims, _ := auth.ClaimsFromContext(r.Context())
	return claims
}

func parseLocationQuery(r *http.Request) (domain.Location, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return domain.Location{}, domain.ErrInvalid
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil {
		return domain.Location{}, domain.ErrInvalid
	}
	return domain.Location{Lat: lat, Lng: lng}, nil
}
