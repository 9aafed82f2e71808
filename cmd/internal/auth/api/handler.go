package authapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"authsidecar/cmd/identity"
	"authsidecar/cmd/internal/auth/session"
)

// Route suffixes under Config.BasePath.
const (
	PathSignup  = "/signup"
	PathSignin  = "/signin"
	PathSession = "/session"
	PathSignout = "/signout"
)

// Service is the session engine the handler drives.
type Service interface {
	Signup(ctx context.Context, in session.SignupInput) (identity.Account, error)
	Signin(ctx context.Context, email, secret string) (session.Authenticated, error)
	ResolveSession(ctx context.Context, token string) (session.Authenticated, error)
	Signout(ctx context.Context, token string) error
}

// Handler wires HTTP auth endpoints to the session service.
type Handler struct {
	log *slog.Logger
	cfg Config
	svc Service
	now func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides the clock used for cookie Max-Age.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, svc Service, cfg Config, opts ...HandlerOption) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}

	h := &Handler{
		log: log,
		cfg: cfg,
		svc: svc,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h
}

// Register wires auth routes onto r under the configured base path.
func (h *Handler) Register(r chi.Router) {
	if h == nil || r == nil {
		return
	}
	base := h.cfg.BasePath
	r.Post(base+PathSignup, h.handleSignup)
	r.Post(base+PathSignin, h.handleSignin)
	r.Get(base+PathSession, h.handleSession)
	r.Post(base+PathSignout, h.handleSignout)
}

// Endpoints lists the mounted routes for the service index.
func (h *Handler) Endpoints() map[string]string {
	base := h.cfg.BasePath
	return map[string]string{
		"signup":  http.MethodPost + " " + base + PathSignup,
		"signin":  http.MethodPost + " " + base + PathSignin,
		"session": http.MethodGet + " " + base + PathSession,
		"signout": http.MethodPost + " " + base + PathSignout,
	}
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, session.Code(session.ErrInvalidInput), bodyErrorMessage(err))
		return
	}

	acct, err := h.svc.Signup(r.Context(), session.SignupInput{
		Email:       req.Email,
		Secret:      req.Password,
		DisplayName: req.Name,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, signupResponse{
		Success: true,
		User:    toUserResponse(acct),
	})
}

func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, session.Code(session.ErrInvalidInput), bodyErrorMessage(err))
		return
	}

	out, err := h.svc.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.setSessionCookie(w, out.Session.Token, out.Session.ExpiresAt, h.now())
	writeJSON(w, http.StatusOK, signinResponse{
		Success: true,
		User:    toUserResponse(out.Account),
		Session: toSessionBriefResponse(out.Session),
	})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.ResolveSession(r.Context(), h.presentedToken(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Session: toSessionDetailResponse(out.Session),
		User:    toUserDetailResponse(out.Account),
	})
}

// handleSignout always clears the cookie and reports success. A store failure
// leaves the row to expire on its own and is only logged.
func (h *Handler) handleSignout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Signout(r.Context(), h.presentedToken(r)); err != nil {
		h.log.Warn("auth.signout.fail", "code", session.Code(err), "err", err)
	}

	h.expireSessionCookie(w)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
