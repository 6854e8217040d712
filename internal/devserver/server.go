package devserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/MrEthical07/authstate/apiclient"
	"github.com/MrEthical07/authstate/internal/rate"
	"github.com/MrEthical07/authstate/jwt"
	"github.com/MrEthical07/authstate/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Server serves the session API.
type Server struct {
	users   *Users
	signer  *jwt.Manager
	logger  *slog.Logger
	limiter *rate.Limiter
}

// Option configures a [Server].
type Option func(*Server)

// WithSignInLimiter refuses sign-ins with 429 once limiter reports the
// email or client IP over budget.
func WithSignInLimiter(limiter *rate.Limiter) Option {
	return func(s *Server) { s.limiter = limiter }
}

func New(users *Users, signer *jwt.Manager, logger *slog.Logger, opts ...Option) (*Server, error) {
	if users == nil {
		return nil, errors.New("devserver: nil users")
	}
	if signer == nil {
		return nil, errors.New("devserver: nil signer")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{users: users, signer: signer, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Routes mounts the API on a chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	r.Post(apiclient.SessionsPath, s.CreateSession)
	r.With(middleware.RequireBearer(s.signer)).Get(apiclient.MePath, s.Me)

	return r
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var creds apiclient.Credentials
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "bad body")
		return
	}

	ip := clientIP(r)
	if s.limiter != nil {
		if err := s.limiter.Check(r.Context(), creds.Email, ip); err != nil {
			s.writeLimiterError(w, creds.Email, err)
			return
		}
	}

	acc, ok := s.users.Authenticate(creds.Email, creds.Password)
	if !ok {
		s.logger.Info("devserver: credentials rejected", slog.String("email", creds.Email))
		if s.limiter != nil {
			if err := s.limiter.RecordFailure(r.Context(), creds.Email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
				s.logger.Warn("devserver: record failed sign-in", slog.Any("error", err))
			}
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if s.limiter != nil {
		if err := s.limiter.Reset(r.Context(), acc.Email); err != nil {
			s.logger.Warn("devserver: reset sign-in counter", slog.Any("error", err))
		}
	}

	token, err := s.signer.CreateAccess(acc.Email, uuid.NewString(), acc.Email, acc.Permissions, acc.Roles)
	if err != nil {
		s.logger.Error("devserver: sign token", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "token issue failed")
		return
	}

	writeJSON(w, http.StatusOK, apiclient.SessionResponse{
		Token:        token,
		RefreshToken: uuid.NewString(),
		Permissions:  acc.Permissions,
		Roles:        acc.Roles,
	})
}

// Me handles GET /me. It answers from the account table, so grant changes
// are visible before the token expires.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	acc, ok := s.users.Lookup(claims.Subject)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown account")
		return
	}
	writeJSON(w, http.StatusOK, apiclient.Profile{
		Email:       acc.Email,
		Permissions: acc.Permissions,
		Roles:       acc.Roles,
	})
}

func (s *Server) writeLimiterError(w http.ResponseWriter, email string, err error) {
	if errors.Is(err, rate.ErrRateLimited) {
		s.logger.Info("devserver: sign-in throttled", slog.String("email", email))
		writeError(w, http.StatusTooManyRequests, "too many attempts")
		return
	}
	s.logger.Error("devserver: sign-in limiter", slog.Any("error", err))
	writeError(w, http.StatusServiceUnavailable, "limiter unavailable")
}

// clientIP reads RemoteAddr, which chi's RealIP middleware has already
// replaced with X-Forwarded-For or X-Real-IP when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
