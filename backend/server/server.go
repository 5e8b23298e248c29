package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jghoshh/arise/backend/queue"
	authservice "github.com/jghoshh/arise/backend/server/auth"
	"github.com/jghoshh/arise/backend/store"
)

// contextKey is the private type for values this package stores in a request
// context.
type contextKey string

// userEmailKey is the context key under which the JWT middleware stores the
// authenticated user's email.
const userEmailKey contextKey = "userEmail"

// Server holds the injected dependencies of the API: the document store
// adapter, the auth service, and the optional reward notification queue.
// Everything is constructed once in RunBackend; there are no package-level
// singletons.
type Server struct {
	store      *store.Store
	auth       *authservice.Auth
	rewards    *queue.Queue
	signingKey string
}

// NewServer wires a Server from its dependencies. rewards may be nil when no
// message broker is configured; level-up notifications are then skipped.
func NewServer(st *store.Store, auth *authservice.Auth, rewards *queue.Queue, signingKey string) *Server {
	return &Server{
		store:      st,
		auth:       auth,
		rewards:    rewards,
		signingKey: signingKey,
	}
}

// emailFromContext returns the authenticated email injected by the JWT
// middleware, or "" when the request carried no valid session.
func emailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(userEmailKey).(string)
	return email
}

// jwtMiddleware reads the bearer token from the Authorization header and, if
// it verifies against the signing key, injects the email claim into the
// request context. It never rejects a request itself: handlers that need a
// session check the context and answer 401, so public routes can share the
// chain.
func (s *Server) jwtMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			splitToken := strings.Split(authHeader, "Bearer ")
			if len(splitToken) == 2 {
				token, err := jwt.Parse(splitToken[1], func(token *jwt.Token) (interface{}, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
					}
					return []byte(s.signingKey), nil
				})
				if err != nil {
					log.Println("JWT token validation error:", err)
				} else if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
					if email, ok := claims["email"].(string); ok && email != "" {
						ctx := context.WithValue(r.Context(), userEmailKey, email)
						r = r.WithContext(ctx)
					}
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and provides a generic error message to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %s\n", err)
				writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Router builds the full middleware and route chain of the API.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/auth/signup", s.handleSignUp).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/signin", s.handleSignIn).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/signout", s.handleSignOut).Methods(http.MethodPost)
	r.HandleFunc("/api/user/stats", s.handleGetStats).Methods(http.MethodGet)
	r.HandleFunc("/api/user/quests", s.handleGetQuests).Methods(http.MethodGet)
	r.HandleFunc("/api/quests/complete", s.handleCompleteTask).Methods(http.MethodPost)
	r.HandleFunc("/api/quests/update", s.handleUpdateQuests).Methods(http.MethodPost)

	// Apply the CORS middleware to the router
	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})

	corsRouter := handlers.CORS(corsOrigins, corsMethods, corsHeaders)(r)

	return handlers.LoggingHandler(os.Stdout, recoveryMiddleware(s.jwtMiddleware(corsRouter)))
}

// Start runs the API server at serverURL until the context is cancelled.
func (s *Server) Start(ctx context.Context, serverURL string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}

	httpServer := &http.Server{
		Handler:      s.Router(),
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down server: %v", err)
		}
	}()

	log.Printf("arise listening on %s", u.Host)
	err = httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
