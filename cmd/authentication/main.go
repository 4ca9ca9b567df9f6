// This is a **mock authentication service**, issuing JWT tokens for the
// staffing service during development. The caller picks the user id.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gartstein/staffing/internal/staffing/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPort   = "8081"
	defaultSecret = "change-me"
)

// TokenResponse represents the response structure
type TokenResponse struct {
	Token     string    `json:"token"`
	Subject   string    `json:"sub"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type tokenHandler struct {
	secret string
	logger *zap.Logger
}

// ServeHTTP signs a token for the user id given in the "sub" query parameter.
func (h *tokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := uuid.Parse(r.URL.Query().Get("sub"))
	if err != nil {
		http.Error(w, "sub must be a user UUID", http.StatusBadRequest)
		return
	}

	token, err := auth.GenerateToken(userID, h.secret)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	resp := TokenResponse{
		Token:     token,
		Subject:   userID.String(),
		ExpiresAt: time.Now().Add(auth.TokenTTL).UTC(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn("Failed to encode token", zap.Error(err))
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewExample()
	}
	defer func() { _ = logger.Sync() }()

	port := getenv("AUTH_PORT", defaultPort)
	mux := http.NewServeMux()
	mux.Handle("/token", &tokenHandler{secret: getenv("JWT_SECRET", defaultSecret), logger: logger})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("Authentication service running", zap.String("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Authentication service failed", zap.Error(err))
	}
}
