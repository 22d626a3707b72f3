package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"coursehub/internal/access"
	"coursehub/internal/models"
	"coursehub/internal/redis"
	"coursehub/internal/service/account"
)

const (
	redisTokenPrefix = "auth:token:"
	redisUserPrefix  = "auth:user:"
)

var (
	ErrTokenRequired = errors.New("token required")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
)

// UserLookup resolves the user record behind a token.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// Service issues, validates, and revokes user authentication tokens.
type Service struct {
	db             *sql.DB
	cache          *redis.Client
	users          UserLookup
	tokenTTL       time.Duration
	cookieName     string
	headerName     string
	csrfCookieName string
	csrfHeaderName string
}

// NewService constructs an auth service with the supplied token lifetime. cache may be nil.
func NewService(db *sql.DB, cache *redis.Client, users UserLookup, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		db:             db,
		cache:          cache,
		users:          users,
		tokenTTL:       ttl,
		cookieName:     "auth_token",
		headerName:     "Authorization",
		csrfCookieName: "csrf_token",
		csrfHeaderName: "X-CSRF-Token",
	}
}

// IssueToken mints a new random token for the user and persists it.
func (s *Service) IssueToken(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", errors.New("invalid user id")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	var lastErr error
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return "", err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO user_tokens (token, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
			token, userID, now, expiresAt,
		)
		if err == nil {
			s.cacheToken(ctx, token, userID, s.tokenTTL)
			return token, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("could not issue token: %w", lastErr)
}

// NewCSRFToken returns a random token used for CSRF protection.
func (s *Service) NewCSRFToken() (string, error) {
	return generateToken()
}

// ValidateToken verifies the token exists and has not expired, returning the user id.
func (s *Service) ValidateToken(ctx context.Context, authToken string) (string, error) {
	if authToken == "" {
		return "", ErrTokenRequired
	}
	if s.cache != nil {
		if userID, err := s.cache.Get(ctx, redisTokenPrefix+authToken); err == nil && userID != "" {
			return userID, nil
		} else if err != nil && err != redis.ErrCacheMiss {
			log.Printf("auth token cache lookup failed: %v", err)
		}
	}

	var (
		userID  string
		expires time.Time
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, expires_at FROM user_tokens WHERE token = ?`, authToken,
	).Scan(&userID, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("lookup token: %w", err)
	}
	remaining := time.Until(expires)
	if remaining <= 0 {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE token = ?`, authToken)
		return "", ErrTokenExpired
	}
	s.cacheToken(ctx, authToken, userID, remaining)
	return userID, nil
}

// Session resolves a token into the viewer session evaluated by the access gate.
// An empty token yields an empty session and no error.
func (s *Service) Session(ctx context.Context, authToken string) (access.Session, error) {
	if authToken == "" {
		return access.Session{}, nil
	}
	userID, err := s.ValidateToken(ctx, authToken)
	if err != nil {
		return access.Session{}, err
	}
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return access.Session{}, err
	}
	if user == nil {
		// the account is gone; the token must go too
		_ = s.RevokeToken(ctx, authToken)
		return access.Session{}, ErrInvalidToken
	}
	return access.Session{Token: authToken, User: user}, nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (*models.User, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, redisUserPrefix+userID); err == nil {
			var user models.User
			if err := json.Unmarshal([]byte(raw), &user); err == nil {
				return &user, nil
			}
			log.Printf("auth user cache decode failed: %v", err)
		}
	}
	if s.users == nil {
		return nil, errors.New("user lookup not configured")
	}
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, account.ErrNotFound) || (err == nil && user == nil) {
		return nil, nil
	}
	if err != nil {
		// the token stays valid; only a confirmed missing account revokes it
		return nil, fmt.Errorf("load user: %w", err)
	}
	if s.cache != nil {
		if data, err := json.Marshal(user); err == nil {
			if err := s.cache.Set(ctx, redisUserPrefix+userID, data, s.tokenTTL); err != nil {
				log.Printf("auth user cache failed: %v", err)
			}
		}
	}
	return user, nil
}

// ForgetUser drops the cached user record, e.g. after the profile changed or the user was deleted.
func (s *Service) ForgetUser(ctx context.Context, userID string) {
	if s.cache == nil || userID == "" {
		return
	}
	if err := s.cache.Del(ctx, redisUserPrefix+userID); err != nil {
		log.Printf("auth forget user failed: %v", err)
	}
}

// RefreshToken swaps a valid token for a fresh one.
func (s *Service) RefreshToken(ctx context.Context, authToken string) (string, error) {
	userID, err := s.ValidateToken(ctx, authToken)
	if err != nil {
		return "", err
	}
	fresh, err := s.IssueToken(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := s.RevokeToken(ctx, authToken); err != nil {
		return "", err
	}
	return fresh, nil
}

// RevokeToken deletes a single token.
func (s *Service) RevokeToken(ctx context.Context, authToken string) error {
	if authToken == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE token = ?`, authToken); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.uncacheTokens(ctx, authToken)
	return nil
}

// RevokeUserTokens removes all tokens belonging to the user.
func (s *Service) RevokeUserTokens(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	tokens, err := s.userTokens(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	s.uncacheTokens(ctx, tokens...)
	s.ForgetUser(ctx, userID)
	return nil
}

func (s *Service) userTokens(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT token FROM user_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user tokens: %w", err)
	}
	defer rows.Close()
	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// PurgeExpired deletes expired tokens and reports how many were removed.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// StartJanitor periodically purges expired tokens until ctx is done.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.PurgeExpired(ctx); err != nil {
					log.Printf("purge expired tokens error: %v", err)
				}
			}
		}
	}()
}

func (s *Service) cacheToken(ctx context.Context, token, userID string, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, redisTokenPrefix+token, userID, ttl); err != nil {
		log.Printf("auth token cache failed: %v", err)
	}
}

func (s *Service) uncacheTokens(ctx context.Context, tokens ...string) {
	if s.cache == nil || len(tokens) == 0 {
		return
	}
	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		keys = append(keys, redisTokenPrefix+t)
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		log.Printf("auth token uncache failed: %v", err)
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// AuthCookieName returns the cookie name storing auth tokens.
func (s *Service) AuthCookieName() string {
	return s.cookieName
}

// CSRFCookieName returns the cookie used for CSRF tokens.
func (s *Service) CSRFCookieName() string {
	return s.csrfCookieName
}

// CSRFHeaderName returns the CSRF header name.
func (s *Service) CSRFHeaderName() string {
	return s.csrfHeaderName
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}
