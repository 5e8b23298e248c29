// Package auth issues and verifies the JWT sessions behind the API, backed by
// the same user documents the rest of the application reads. It replaces the
// hosted identity provider the product originally leaned on: the account key
// is still the user's email.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/jghoshh/arise/backend/models"
	storage "github.com/jghoshh/arise/backend/storage/persistent"
	"github.com/jghoshh/arise/lib/utils"
	"golang.org/x/crypto/bcrypt"
)

// accessTokenTTL bounds how long an access token is honored; clients are
// expected to refresh with the longer-lived refresh token.
const accessTokenTTL = 15 * time.Minute

// refreshTokenTTL bounds how long a refresh token can be exchanged for a new
// token pair.
const refreshTokenTTL = 30 * 24 * time.Hour

// ErrAuthenticationFailed is returned for any bad credential so callers can
// not distinguish an unknown email from a wrong password.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Auth is the authentication service. It holds the storage backend the user
// documents live in and the key used to sign session tokens; construct it
// once in RunBackend and inject it into the server.
type Auth struct {
	store      storage.StorageInterface
	signingKey string
}

// TokenPair is an access token plus the refresh token that renews it.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// NewAuth creates an Auth service over the given storage backend.
func NewAuth(store storage.StorageInterface, signingKey string) *Auth {
	return &Auth{store: store, signingKey: signingKey}
}

// CreateAuthToken creates a signed JWT access token carrying the user's email.
func (a *Auth) CreateAuthToken(email string) (string, error) {
	claims := jwt.MapClaims{
		"email": email,
		"exp":   time.Now().Add(accessTokenTTL).Unix(),
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString([]byte(a.signingKey))

	if err != nil {
		return "", errors.New("failed to create auth token")
	}

	return signedToken, nil
}

// createRefreshToken mints a random opaque refresh token and records it so it
// can be rotated and revoked.
func (a *Auth) createRefreshToken(ctx context.Context, email string) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(tokenBytes)

	record := &models.RefreshToken{
		Email:  email,
		Token:  token,
		Expiry: time.Now().Add(refreshTokenTTL),
	}
	if err := a.store.AddRefreshToken(ctx, record); err != nil {
		return "", err
	}

	return token, nil
}

// CreateTokens creates an access and refresh token pair for a user.
func (a *Auth) CreateTokens(ctx context.Context, email string) (*TokenPair, error) {
	authToken, err := a.CreateAuthToken(email)
	if err != nil {
		return nil, err
	}

	refreshToken, err := a.createRefreshToken(ctx, email)
	if err != nil {
		return nil, err
	}

	return &TokenPair{Token: authToken, RefreshToken: refreshToken}, nil
}

// SignUp registers a new user.
//
// It validates the email format and the password complexity, rejects emails
// that already have an account, hashes the password, and creates the user
// document with default stats and the default daily quest. On success it
// returns a fresh token pair, so sign-up doubles as the first sign-in.
func (a *Auth) SignUp(ctx context.Context, email, name, password string) (*TokenPair, error) {

	if !utils.ValidateEmail(email) {
		return nil, errors.New("invalid email format")
	}

	if len(name) < 2 {
		return nil, errors.New("invalid name")
	}

	if !utils.ValidatePassword(password) {
		return nil, errors.New("password must be at least 8 characters and contain both letters and numbers")
	}

	count, err := a.store.UserCount(ctx, email)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("an account with this email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.DefaultUser(email, name)
	user.PasswordHash = string(hashedPassword)

	if _, err := a.store.AddUser(ctx, user); err != nil {
		if err == storage.ErrUserExists {
			return nil, errors.New("an account with this email already exists")
		}
		return nil, err
	}

	return a.CreateTokens(ctx, email)
}

// SignIn authenticates a user by email and password and returns a fresh
// token pair. Unknown emails and wrong passwords fail identically.
func (a *Auth) SignIn(ctx context.Context, email, password string) (*TokenPair, error) {

	if !utils.ValidateEmail(email) {
		return nil, ErrAuthenticationFailed
	}

	foundUser, err := a.store.FindUser(ctx, email)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	err = bcrypt.CompareHashAndPassword([]byte(foundUser.PasswordHash), []byte(password))
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	return a.CreateTokens(ctx, email)
}

// Refresh exchanges a refresh token for a new token pair. The presented token
// is consumed: expired or unknown tokens fail, valid ones are rotated.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	record, err := a.store.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	if time.Now().After(record.Expiry) {
		_ = a.store.DeleteRefreshToken(ctx, refreshToken)
		return nil, ErrAuthenticationFailed
	}

	if err := a.store.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return nil, ErrAuthenticationFailed
	}

	return a.CreateTokens(ctx, record.Email)
}

// SignOut revokes a refresh token. Access tokens simply age out.
func (a *Auth) SignOut(ctx context.Context, refreshToken string) error {
	err := a.store.DeleteRefreshToken(ctx, refreshToken)
	if err != nil && err != storage.ErrNoToken {
		return err
	}
	return nil
}
