// Package client is the HTTP client the interactive shell talks to the API
// with. It keeps the session tokens in the system keyring and transparently
// refreshes an expired access token.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/form3tech-oss/jwt-go"
	"github.com/jghoshh/arise/backend/models"
	"github.com/zalando/go-keyring"
)

// jwtSigningKey is used to verify JWT tokens so an expired session can be
// detected before a request is sent.
var jwtSigningKey string

// KeyringKey is used to store and retrieve the JWT token from the system keyring.
var KeyringKey string

// RefreshKeyringKey is used to store and retrieve the refresh token from the system keyring.
var RefreshKeyringKey string

// ServerURL is the URL of the server the client is connecting to.
var ServerURL string

// httpClient is the HTTP client used to make requests to the server.
var httpClient = &http.Client{}

// KeyringService is the name of the service in the system keyring where the JWT token and refresh token are stored.
const KeyringService = "Arise"

// TokenResult is the token pair returned by the auth endpoints.
type TokenResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// InitClient initializes the client configuration.
// This function must be called before using any other functions in the package.
func InitClient(serverURL, signingKey, authToken, authTokenRefresh string) {
	ServerURL = serverURL
	jwtSigningKey = signingKey
	KeyringKey = authToken
	RefreshKeyringKey = authTokenRefresh
}

// decodeJWT decodes a JWT token and returns the claims contained within it.
// It returns an error if the token is invalid.
func decodeJWT(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSigningKey), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// isJwtTokenInKeyring checks if the system keyring contains a JWT token.
// Returns 'true' and the token if it exists, 'false' and an empty string if it doesn't.
func isJwtTokenInKeyring() (bool, string, error) {
	token, err := keyring.Get(KeyringService, KeyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return false, "", nil
		}
		return false, "", errors.New("failed to access keyring: " + err.Error())
	}
	return true, token, nil
}

// storeTokens saves a token pair to the system keyring.
func storeTokens(result *TokenResult) error {
	if err := keyring.Set(KeyringService, KeyringKey, result.Token); err != nil {
		return err
	}
	if result.RefreshToken != "" {
		if err := keyring.Set(KeyringService, RefreshKeyringKey, result.RefreshToken); err != nil {
			keyring.Delete(KeyringService, KeyringKey)
			return err
		}
	}
	return nil
}

// ClearKeyring clears the JWT token and refresh token from the system keyring.
func ClearKeyring() error {
	if err := keyring.Delete(KeyringService, KeyringKey); err != nil && err != keyring.ErrNotFound {
		return errors.New("failed to delete access token from keyring: " + err.Error())
	}
	if err := keyring.Delete(KeyringService, RefreshKeyringKey); err != nil && err != keyring.ErrNotFound {
		return errors.New("failed to delete refresh token from keyring: " + err.Error())
	}
	return nil
}

// sendRequest sends a JSON request to the API and decodes the response into
// out when it is non-nil. A structured {error} body becomes the returned
// error, so shell commands can print it directly.
func sendRequest(method, path string, token string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		marshaled, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to create request: %v", err)
		}
		reqBody = bytes.NewBuffer(marshaled)
	}

	req, err := http.NewRequest(method, ServerURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var errBody map[string]string
		if err := json.Unmarshal(bodyBytes, &errBody); err == nil && errBody["error"] != "" {
			return errors.New(errBody["error"])
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return fmt.Errorf("failed to decode response: %v", err)
		}
	}
	return nil
}

// refreshTokens exchanges the stored refresh token for a new pair.
func refreshTokens() (string, error) {
	refreshToken, err := keyring.Get(KeyringService, RefreshKeyringKey)
	if err != nil {
		return "", errors.New("session expired, please sign in again")
	}

	result := &TokenResult{}
	err = sendRequest("POST", "/api/auth/refresh", "", map[string]string{"refreshToken": refreshToken}, result)
	if err != nil {
		ClearKeyring()
		return "", errors.New("session expired, please sign in again")
	}

	if err := storeTokens(result); err != nil {
		return "", err
	}
	return result.Token, nil
}

// IsUserAuthenticated checks if a valid JWT token exists in the system
// keyring. If the token is expired it tries to refresh it using the refresh
// token. Returns the usable token, or "" when there is no session.
func IsUserAuthenticated() (string, error) {

	hasJwt, tokenStr, err := isJwtTokenInKeyring()

	if err != nil {
		return "", err
	}

	if !hasJwt {
		return "", nil
	}

	_, err = decodeJWT(tokenStr)
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			if ve.Errors&jwt.ValidationErrorExpired != 0 {
				return refreshTokens()
			}
		}
		return "", err
	}

	return tokenStr, nil
}

// sessionToken returns a usable access token or an error when signed out.
func sessionToken() (string, error) {
	token, err := IsUserAuthenticated()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.New("you are not signed in")
	}
	return token, nil
}

// SignUp registers a new account and stores the returned session.
func SignUp(email, name, password string) error {
	result := &TokenResult{}
	err := sendRequest("POST", "/api/auth/signup", "", map[string]string{
		"email":    email,
		"name":     name,
		"password": password,
	}, result)
	if err != nil {
		return err
	}
	return storeTokens(result)
}

// SignIn authenticates and stores the returned session.
func SignIn(email, password string) error {
	result := &TokenResult{}
	err := sendRequest("POST", "/api/auth/signin", "", map[string]string{
		"email":    email,
		"password": password,
	}, result)
	if err != nil {
		return err
	}
	return storeTokens(result)
}

// SignOut revokes the stored refresh token and clears the keyring.
func SignOut() error {
	refreshToken, err := keyring.Get(KeyringService, RefreshKeyringKey)
	if err == nil {
		// Best effort: a failed revocation still clears the local session.
		sendRequest("POST", "/api/auth/signout", "", map[string]string{"refreshToken": refreshToken}, nil)
	}
	return ClearKeyring()
}

// GetStats fetches the signed-in user's character sheet.
func GetStats() (*models.UserStats, error) {
	token, err := sessionToken()
	if err != nil {
		return nil, err
	}

	stats := &models.UserStats{}
	if err := sendRequest("GET", "/api/user/stats", token, nil, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetQuests fetches the signed-in user's quest list.
func GetQuests() ([]models.Quest, error) {
	token, err := sessionToken()
	if err != nil {
		return nil, err
	}

	var quests []models.Quest
	if err := sendRequest("GET", "/api/user/quests", token, nil, &quests); err != nil {
		return nil, err
	}
	return quests, nil
}

// CompleteTask posts a task progress update.
func CompleteTask(questID, taskID string, progress float64) error {
	token, err := sessionToken()
	if err != nil {
		return err
	}

	return sendRequest("POST", "/api/quests/complete", token, map[string]interface{}{
		"questId":  questID,
		"taskId":   taskID,
		"progress": progress,
	}, nil)
}

// UpdateQuests replaces the signed-in user's quest list wholesale.
func UpdateQuests(quests []models.Quest) error {
	token, err := sessionToken()
	if err != nil {
		return err
	}

	return sendRequest("POST", "/api/quests/update", token, map[string]interface{}{
		"quests": quests,
	}, nil)
}
