package frontend

import (
	"fmt"
	"os"

	"github.com/jghoshh/arise/frontend/client"
	"github.com/jghoshh/arise/frontend/cmd"
	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

// RunFrontend starts the interactive shell client.
func RunFrontend() {
	if err := godotenv.Load("frontend/.env"); err != nil {
		fmt.Println("No frontend/.env file found, using environment variables")
	}

	signingKey := os.Getenv("JWT_SIGNING_KEY")
	authToken := os.Getenv("AUTH_TOKEN")
	authTokenRefresh := os.Getenv("AUTH_TOKEN_REFRESH")
	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}

	// Drop any tokens left behind by a previous run under different keys.
	keyring.Delete(client.KeyringService, authToken)
	keyring.Delete(client.KeyringService, authTokenRefresh)

	client.InitClient(serverURL, signingKey, authToken, authTokenRefresh)
	cmd.InitCmd()
	cmd.Execute()
}
