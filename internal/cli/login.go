package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginServerURL string
	loginUsername  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with a tsapi server and store a bearer token",
	Run:   runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVarP(&loginServerURL, "server", "s", "http://localhost:8080", "tsapi server URL")
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "login_username configured on the server")
}

func runLogin(cmd *cobra.Command, args []string) {
	if loginUsername == "" {
		fmt.Print("Username: ")
		fmt.Scanln(&loginUsername)
	}

	fmt.Print("Password: ")
	passwordBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		fmt.Printf("Failed to read password: %v\n", err)
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodPost, loginServerURL+"/cli/login", nil)
	if err != nil {
		fmt.Printf("Failed to build request: %v\n", err)
		os.Exit(1)
	}
	req.SetBasicAuth(loginUsername, string(passwordBytes))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Login request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Login failed with status %d: %s\n", resp.StatusCode, string(body))
		os.Exit(1)
	}

	var decoded struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		fmt.Printf("Failed to parse login response: %v\n", err)
		os.Exit(1)
	}

	path, err := SaveConfig(loginServerURL, decoded.Token, "")
	if err != nil {
		fmt.Printf("Failed to save config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Logged in as %s. Token saved to %s\n", loginUsername, path)
}
