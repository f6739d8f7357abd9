package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"recast/internal/auth"
	"recast/internal/logging"
)

var (
	tokenName        string
	tokenScopes      []string
	tokenExpires     string
	tokenFormat      string
	tokenShowRevoked bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens for the HTTP server",
	Long: `Create, list, revoke, and rotate API tokens for authenticating with
the recast HTTP server.

Tokens are stored per workspace in .recast/auth.db. The raw token is
shown exactly once at creation; only a bcrypt hash is kept.

Examples:
  recast token create --name "CI" --scopes write
  recast token create --name "Read-only" --scopes read --expires 30d
  recast token list
  recast token revoke rcst_key_a1b2c3d4e5f60718`,
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API token",
	Long: `Create a new API token with the given scopes.

Scopes:
  read   - Queries and previews
  write  - Transformation commits and exports
  admin  - Full access including daemon shutdown

Examples:
  recast token create --name "CI" --scopes write
  recast token create --name "Admin" --scopes admin --expires 2027-01-01`,
	Run: runTokenCreate,
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API tokens",
	Long: `List API tokens with their scopes, expiry, and last used time.

Examples:
  recast token list
  recast token list --show-revoked
  recast token list --format json`,
	Run: runTokenList,
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <key-id>",
	Short: "Revoke an API token",
	Long: `Revoke an API token, immediately invalidating it.

Examples:
  recast token revoke rcst_key_a1b2c3d4e5f60718`,
	Args: cobra.ExactArgs(1),
	Run:  runTokenRevoke,
}

var tokenRotateCmd = &cobra.Command{
	Use:   "rotate <key-id>",
	Short: "Rotate an API token (generate new secret)",
	Long: `Generate a new secret for an existing API token, invalidating the old
one. The key ID and scopes stay the same.

Examples:
  recast token rotate rcst_key_a1b2c3d4e5f60718`,
	Args: cobra.ExactArgs(1),
	Run:  runTokenRotate,
}

func init() {
	tokenCmd.PersistentFlags().StringVar(&tokenFormat, "format", "human", "Output format (json, human)")

	tokenCreateCmd.Flags().StringVar(&tokenName, "name", "", "Token name (required)")
	tokenCreateCmd.Flags().StringSliceVar(&tokenScopes, "scopes", nil, "Scopes: read, write, admin (required)")
	tokenCreateCmd.Flags().StringVar(&tokenExpires, "expires", "", "Expiration (e.g., 30d, 12h, 2027-01-01)")
	_ = tokenCreateCmd.MarkFlagRequired("name")
	_ = tokenCreateCmd.MarkFlagRequired("scopes")

	tokenListCmd.Flags().BoolVar(&tokenShowRevoked, "show-revoked", false, "Include revoked tokens")

	tokenCmd.AddCommand(tokenCreateCmd)
	tokenCmd.AddCommand(tokenListCmd)
	tokenCmd.AddCommand(tokenRevokeCmd)
	tokenCmd.AddCommand(tokenRotateCmd)
	rootCmd.AddCommand(tokenCmd)
}

func runTokenCreate(cmd *cobra.Command, args []string) {
	logger := newLogger(tokenFormat)
	manager := mustGetAuthManager(logger)

	var scopes []auth.Scope
	for _, s := range tokenScopes {
		scope := auth.Scope(strings.ToLower(s))
		if !scope.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: invalid scope '%s' (valid: read, write, admin)\n", s)
			os.Exit(1)
		}
		scopes = append(scopes, scope)
	}

	var expiresAt *time.Time
	if tokenExpires != "" {
		t, err := parseExpiration(tokenExpires)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid expiration '%s': %v\n", tokenExpires, err)
			os.Exit(1)
		}
		expiresAt = &t
	}

	key, rawToken, err := manager.CreateKey(auth.CreateKeyOptions{
		Name:      tokenName,
		Scopes:    scopes,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating token: %v\n", err)
		os.Exit(1)
	}

	if tokenFormat == "json" {
		resp := map[string]interface{}{
			"keyId":     key.ID,
			"name":      key.Name,
			"scopes":    key.Scopes,
			"token":     rawToken,
			"createdAt": key.CreatedAt.Format(time.RFC3339),
		}
		if key.ExpiresAt != nil {
			resp["expiresAt"] = key.ExpiresAt.Format(time.RFC3339)
		}
		printJSON(resp)
	} else {
		fmt.Println("API Token Created:")
		fmt.Println()
		fmt.Printf("  ID:      %s\n", key.ID)
		fmt.Printf("  Name:    %s\n", key.Name)
		fmt.Printf("  Scopes:  %s\n", formatScopes(key.Scopes))
		if key.ExpiresAt != nil {
			fmt.Printf("  Expires: %s\n", key.ExpiresAt.Format("2006-01-02"))
		}
		fmt.Printf("  Token:   %s\n", rawToken)
		fmt.Println()
		fmt.Println("  IMPORTANT: Store this token securely. It will not be shown again.")
	}
}

func runTokenList(cmd *cobra.Command, args []string) {
	logger := newLogger(tokenFormat)
	manager := mustGetAuthManager(logger)

	all, err := manager.ListKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing tokens: %v\n", err)
		os.Exit(1)
	}

	keys := make([]*auth.APIKey, 0, len(all))
	for _, key := range all {
		if key.Revoked && !tokenShowRevoked {
			continue
		}
		keys = append(keys, key)
	}

	if tokenFormat == "json" {
		printJSON(map[string]interface{}{
			"tokens": keys,
			"count":  len(keys),
		})
		return
	}

	if len(keys) == 0 {
		fmt.Println("No API tokens found.")
		return
	}

	fmt.Println("API Tokens:")
	fmt.Println()
	fmt.Printf("  %-26s %-16s %-16s %-12s %-12s\n",
		"ID", "NAME", "SCOPES", "EXPIRES", "LAST USED")
	fmt.Printf("  %-26s %-16s %-16s %-12s %-12s\n",
		strings.Repeat("-", 26), strings.Repeat("-", 16), strings.Repeat("-", 16),
		strings.Repeat("-", 12), strings.Repeat("-", 12))

	for _, key := range keys {
		name := key.Name
		if len(name) > 16 {
			name = name[:13] + "..."
		}

		expires := "-"
		if key.ExpiresAt != nil {
			expires = key.ExpiresAt.Format("2006-01-02")
		}

		lastUsed := "never"
		if key.LastUsedAt != nil {
			lastUsed = formatTimeAgo(*key.LastUsedAt)
		}

		status := ""
		if key.Revoked {
			status = " [REVOKED]"
		} else if key.IsExpired() {
			status = " [EXPIRED]"
		}

		fmt.Printf("  %-26s %-16s %-16s %-12s %-12s%s\n",
			key.ID, name, formatScopes(key.Scopes), expires, lastUsed, status)
	}
}

func runTokenRevoke(cmd *cobra.Command, args []string) {
	logger := newLogger(tokenFormat)
	manager := mustGetAuthManager(logger)

	keyID := args[0]
	if err := manager.RevokeKey(keyID); err != nil {
		fmt.Fprintf(os.Stderr, "Error revoking token: %v\n", err)
		os.Exit(1)
	}

	if tokenFormat == "json" {
		printJSON(map[string]interface{}{
			"revoked": keyID,
			"success": true,
		})
	} else {
		fmt.Printf("Token %s revoked successfully.\n", keyID)
	}
}

func runTokenRotate(cmd *cobra.Command, args []string) {
	logger := newLogger(tokenFormat)
	manager := mustGetAuthManager(logger)

	keyID := args[0]
	key, rawToken, err := manager.RotateKey(keyID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rotating token: %v\n", err)
		os.Exit(1)
	}

	if tokenFormat == "json" {
		printJSON(map[string]interface{}{
			"keyId":     key.ID,
			"name":      key.Name,
			"newToken":  rawToken,
			"rotatedAt": time.Now().Format(time.RFC3339),
		})
	} else {
		fmt.Println("Token Rotated:")
		fmt.Println()
		fmt.Printf("  ID:        %s\n", key.ID)
		fmt.Printf("  Name:      %s\n", key.Name)
		fmt.Printf("  New Token: %s\n", rawToken)
		fmt.Println()
		fmt.Println("  IMPORTANT: The old token is now invalid. Store the new token securely.")
	}
}

// mustGetAuthManager opens the workspace key store and wraps it in an
// auth manager, or exits on error.
func mustGetAuthManager(logger *logging.Logger) *auth.Manager {
	root := mustGetWorkspaceRoot()

	store, err := auth.OpenKeyStore(root, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening key store: %v\n", err)
		os.Exit(1)
	}

	cfg := auth.DefaultManagerConfig()
	cfg.Enabled = true

	manager, err := auth.NewManager(cfg, store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating auth manager: %v\n", err)
		os.Exit(1)
	}
	return manager
}

// parseExpiration parses an expiration string like "30d", "12h", or "2027-01-01"
func parseExpiration(s string) (time.Time, error) {
	// Try duration format first (e.g., "30d", "12h")
	if len(s) > 1 {
		unit := s[len(s)-1]
		valueStr := s[:len(s)-1]
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err == nil {
			var d time.Duration
			switch unit {
			case 'd':
				d = time.Duration(value) * 24 * time.Hour
			case 'h':
				d = time.Duration(value) * time.Hour
			case 'm':
				d = time.Duration(value) * time.Minute
			}
			if d > 0 {
				return time.Now().Add(d), nil
			}
		}
	}

	formats := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		time.RFC3339,
	}
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized format (use e.g., '30d', '12h', or '2027-01-01')")
}

// formatScopes formats scopes for display
func formatScopes(scopes []auth.Scope) string {
	strs := make([]string, 0, len(scopes))
	for _, s := range scopes {
		strs = append(strs, string(s))
	}
	return strings.Join(strs, ",")
}

// formatTimeAgo formats a time as "Xm ago", "Xh ago", etc.
func formatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}
