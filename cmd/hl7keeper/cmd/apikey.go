package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/solatis/hl7keeper/internal/core/auth"
	"github.com/solatis/hl7keeper/internal/core/config"
	"github.com/solatis/hl7keeper/internal/core/db"
	"github.com/solatis/hl7keeper/internal/types"
	"github.com/spf13/cobra"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys for write access",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key; the key is printed once",
	Args:  cobra.NoArgs,
	RunE:  runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

var apikeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List issued API keys",
	Args:  cobra.NoArgs,
	RunE:  runAPIKeyList,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd, apikeyListCmd)
	apikeyCreateCmd.Flags().String("name", "", "label for the key")
	apikeyCreateCmd.Flags().String("owner", "", "owner recorded as author of rule set puts (required)")
	apikeyCreateCmd.Flags().String("secret-id", "", "HMAC secret to sign under (default: the only configured secret)")
	_ = apikeyCreateCmd.MarkFlagRequired("owner")
}

// withAuthenticator opens the database and runs fn with an authenticator
// over the configured HMAC secrets.
func withAuthenticator(cmd *cobra.Command, fn func(*auth.Authenticator, map[string][]byte) error) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}

	database, err := openDatabase(cmd.Context(), cmd, true)
	if err != nil {
		return err
	}
	defer database.Close()

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	return fn(auth.NewAuthenticator(secrets, queries, logger), secrets)
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	owner, _ := cmd.Flags().GetString("owner")
	secretID, _ := cmd.Flags().GetString("secret-id")

	return withAuthenticator(cmd, func(a *auth.Authenticator, secrets map[string][]byte) error {
		if secretID == "" {
			id, err := auth.DefaultSecretID(secrets)
			if err != nil {
				return err
			}
			secretID = id
		}
		key, id, err := a.Issue(cmd.Context(), secretID, name, owner)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "issued API key %s for %s; store it now, it cannot be shown again\n", id, owner)
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	})
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	return withAuthenticator(cmd, func(a *auth.Authenticator, _ map[string][]byte) error {
		if err := a.Revoke(cmd.Context(), types.APIKeyID(args[0])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
		return nil
	})
}

func runAPIKeyList(cmd *cobra.Command, args []string) error {
	return withAuthenticator(cmd, func(a *auth.Authenticator, _ map[string][]byte) error {
		keys, err := a.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tOWNER\tCREATED AT\tLAST USED\tSTATUS")
		for _, k := range keys {
			lastUsed, state := "-", "active"
			if k.LastUsedAt.Valid {
				lastUsed = k.LastUsedAt.Time.Format(time.RFC3339)
			}
			if k.RevokedAt.Valid {
				state = "revoked"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", k.ID, k.Name, k.Owner, k.CreatedAt.Format(time.RFC3339), lastUsed, state)
		}
		return w.Flush()
	})
}
