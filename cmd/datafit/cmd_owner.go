package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"datafit/internal/security"
	"datafit/internal/services"
	"datafit/pkg/contracts/domain"
)

var (
	ownerName  string
	ownerEmail string
	ownerRole  string
	tokenOwner int64
)

var ownerCmd = &cobra.Command{
	Use:   "owner",
	Short: "Manage owner accounts",
}

var ownerCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an owner account",
	Long: `Create an owner account and print it as JSON.

Example usage:
  datafit owner create --name "Ana" --email ana@example.com
  datafit owner create --name "Ops" --email ops@example.com --role admin`,
	RunE: runOwnerCreate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for an owner",
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(ownerCmd)
	ownerCmd.AddCommand(ownerCreateCmd)
	rootCmd.AddCommand(tokenCmd)

	ownerCreateCmd.Flags().StringVar(&ownerName, "name", "", "Display name")
	ownerCreateCmd.Flags().StringVar(&ownerEmail, "email", "", "Unique email address")
	ownerCreateCmd.Flags().StringVar(&ownerRole, "role", string(domain.RoleCustomer), "Role: customer or admin")
	_ = ownerCreateCmd.MarkFlagRequired("name")
	_ = ownerCreateCmd.MarkFlagRequired("email")

	tokenCmd.Flags().Int64Var(&tokenOwner, "owner-id", 0, "Owner to issue the token for")
	_ = tokenCmd.MarkFlagRequired("owner-id")
}

func runOwnerCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, logger, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	owners := services.NewOwnerService(store.Owners, logger)
	owner, err := owners.CreateOwner(ctx, ownerName, ownerEmail, domain.Role(strings.ToLower(ownerRole)))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(owner)
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	tokens, err := security.NewTokenManager(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	if err != nil {
		return err
	}
	owner, err := services.NewOwnerService(store.Owners, logger).GetOwner(ctx, tokenOwner)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(owner)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
