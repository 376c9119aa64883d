package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"projectflow/pkg/util"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Mint a bearer token for a user",
	Long: `Mint a signed JWT carrying the user_id claim, for calling the API by hand.

Examples:
  pfctl token alice
  curl -H "Authorization: Bearer $(pfctl token alice)" localhost:8080/dashboard`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default jwt.ttl from config)")
}

func runToken(cmd *cobra.Command, args []string) error {
	userID := strings.TrimSpace(args[0])
	if userID == "" {
		return errors.New("user id is required")
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret is not configured (set JWT_SECRET)")
	}
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.JWT.TTL
	}

	token, err := util.GenerateJWT(userID, cfg.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
