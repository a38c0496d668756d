package cmd

import (
	"context"
	"fmt"

	"github.com/hiboutik/oauth-client/internal/config"
	"github.com/tidwall/gjson"
)

// DoRefresh trades refreshToken for a new access token and saves it. An
// empty refreshToken is read from the token saved for the account.
func DoRefresh(ctx context.Context, cfg *config.Config, refreshToken string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if refreshToken == "" {
		saved, err := LoadToken(ctx, cfg)
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		refreshToken = gjson.GetBytes(saved, "refresh_token").String()
		if refreshToken == "" {
			return fmt.Errorf("refresh: the saved token has no refresh_token")
		}
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	token, err := client.ExchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	if token.IsError() {
		return token.Err()
	}
	if err = SaveToken(ctx, cfg, token); err != nil {
		return err
	}
	fmt.Println("Token refreshed.")
	return nil
}
