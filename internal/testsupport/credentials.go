package testsupport

import (
	"CopyTradeBot/internal/exchange"
	"CopyTradeBot/internal/models"
	"context"
)

// PlainCredentials treats the stored key and secret as already decrypted.
type PlainCredentials struct{}

func (PlainCredentials) Credentials(_ context.Context, user *models.User) (exchange.Credentials, error) {
	if user == nil || !user.HasCredentials() {
		return exchange.Credentials{}, exchange.ErrNoCredentials
	}
	return exchange.Credentials{APIKey: user.APIKeyEnc, APISecret: user.APISecretEnc}, nil
}
