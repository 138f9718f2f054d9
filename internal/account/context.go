package account

import (
	"context"

	"github.com/zjoart/go-databundle-store/pkg/utils"
)

// FromContext returns the account the auth middleware attached to the request.
func FromContext(ctx context.Context) (Account, bool) {
	acct, ok := ctx.Value(utils.AccountKey).(Account)
	return acct, ok
}

func NewContext(ctx context.Context, acct Account) context.Context {
	return context.WithValue(ctx, utils.AccountKey, acct)
}
