package adapter

import (
	"context"

	"lesson-checkout/internal/domain/model"
)

type PaymentChannel string

const (
	ChannelCard         PaymentChannel = "card"
	ChannelBankTransfer PaymentChannel = "bank_transfer"
	ChannelUSSD         PaymentChannel = "ussd"
	ChannelMobileMoney  PaymentChannel = "mobile_money"
)

// CheckoutConfig is the narrow contract handed to the hosted checkout.
type CheckoutConfig struct {
	Reference        string
	BuyerEmail       string
	AmountMinorUnits int64
	Currency         string
	Channels         []PaymentChannel
	Metadata         map[string]string
}

// CheckoutHooks are the only two legitimate completion signals of one
// Initiate call. Exactly one of them fires exactly once.
type CheckoutHooks struct {
	// OnApproved fires when the gateway believes the charge succeeded.
	// Approval is not proof of payment; the flow must still verify.
	OnApproved func(model.GatewayResult)
	// OnDismissed fires when the user closed the checkout before a result,
	// or when the gateway errored before producing one (the adapter
	// synthesizes the dismissal and logs the error detail itself).
	OnDismissed func()
}

// CheckoutGateway is the hex port for the opaque hosted checkout.
// Implementations own the gateway's pacing: the user may take arbitrarily
// long, so Initiate registers the hooks and must never leave an attempt
// hanging without firing one of them.
type CheckoutGateway interface {
	Name() string
	Initiate(ctx context.Context, cfg CheckoutConfig, hooks CheckoutHooks)
}
