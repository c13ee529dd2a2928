package provider

import "context"

// SendResult is the provider's answer to a challenge dispatch.
type SendResult struct {
	Accepted bool
	Status   string
}

// CheckResult is the provider's answer to a submitted code.
type CheckResult struct {
	Verified bool
	Status   string
}

// DeliveryProvider sends SMS challenges and checks submitted codes.
// A non-nil error means the call did not reach a verdict (transport failure);
// a refusal is reported through Accepted / Verified with a nil error.
type DeliveryProvider interface {
	SendChallenge(ctx context.Context, phone string) (SendResult, error)
	CheckChallenge(ctx context.Context, phone, code string) (CheckResult, error)
}
