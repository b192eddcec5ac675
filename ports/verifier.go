package ports

import (
	"context"

	"github.com/layer-3/paydesk/core"
)

// SignatureVerifier independently checks that signature over challenge was made by its address.
type SignatureVerifier interface {
	Verify(ctx context.Context, challenge core.Challenge, signature string) (core.Verification, error)
}
