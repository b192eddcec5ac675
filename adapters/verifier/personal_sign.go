package verifier

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/layer-3/paydesk/core"
)

const signatureLength = 65

// PersonalSign verifies EIP-191 personal_sign signatures over challenge messages.
type PersonalSign struct{}

// NewPersonalSign returns a local verifier
func NewPersonalSign() *PersonalSign {
	return &PersonalSign{}
}

// Verify recovers the signer of the challenge message and compares it with the challenge address.
// A well-formed signature by another key yields Valid=false and no error.
func (PersonalSign) Verify(ctx context.Context, challenge core.Challenge, signature string) (core.Verification, error) {
	signer, err := RecoverAddress(challenge.Message(), signature)
	if err != nil {
		return core.Verification{}, err
	}
	return core.Verification{
		Valid:   signer.Equal(challenge.Address),
		Address: signer,
	}, nil
}

// RecoverAddress returns the address whose key produced signature over message.
func RecoverAddress(message, signature string) (core.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", core.ErrInvalidSignature)
	}
	if len(sig) != signatureLength {
		return "", fmt.Errorf("signature must be %d bytes: %w", signatureLength, core.ErrInvalidSignature)
	}

	// Wallets emit V as 27/28; SigToPub wants 0/1.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return "", fmt.Errorf("bad recovery id: %w", core.ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("failed to recover signer: %w", core.ErrInvalidSignature)
	}
	return core.AddressFromCommon(crypto.PubkeyToAddress(*pub)), nil
}
