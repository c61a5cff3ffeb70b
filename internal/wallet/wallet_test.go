package wallet

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/r3e-network/price-oracle/internal/oerrors"
)

func TestFromWIF_RejectsShortString(t *testing.T) {
	_, err := FromWIF("tooshort")
	assert.ErrorIs(t, err, oerrors.ErrCredentials)
}

func TestFromWIF_RejectsMalformedKey(t *testing.T) {
	// 52 characters but not a valid base58check-encoded WIF payload.
	_, err := FromWIF("L000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, oerrors.ErrCredentials)
}

func TestNewDualSigner_RejectsMissingKeys(t *testing.T) {
	_, err := NewDualSigner("", "something")
	assert.ErrorIs(t, err, oerrors.ErrCredentials)

	_, err = NewDualSigner("something", "")
	assert.ErrorIs(t, err, oerrors.ErrCredentials)
}

func TestNewDualSigner_RejectsInvalidAttesterKey(t *testing.T) {
	_, err := NewDualSigner("not-a-valid-wif-key-string-at-all-00000000000000", "also-not-valid-0000000000000000000000000000000000")
	assert.ErrorIs(t, err, oerrors.ErrCredentials)
}
