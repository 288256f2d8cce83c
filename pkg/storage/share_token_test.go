package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShareTokenSignerGenerateAndParse(t *testing.T) {
	signer := NewShareTokenSigner("secret")
	token, err := signer.Generate("cred-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	other, err := signer.Generate("cred-1")
	require.NoError(t, err)
	require.NotEqual(t, token, other)

	credentialID, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "cred-1", credentialID)
}

func TestShareTokenSignerRejectsTampering(t *testing.T) {
	signer := NewShareTokenSigner("secret")
	token, err := signer.Generate("cred-1")
	require.NoError(t, err)

	_, err = NewShareTokenSigner("other").Parse(token)
	require.Error(t, err)

	forged, err := signer.Generate("cred-2")
	require.NoError(t, err)
	a := strings.Split(token, ".")
	b := strings.Split(forged, ".")
	_, err = signer.Parse(a[0] + "." + b[1] + "." + a[2])
	require.Error(t, err)

	_, err = signer.Parse("garbage")
	require.Error(t, err)

	_, err = NewShareTokenSigner("").Generate("cred-1")
	require.Error(t, err)
}
