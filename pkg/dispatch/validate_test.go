package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ethan/acip-discovery/pkg/wire"
)

func TestValidateParticipantCount(t *testing.T) {
	require.NoError(t, ValidateParticipantCount(8))
	require.ErrorIs(t, ValidateParticipantCount(9), ErrInvalidParam)
	require.ErrorIs(t, ValidateParticipantCount(0), ErrInvalidParam)
}

func TestValidateCapabilities(t *testing.T) {
	require.NoError(t, ValidateCapabilities(wire.CapVideo|wire.CapAudio))
	require.ErrorIs(t, ValidateCapabilities(wire.CapReservedMask), ErrInvalidParam)
}
