package dispatch

import (
	"errors"

	"github.com/ethan/acip-discovery/pkg/wire"
)

// ErrInvalidParam is the common validation failure every handler returns
// for a malformed or out-of-range field (spec.md §4.3, §7: responded with
// ACIP_ERROR, connection stays open).
var ErrInvalidParam = errors.New("dispatch: invalid parameter")

// ValidateParticipantCount checks a requested participant count ∈ [1,8].
func ValidateParticipantCount(n uint8) error {
	if n < 1 || n > wire.ParticipantCap {
		return ErrInvalidParam
	}
	return nil
}

// ValidateCapabilities rejects a capabilities bitmap with any reserved
// bit (2-7) set.
func ValidateCapabilities(capabilities uint8) error {
	if capabilities&wire.CapReservedMask != 0 {
		return ErrInvalidParam
	}
	return nil
}
