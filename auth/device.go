// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/danielhkuo/ronda-server/models"
)

// DeriveDeviceID derives a stable pseudonymous device identifier for a round
// from the signals a browser can report plus the client IP. The same
// device/browser/round triple always hashes to the same ID; distinct devices
// may collide, which fails toward "already voted" and is accepted.
//
// The ID is never trusted on its own: the ballot table's unique constraint on
// (round_id, device_hash, stage) is the authoritative duplicate check.
func DeriveDeviceID(roundID string, sig models.DeviceSignals, clientIP, salt string) string {
	fingerprint := strings.Join([]string{
		sig.UserAgent,
		sig.Language,
		sig.Platform,
		sig.ScreenResolution,
		sig.Timezone,
		roundID,
		clientIP,
	}, "|")

	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(fingerprint))
	sum := h.Sum(nil)
	// 16 bytes (128 bits) keeps accidental collisions negligible while
	// staying short enough to index comfortably
	return hex.EncodeToString(sum[:16])
}
