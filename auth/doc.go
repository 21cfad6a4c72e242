// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides authentication, identity, and token generation utilities.

# Admin Keys

Admin keys use HMAC-SHA256 to create deterministic, verifiable keys:

	adminKey := auth.GenerateAdminKey(roundID, salt)
	err := auth.ValidateAdminKey(roundID, adminKey, salt)

The key is URL-safe base64 encoded without padding. Since it's deterministic,
the same round ID and salt always produce the same key. This allows validation
without storing the key in the database.

# Device Identity

Ballot deduplication keys a device's submission by a pseudonymous identifier
derived from browser-reported signals:

	deviceID := auth.DeriveDeviceID(roundID, signals, clientIP, salt)

The ID is deterministic per device/browser/round triple and scoped to one
round. It is a best-effort pseudonym: collisions between physical devices fail
toward "already voted", and a motivated voter who fabricates signals can mint
a fresh identity. The server therefore never treats it as proof of identity -
the database unique constraint on (round, device, stage) performs the actual
duplicate check.

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters

# IP Hashing

For privacy-preserving audit trails:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
