/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventgen

import "errors"

// Classification sentinels for generation failures. The job processor matches
// these with errors.Is; anything not wrapping one of them is transient and
// eligible for retry.
var (
	// ErrConflict marks an idempotent duplicate: the occurrence was already
	// materialized, usually by a concurrent worker. Benign.
	ErrConflict = errors.New("event instance already exists")

	// ErrValidation marks bad input (unknown experience, malformed rule).
	// Retrying cannot help.
	ErrValidation = errors.New("invalid generation request")
)
