/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package result pulls structured JSON answers out of model text.
//
// Models asked for JSON frequently wrap it in a ```json fence or surround it
// with a sentence of prose. ExtractJSON recovers the payload and Extract
// unmarshals it into a typed value:
//
//	verdicts, err := result.Extract[[]Verdict](text)
package result
