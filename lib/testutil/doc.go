// Copyright 2026 The tgForwardbot Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides small helpers shared by tests across the
// module: channel receive/close assertions with a timeout safety
// valve, so that a wedged goroutine fails the test instead of hanging
// the whole run.
package testutil
