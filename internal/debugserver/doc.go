// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package debugserver serves the local debug endpoints of a running bridge:
// Prometheus metrics, a health check and the list of active progress
// indicators.
package debugserver
