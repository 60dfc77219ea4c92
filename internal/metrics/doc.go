// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for notification routing and
// progress indicators.
package metrics
