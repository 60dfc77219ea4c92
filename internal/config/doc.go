// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads the lspbridge YAML configuration.
//
// Files are read through FsFactory so tests can swap in an in-memory afero
// filesystem. Values from the file are layered over Default and validated.
package config
