// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package launcher

import (
	"context"
	"errors"

	"github.com/matt-FFFFFF/lspbridge/internal/config"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
)

// ErrNoServer is returned when neither a server path nor a source is configured.
var ErrNoServer = errors.New("no language server configured, set server.path or server.source")

// Prepare returns the path to launch for cfg. A configured source is fetched
// into the install directory; otherwise the path is resolved and, when
// cfg.Install is set, copied into the install directory first.
func Prepare(ctx context.Context, cfg config.ServerConfig) (string, error) {
	switch {
	case cfg.Source != "":
		return Fetch(ctx, cfg.Source, cfg.InstallDir)
	case cfg.Path == "":
		return "", ErrNoServer
	}

	path, err := Resolve(cfg.Path)
	if err != nil {
		return "", &LaunchError{Path: cfg.Path, Err: err}
	}

	if !cfg.Install {
		return path, nil
	}

	installed, err := Install(ctx, path, cfg.InstallDir)
	if err != nil {
		return "", err
	}

	ctxlog.Debug(ctx, "using installed copy", "path", installed)

	return installed, nil
}
