// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter/v2"
	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/spf13/afero"
)

const (
	defaultFetchedName = "lsp-server"
	forcedGetterSep    = "::"
)

// ErrFetch is returned when the server binary cannot be downloaded.
var ErrFetch = errors.New("failed to fetch language server")

// Fetch downloads a single server executable from source and installs it into
// dir. Source uses Hashicorp's go-getter syntax, so plain paths, http(s) URLs
// and forced getters such as s3:: all work.
//
// go-getter only writes to the operating system's filesystem, so the download
// is staged in a temporary directory there and then installed through FsFactory.
func Fetch(ctx context.Context, source, dir string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("%w: empty source", ErrFetch)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", errors.Join(ErrFetch, err)
	}

	osFs := afero.NewOsFs()

	staging, err := afero.TempDir(osFs, "", "lspbridge-fetch")
	if err != nil {
		return "", errors.Join(ErrFetch, err)
	}
	defer osFs.RemoveAll(staging) //nolint:errcheck

	name := fetchedName(source)

	cli := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     source,
		Dst:     filepath.Join(staging, name),
		Pwd:     wd,
		GetMode: getter.ModeFile,
		Copy:    true,
	}

	ctxlog.Debug(ctx, "fetching language server", "source", source, "staging", req.Dst)

	res, err := cli.Get(ctx, req)
	if err != nil {
		return "", errors.Join(ErrFetch, err)
	}

	dst, err := installFrom(ctx, osFs, FsFactory(), res.Dst, filepath.Join(dir, name))
	if err != nil {
		return "", errors.Join(ErrFetch, err)
	}

	return dst, nil
}

// fetchedName derives the local file name from a go-getter source.
func fetchedName(source string) string {
	if i := strings.Index(source, forcedGetterSep); i >= 0 {
		source = source[i+len(forcedGetterSep):]
	}

	if i := strings.IndexAny(source, "?#"); i >= 0 {
		source = source[:i]
	}

	name := path.Base(filepath.ToSlash(source))
	if name == "." || name == "/" || name == "" || strings.Contains(name, ":") {
		return defaultFetchedName
	}

	return name
}
