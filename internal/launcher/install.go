// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/matt-FFFFFF/lspbridge/internal/ctxlog"
	"github.com/spf13/afero"
)

const executableMode os.FileMode = 0o755

var (
	// ErrInstall is returned when the server binary cannot be copied into the install directory.
	ErrInstall = errors.New("failed to install language server")
	// ErrNotFound is returned when the server executable cannot be located.
	ErrNotFound = errors.New("language server executable not found")
)

// FsFactory is a function that returns an afero filesystem.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Install copies the executable at src into dir and marks it executable.
// It returns the path of the installed copy.
func Install(ctx context.Context, src, dir string) (string, error) {
	fs := FsFactory()
	return installFrom(ctx, fs, fs, src, filepath.Join(dir, filepath.Base(src)))
}

// installFrom copies src on srcFs to dst on fs, creating its directory.
func installFrom(ctx context.Context, srcFs, fs afero.Fs, src, dst string) (string, error) {
	if err := fs.MkdirAll(filepath.Dir(dst), executableMode); err != nil {
		return "", errors.Join(ErrInstall, err)
	}

	if srcFs == fs && sameFile(src, dst) {
		return dst, chmodExecutable(fs, dst)
	}

	in, err := srcFs.Open(src)
	if err != nil {
		return "", errors.Join(ErrInstall, err)
	}
	defer in.Close() //nolint:errcheck

	// Write to a temporary name first so a running copy is never truncated.
	tmp := dst + ".tmp"

	out, err := fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, executableMode)
	if err != nil {
		return "", errors.Join(ErrInstall, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = fs.Remove(tmp)

		return "", errors.Join(ErrInstall, err)
	}

	if err := out.Close(); err != nil {
		_ = fs.Remove(tmp)
		return "", errors.Join(ErrInstall, err)
	}

	if err := fs.Rename(tmp, dst); err != nil {
		_ = fs.Remove(tmp)
		return "", errors.Join(ErrInstall, err)
	}

	if err := chmodExecutable(fs, dst); err != nil {
		return "", err
	}

	ctxlog.Debug(ctx, "installed language server", "src", src, "dst", dst)

	return dst, nil
}

func chmodExecutable(fs afero.Fs, path string) error {
	if err := fs.Chmod(path, executableMode); err != nil {
		return errors.Join(ErrInstall, err)
	}

	return nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)

	return errA == nil && errB == nil && absA == absB
}

// Resolve returns the path of an executable. Bare names are looked up in PATH.
func Resolve(name string) (string, error) {
	if name == "" {
		return "", ErrNotFound
	}

	fs := FsFactory()

	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		if err := checkExecutableFs(fs, name); err != nil {
			return "", err
		}

		return name, nil
	}

	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		candidate := filepath.Join(dir, name)
		if checkExecutableFs(fs, candidate) == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s not in PATH", ErrNotFound, name)
}

func checkExecutable(path string) error {
	return checkExecutableFs(FsFactory(), path)
}

func checkExecutableFs(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		return err
	}

	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrNotExecutable, path)
	}

	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%w: %s", ErrNotExecutable, path)
	}

	return nil
}
