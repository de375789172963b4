// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package scripts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/momeni/migrun/pkg/core/log"
	"github.com/momeni/migrun/pkg/core/mask"
)

// Location prefixes.
const (
	FilesystemPrefix = "filesystem:"
	ClasspathPrefix  = "classpath:"
)

// FSOpener opens the directory dir as a file system.
type FSOpener func(dir string) fs.FS

// DirFS opens directories of the local file system.
func DirFS(dir string) fs.FS {
	return os.DirFS(dir)
}

// LocationDir maps a configured location onto a directory. The
// classpath locations are resolved below root.
func LocationDir(root, loc string) (string, error) {
	switch {
	case strings.HasPrefix(loc, ClasspathPrefix):
		rel := strings.TrimLeft(strings.TrimPrefix(loc, ClasspathPrefix), "/")
		if rel == "" {
			return "", fmt.Errorf("location %q has no path", loc)
		}
		return filepath.Join(root, filepath.FromSlash(rel)), nil
	case strings.HasPrefix(loc, FilesystemPrefix):
		dir := strings.TrimPrefix(loc, FilesystemPrefix)
		if dir == "" {
			return "", fmt.Errorf("location %q has no path", loc)
		}
		return filepath.FromSlash(dir), nil
	}
	if i := strings.Index(loc, ":"); i > 1 && !filepath.IsAbs(loc) {
		return "", fmt.Errorf(
			"location scheme %q is not supported", loc[:i+1],
		)
	}
	return filepath.FromSlash(loc), nil
}

// ScanResult holds the scripts found in some locations.
type ScanResult struct {
	Migrations []*Migration
	Warnings   []string
}

// Scan reads the migration scripts of every configured location.
// Versioned migrations are returned in version order followed by the
// repeatable ones in description order.
func Scan(
	ctx context.Context, root string, open FSOpener, s Settings,
) (*ScanResult, error) {
	res := &ScanResult{}
	for _, loc := range s.Locations {
		dir, err := LocationDir(root, loc)
		if err != nil {
			return nil, err
		}
		fsys := open(dir)
		if _, err := fs.Stat(fsys, "."); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || s.CheckLocation {
				return nil, fmt.Errorf(
					"location %s: %w", mask.Path(loc), err,
				)
			}
			w := fmt.Sprintf("location %s does not exist", mask.Path(loc))
			log.Warn(ctx, w)
			res.Warnings = append(res.Warnings, w)
			continue
		}
		if err := scanFS(ctx, fsys, loc, s, res); err != nil {
			return nil, err
		}
	}
	if err := sortAndCheck(res.Migrations); err != nil {
		return nil, err
	}
	return res, nil
}

func scanFS(
	ctx context.Context, fsys fs.FS, loc string, s Settings, res *ScanResult,
) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := path.Base(p)
		v, desc, ok, err := s.Naming.Parse(name)
		switch {
		case err != nil && s.ValidateNaming:
			return err
		case err != nil:
			w := fmt.Sprintf("skipping script %s: %v", p, err)
			log.Warn(ctx, w)
			res.Warnings = append(res.Warnings, w)
			return nil
		case !ok:
			if s.ValidateNaming && strings.HasPrefix(name, s.Naming.Prefix) {
				return fmt.Errorf("script %q does not follow the naming pattern", p)
			}
			log.Debug(ctx, "ignoring file", slog.String("file", p))
			return nil
		}
		b, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		if !utf8.Valid(b) {
			return fmt.Errorf("script %s is not valid UTF-8", p)
		}
		body := string(b)
		res.Migrations = append(res.Migrations, &Migration{
			Version:     v,
			Description: desc,
			Script:      p,
			Location:    loc,
			Checksum:    Checksum(body),
			Type:        KindSQL,
			body:        body,
		})
		return nil
	})
}

func sortAndCheck(ms []*Migration) error {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i], ms[j]
		switch {
		case a.Repeatable() != b.Repeatable():
			return !a.Repeatable()
		case a.Repeatable():
			return a.Description < b.Description
		}
		return a.Version.Compare(b.Version) < 0
	})
	for i := 1; i < len(ms); i++ {
		a, b := ms[i-1], ms[i]
		if a.Repeatable() != b.Repeatable() {
			continue
		}
		if a.Repeatable() && a.Description == b.Description ||
			!a.Repeatable() && a.Version.Compare(b.Version) == 0 {
			return fmt.Errorf(
				"found more than one migration with %s: %s and %s",
				a, a.Script, b.Script,
			)
		}
	}
	return nil
}
