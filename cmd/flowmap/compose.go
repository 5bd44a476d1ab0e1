package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/joeblew999/plat-flowmap/internal/db"
	"github.com/joeblew999/plat-flowmap/internal/flow"
	"github.com/joeblew999/plat-flowmap/internal/geo"
	"github.com/joeblew999/plat-flowmap/internal/service"
)

// composeFlags are the one-shot composition inputs.
type composeFlags struct {
	source    string
	query     string
	roles     string
	selection []string
	format    string
	maxZoom   int
}

func newComposeCmd() *cobra.Command {
	var f composeFlags
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose routes from a file or SQL query and print GeoJSON, JSON or PMTiles",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			if err := runCompose(cmd.Context(), cmd.OutOrStdout(), opts, f); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}),
	}
	cmd.Flags().StringVarP(&f.source, "source", "s", "", "CSV, Parquet or JSON file with one row per route")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "DuckDB SQL returning one row per route")
	cmd.Flags().StringVar(&f.roles, "roles", "", "Column roles as JSON, or @file.json")
	cmd.Flags().StringSliceVar(&f.selection, "select", nil, "Identity keys to select")
	cmd.Flags().StringVarP(&f.format, "format", "f", "geojson", "Output format: geojson, json or pmtiles")
	cmd.Flags().IntVar(&f.maxZoom, "max-zoom", 6, "Deepest zoom for pmtiles output")
	return cmd
}

func runCompose(ctx context.Context, w io.Writer, opts *Options, f composeFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	query, err := composeQuery(f)
	if err != nil {
		return err
	}
	roles, err := parseRoles(f.roles)
	if err != nil {
		return err
	}

	settings, err := service.NewSettingsService(opts.DataDir)
	if err != nil {
		return err
	}

	conn, err := db.Open(db.Config{Extensions: []string{"parquet"}})
	if err != nil {
		return err
	}
	defer conn.Close()

	cols, err := db.LoadColumns(ctx, conn, query, roles)
	if err != nil {
		return err
	}

	comp, err := flow.NewComposer().Compose(flow.Input{
		Columns:   cols,
		Settings:  settings.Get(),
		Selection: flow.NewSelection(f.selection...),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	switch f.format {
	case "geojson":
		return enc.Encode(geo.FeatureCollection(comp))
	case "json":
		return enc.Encode(comp)
	case "pmtiles":
		data, err := geo.Archive(comp, 0, f.maxZoom)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown format %q", f.format)
	}
}

func composeQuery(f composeFlags) (string, error) {
	switch {
	case f.source != "" && f.query != "":
		return "", errors.New("--source and --query are mutually exclusive")
	case f.query != "":
		return f.query, nil
	case f.source != "":
		if _, err := os.Stat(f.source); err != nil {
			return "", err
		}
		return db.SourceQuery(f.source)
	default:
		return "", errors.New("--source or --query is required")
	}
}

// parseRoles reads a RoleMap from inline JSON or an @file reference.
func parseRoles(arg string) (db.RoleMap, error) {
	if arg == "" {
		return db.DefaultRoles(), nil
	}
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return db.RoleMap{}, fmt.Errorf("read roles: %w", err)
		}
	}
	var roles db.RoleMap
	if err := json.Unmarshal(data, &roles); err != nil {
		return db.RoleMap{}, fmt.Errorf("parse roles: %w", err)
	}
	return roles, nil
}
