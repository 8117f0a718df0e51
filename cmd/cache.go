/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/pantolingo/internal/store"
)

var (
	cacheSiteFilter string
	cacheLangFilter string
	cacheExportFile string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the translation cache",
	Long:  `List, export, and clear cached segment translations in the SQLite-backed cache; stats also counts pathname-map entries.`,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached segment translations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(dbPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		entries, err := db.ListSegments(context.Background(), cacheSiteFilter, cacheLangFilter)
		if err != nil {
			return fmt.Errorf("failed to list cache entries: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No entries in the translation cache.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SITE\tLANG\tHASH\tKIND\tUSED\tLAST USED\tTEXT")
		for _, e := range entries {
			snippet := e.TranslatedText
			if len(snippet) > 40 {
				snippet = snippet[:37] + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				e.SiteID, e.TargetLang, e.Hash, e.Kind,
				e.UsageCount, e.LastUsed.Format("2006-01-02 15:04"), snippet)
		}
		return w.Flush()
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show translation cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(dbPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Sites:     %d\n", stats.SiteCount)
		fmt.Printf("Segments:  %d\n", stats.SegmentCount)
		fmt.Printf("Pathnames: %d\n", stats.PathnameCount)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached segment translations",
	Long: `Remove cached segment translations, optionally narrowed to a site
and/or language with --site / --lang. With neither flag set, clears the
entire segment cache — the bluntest form of the admin escape hatch for a
bad cached translation (§7's unknown-site and cache-miss paths are
unaffected; this only forces fresh misses on the next request).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(dbPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		n, err := db.ClearSegments(context.Background(), cacheSiteFilter, cacheLangFilter)
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Printf("Cleared %d cached segment translations.\n", n)
		return nil
	},
}

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export cached segment translations to CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cacheExportFile == "" {
			return fmt.Errorf("--output is required")
		}

		db, err := store.New(dbPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		entries, err := db.ListSegments(context.Background(), cacheSiteFilter, cacheLangFilter)
		if err != nil {
			return fmt.Errorf("failed to list cache entries: %w", err)
		}

		f, err := os.Create(cacheExportFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		writer := csv.NewWriter(f)
		if err := writer.Write([]string{"site_id", "target_lang", "hash", "kind", "usage_count", "last_used", "translated_text"}); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		for _, e := range entries {
			row := []string{e.SiteID, e.TargetLang, e.Hash, e.Kind,
				fmt.Sprintf("%d", e.UsageCount), e.LastUsed.Format(time.RFC3339), e.TranslatedText}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("failed to flush CSV: %w", err)
		}

		fmt.Printf("Exported %d entries to %s\n", len(entries), cacheExportFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.PersistentFlags().StringVar(&cacheSiteFilter, "site", "", "Filter by site ID")
	cacheCmd.PersistentFlags().StringVar(&cacheLangFilter, "lang", "", "Filter by target language code")

	cacheExportCmd.Flags().StringVarP(&cacheExportFile, "output", "o", "", "Output CSV file (required)")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheExportCmd)
}
