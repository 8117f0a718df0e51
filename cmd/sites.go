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
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/pantolingo/internal/site"
	"github.com/valpere/pantolingo/internal/store"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Manage the site-config table",
	Long:  `List, add, and remove the per-hostname configuration the Site Resolver reads through.`,
}

var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured sites",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(dbPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		sites, err := db.ListSites(context.Background())
		if err != nil {
			return fmt.Errorf("failed to list sites: %w", err)
		}
		if len(sites) == 0 {
			fmt.Println("No sites configured.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tHOSTNAME\tSOURCE\tTARGET\tPATHS\tDEFERRED")
		for _, s := range sites {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%v\n",
				s.SiteID, s.OriginHostname, s.SourceLang, s.TargetLang, s.TranslatePaths, s.DeferredEnabled)
		}
		return w.Flush()
	},
}

var (
	siteAddID         string
	siteAddHostname   string
	siteAddSourceLang string
	siteAddTargetLang string
	siteAddSkipWords  []string
	siteAddSkipSel    []string
	siteAddPaths      bool
	siteAddDeferred   bool
)

var sitesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a site's configuration",
	Long: `Add a site mapping an origin hostname to a source/target language
pair, plus optional skip rules and mode flags.

Example:
  pantolingo sites add --id s1 --hostname example.com --source en --target uk --deferred`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if siteAddID == "" || siteAddHostname == "" || siteAddTargetLang == "" {
			return fmt.Errorf("--id, --hostname, and --target are required")
		}
		srcLang := siteAddSourceLang
		if srcLang == "" {
			srcLang = "auto"
		}

		db, err := store.New(dbPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		cfg := site.SiteConfig{
			SiteID:          siteAddID,
			OriginHostname:  strings.ToLower(siteAddHostname),
			SourceLang:      srcLang,
			TargetLang:      siteAddTargetLang,
			SkipWords:       siteAddSkipWords,
			SkipSelectors:   siteAddSkipSel,
			TranslatePaths:  siteAddPaths,
			DeferredEnabled: siteAddDeferred,
		}
		if err := db.UpsertSite(context.Background(), cfg); err != nil {
			return fmt.Errorf("failed to add site: %w", err)
		}
		fmt.Printf("Added site %s: %s (%s -> %s)\n", cfg.SiteID, cfg.OriginHostname, cfg.SourceLang, cfg.TargetLang)
		return nil
	},
}

var sitesRmCmd = &cobra.Command{
	Use:   "rm <site-id>",
	Short: "Remove a site's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(dbPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.RemoveSite(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to remove site: %w", err)
		}
		fmt.Printf("Removed site: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sitesCmd)

	sitesAddCmd.Flags().StringVar(&siteAddID, "id", "", "Site ID (required)")
	sitesAddCmd.Flags().StringVar(&siteAddHostname, "hostname", "", "Origin hostname (required)")
	sitesAddCmd.Flags().StringVarP(&siteAddSourceLang, "source", "s", "auto", "Source language code")
	sitesAddCmd.Flags().StringVarP(&siteAddTargetLang, "target", "t", "", "Target language code (required)")
	sitesAddCmd.Flags().StringSliceVar(&siteAddSkipWords, "skip-word", nil, "Word never to translate (repeatable)")
	sitesAddCmd.Flags().StringSliceVar(&siteAddSkipSel, "skip-selector", nil, "CSS selector never to translate (repeatable)")
	sitesAddCmd.Flags().BoolVar(&siteAddPaths, "translate-paths", false, "Translate same-origin link pathnames")
	sitesAddCmd.Flags().BoolVar(&siteAddDeferred, "deferred", false, "Serve a skeleton page and resolve translations client-side")

	sitesCmd.AddCommand(sitesListCmd)
	sitesCmd.AddCommand(sitesAddCmd)
	sitesCmd.AddCommand(sitesRmCmd)
}
