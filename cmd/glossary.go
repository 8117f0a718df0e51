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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/pantolingo/internal/store"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage per-site terminology glossaries",
	Long: `Add, list, and delete glossary entries scoped to a site and
language pair.

Glossary entries ensure that specific source terms are always translated
to the same target term — useful for proper nouns, brand names, and
domain-specific vocabulary — and are injected into the Translator
Gateway's prompt for every request on that site.`,
}

var (
	glossarySite   string
	glossarySource string
	glossaryTarget string
)

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List glossary entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(dbPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		entries, err := db.ListGlossaryTerms(context.Background(), glossarySite, glossarySource, glossaryTarget)
		if err != nil {
			return fmt.Errorf("failed to list glossary: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("Glossary is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSITE\tSOURCE LANG\tTARGET LANG\tSOURCE TERM\tTARGET TERM")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.SiteID, e.SourceLang, e.TargetLang, e.SourceTerm, e.TargetTerm)
		}
		return w.Flush()
	},
}

var glossaryAddCmd = &cobra.Command{
	Use:   "add <source-term> <target-term>",
	Short: "Add or update a glossary entry",
	Long: `Add a glossary entry mapping a source-language term to a target-language
term, scoped to a site.

Example:
  pantolingo glossary add "Kyiv" "Київ" --site s1 --source en --target uk`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if glossarySite == "" {
			return fmt.Errorf("--site flag is required")
		}
		if glossarySource == "" {
			return fmt.Errorf("--source flag is required")
		}
		if glossaryTarget == "" {
			return fmt.Errorf("--target flag is required")
		}

		db, err := store.New(dbPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.AddGlossaryTerm(context.Background(), glossarySite, glossarySource, glossaryTarget, args[0], args[1]); err != nil {
			return fmt.Errorf("failed to add glossary entry: %w", err)
		}
		fmt.Printf("Added [%s %s->%s]: %q -> %q\n", glossarySite, glossarySource, glossaryTarget, args[0], args[1])
		return nil
	},
}

var glossaryRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a glossary entry by ID",
	Long: `Delete a glossary entry by its ID (shown in "pantolingo glossary list").

Example:
  pantolingo glossary rm gl_s1_1234567890123456789`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := store.New(dbPath, nil)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.DeleteGlossaryTerm(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete glossary entry: %w", err)
		}
		fmt.Printf("Deleted glossary entry: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryListCmd.Flags().StringVar(&glossarySite, "site", "", "Filter by site ID")
	glossaryListCmd.Flags().StringVarP(&glossarySource, "source", "s", "", "Filter by source language code (e.g. en)")
	glossaryListCmd.Flags().StringVarP(&glossaryTarget, "target", "t", "", "Filter by target language code (e.g. uk)")

	glossaryAddCmd.Flags().StringVar(&glossarySite, "site", "", "Site ID (required)")
	glossaryAddCmd.Flags().StringVarP(&glossarySource, "source", "s", "", "Source language code (e.g. en)")
	glossaryAddCmd.Flags().StringVarP(&glossaryTarget, "target", "t", "", "Target language code (e.g. uk)")

	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryRmCmd)
}
