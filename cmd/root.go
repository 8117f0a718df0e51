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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Global variables populated from persistent flags / config, shared by
// every subcommand that opens the database or starts the listener.
var (
	cfgFile string // Path to configuration file
	dbPath  string // SQLite database path (translation cache, sites, glossary)
	version bool    // Print version of the application
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "pantolingo",
	Short: "Translating reverse proxy",
	Long: `pantolingo is a reverse proxy that serves an origin site's HTML
translated into a configured target language, caching translated segments
and pathnames in SQLite and dispatching misses to a pluggable LLM backend.

Run "pantolingo serve" to start the HTTP listener, "pantolingo sites" to
manage the site-config table, "pantolingo cache" to inspect or clear the
translation cache, and "pantolingo glossary" to manage per-site terminology.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if version {
			fmt.Println("pantolingo v0.1.0")
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to happen
// once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pantolingo.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/pantolingo.db", "SQLite database path")
	rootCmd.Flags().BoolVarP(&version, "version", "v", false, "Print the version of the application")

	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pantolingo")
	}

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; flags and environment alone are fine.
	} else {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if viper.IsSet("db") {
		dbPath = viper.GetString("db")
	}
}
