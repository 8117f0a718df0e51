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
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/pantolingo/internal/deferred"
	"github.com/valpere/pantolingo/internal/fetcher"
	"github.com/valpere/pantolingo/internal/gateway"
	"github.com/valpere/pantolingo/internal/orchestrator"
	"github.com/valpere/pantolingo/internal/server"
	"github.com/valpere/pantolingo/internal/site"
	"github.com/valpere/pantolingo/internal/store"
	"github.com/valpere/pantolingo/internal/translator"
	"github.com/valpere/pantolingo/internal/validator"
)

// gracefulPoolShutdown bounds how long serve waits for in-flight
// deferred-mode background jobs to finish before exiting.
const gracefulPoolShutdown = 5 * time.Second

var (
	serveAddr             string
	serveBackend          string
	serveOllamaURL        string
	serveOllamaModels     []string
	serveOpenrouterKey    string
	serveOpenrouterModels []string
	serveSystranKey       string
	serveMymemoryEmail    string
	serveCheckLanguage    bool
	serveWorkers          int
	serveQueueSize        int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP listener",
	Long: `Start the reverse proxy: resolve the inbound Host header to a
configured site, fetch and translate its origin HTML, and serve the
result, falling back to the deferred client-side flow when a site has
it enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := zap.NewProduction()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer log.Sync()

		db, err := store.New(dbPath, log)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		backend, cfg, err := buildBackend(serveBackend)
		if err != nil {
			return err
		}

		gw := gateway.New(backend, cfg, 0)
		if serveCheckLanguage {
			gw = gw.WithLanguageCheck(validator.New(), log)
		}

		sites := site.New(db, 0)
		pool := deferred.NewPool(serveWorkers, serveQueueSize)
		defer pool.Shutdown(gracefulPoolShutdown)

		orch := orchestrator.New(orchestrator.Config{
			Sites:     sites,
			Segments:  db,
			Pathnames: db,
			Glossary:  db,
			Gateway:   gw,
			Fetch:     fetcher.NewClient(),
			Pool:      pool,
			Log:       log,
		})

		srv := server.New(orch, sites, db, log)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		log.Info("pantolingo listening", zap.String("addr", serveAddr), zap.String("backend", serveBackend))
		return srv.ListenAndServe(ctx, serveAddr)
	},
}

// buildBackend constructs the single configured translator.TranslationService —
// the Translator Gateway wraps exactly one backend per running process.
func buildBackend(name string) (translator.TranslationService, translator.ServiceConfig, error) {
	cfg := translator.ServiceConfig{}
	switch name {
	case "google":
		return translator.NewGoogleService(), cfg, nil
	case "systran":
		return translator.NewSystranService(serveSystranKey), cfg, nil
	case "mymemory":
		return translator.NewMyMemoryService(serveMymemoryEmail), cfg, nil
	case "amazon":
		return translator.NewAmazonService(), cfg, nil
	case "ibm":
		return translator.NewIBMService(), cfg, nil
	case "ollama":
		return translator.NewOllamaTranslator(serveOllamaURL, serveOllamaModels), cfg, nil
	case "openrouter":
		return translator.NewOpenRouterService(serveOpenrouterKey, "", serveOpenrouterModels), cfg, nil
	default:
		return nil, cfg, fmt.Errorf("unknown backend %q", name)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "ollama", "Translator Gateway backend (google, systran, mymemory, amazon, ibm, ollama, openrouter)")
	serveCmd.Flags().StringVar(&serveOllamaURL, "ollama-url", "http://localhost:11434", "Ollama base URL")
	serveCmd.Flags().StringSliceVar(&serveOllamaModels, "ollama-models", nil, "Ollama models to rotate (default list used if empty)")
	serveCmd.Flags().StringVar(&serveOpenrouterKey, "openrouter-key", "", "OpenRouter API key")
	serveCmd.Flags().StringSliceVar(&serveOpenrouterModels, "openrouter-models", nil, "OpenRouter models to rotate (default list used if empty)")
	serveCmd.Flags().StringVar(&serveSystranKey, "systran-key", "", "Systran API key")
	serveCmd.Flags().StringVar(&serveMymemoryEmail, "mymemory-email", "", "MyMemory email (for higher limits)")
	serveCmd.Flags().BoolVar(&serveCheckLanguage, "check-language", false, "Run the post-translate language-sanity check")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 0, "Deferred-mode background worker count (0 = default)")
	serveCmd.Flags().IntVar(&serveQueueSize, "queue-size", 0, "Deferred-mode background job queue size (0 = default)")
}
