package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pocketledger/pocketledger/internal/api"
	"github.com/pocketledger/pocketledger/internal/app/forecast"
	"github.com/pocketledger/pocketledger/internal/infra/observability"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pocketledger HTTP API",
	Long:  `Start the HTTP API server on the configured address.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	eng := newEngine(store)
	if cfg.Metrics.Enabled {
		eng.SetMetrics(observability.NewRecorder())
	}

	srv := api.NewServer(store, eng, forecast.New(store))
	if cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}

	fmt.Fprintf(os.Stdout, "pocketledger listening on %s\n", cfg.API.Addr())
	return http.ListenAndServe(cfg.API.Addr(), srv.Handler())
}
