// Command gc runs the Content Store's garbage collection sweep out of band,
// without starting the full appliance (spec §4.7: "invoked at startup or
// out-of-band").
package main

import (
	"log/slog"
	"os"

	"audioassistant/internal/config"
	"audioassistant/internal/store"
)

func main() {
	jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(jsonHandler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.ContentDBPath)
	if err != nil {
		slog.Error("open content store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	result, err := st.Sweep()
	if err != nil {
		slog.Error("garbage collection failed", "error", err)
		os.Exit(1)
	}

	slog.Info("garbage collection complete",
		"items", result.ItemsDeleted, "extracts", result.ExtractsDeleted, "topics", result.TopicsDeleted)
}
