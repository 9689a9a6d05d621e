package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/cohortlab/cohortlab/internal/database"
	"github.com/cohortlab/cohortlab/pkg/datastore"
	"github.com/cohortlab/cohortlab/pkg/logger"
)

var (
	configFile  = flag.String("config", "dscheck.yaml", "Path to the datastore configuration file")
	backendName = flag.String("backend", "", "Backend to check (overrides the config file)")
	probeTable  = flag.String("table", "", "Optional table/collection to count after connecting")
	toolVersion = "1.0.0"
)

// dscheck verifies that a configured backend is reachable: it builds
// the adapter through the factory, initializes it, optionally counts a
// probe table, and closes. Exit status is non-zero on any failure.
func main() {
	flag.Parse()

	log := logger.New("dscheck", toolVersion)

	v := viper.New()
	v.SetConfigFile(*configFile)
	v.SetEnvPrefix("DSCHECK")
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config %s: %v", *configFile, err)
	}

	name := v.GetString("backend")
	if *backendName != "" {
		name = *backendName
	}

	cfg := datastore.Config{
		Host:         v.GetString("host"),
		Port:         v.GetInt("port"),
		Username:     v.GetString("username"),
		Password:     v.GetString("password"),
		DatabaseName: v.GetString("databaseName"),
		SSL:          v.GetBool("ssl"),
		SSLMode:      v.GetString("sslMode"),
		MaxPoolSize:  v.GetInt32("maxPoolSize"),
		AuthSource:   v.GetString("authSource"),
	}

	store, err := database.Open(name, cfg)
	if err != nil {
		log.Fatalf("failed to construct adapter: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := store.Initialize(ctx); err != nil {
		log.Fatalf("failed to initialize %s backend: %v", store.Kind(), err)
	}
	defer store.Close()

	if *probeTable != "" {
		count, err := store.Count(ctx, *probeTable, nil)
		if err != nil {
			log.Fatalf("failed to count %s: %v", *probeTable, err)
		}
		log.Info("%s holds %d records", *probeTable, count)
	}

	log.Info("%s backend is reachable", store.Kind())
}
