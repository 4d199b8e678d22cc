// Command mmdb builds a motion matching pose database from an animation
// library, stores it in SQLite and optionally writes diagnostic reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/banshee-data/motion.match/internal/config"
	"github.com/banshee-data/motion.match/internal/monitoring"
	"github.com/banshee-data/motion.match/internal/motion/storage/sqlite"
	"github.com/banshee-data/motion.match/internal/version"
)

var (
	configPath  = flag.String("config", "", "Matching config JSON (default: "+config.DefaultConfigPath+")")
	libraryPath = flag.String("library", "", "Animation library JSON to preprocess")
	dbPath      = flag.String("db", "motion.db", "SQLite store path")
	name        = flag.String("name", "", "Database name (default: library file name)")
	plotDir     = flag.String("plot-dir", "", "Directory for PNG trajectory and cost plots")
	htmlPath    = flag.String("html", "", "Write an HTML coverage report to this path")
	listOnly    = flag.Bool("list", false, "List stored databases and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("mmdb", version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	if *listOnly {
		if err := listDatabases(ctx, store, os.Stdout); err != nil {
			log.Fatalf("failed to list databases: %v", err)
		}
		return
	}

	if *libraryPath == "" {
		log.Fatal("-library is required")
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	monitoring.SetDebugLevel(cfg.GetDebugLevel())

	dbName := *name
	if dbName == "" {
		dbName = strings.TrimSuffix(filepath.Base(*libraryPath), filepath.Ext(*libraryPath))
	}

	log.Printf("mmdb %s: building %q from %s", version.String(), dbName, *libraryPath)
	res, err := build(ctx, buildOptions{
		Name:        dbName,
		LibraryPath: *libraryPath,
		Config:      cfg,
		Store:       store,
	})
	if err != nil {
		log.Fatalf("build failed: %v", err)
	}
	log.Printf("stored %s", res.Record)

	if err := writeReports(res, reportOptions{PlotDir: *plotDir, HTMLPath: *htmlPath, Text: os.Stdout}); err != nil {
		log.Fatalf("report failed: %v", err)
	}
}

func loadConfig(path string) (*config.MatchConfig, error) {
	if path == "" {
		return config.LoadMatchConfig(config.DefaultConfigPath)
	}
	return config.LoadMatchConfig(path)
}
