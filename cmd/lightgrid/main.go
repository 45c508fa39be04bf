package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MJE43/lightgrid/internal/api"
	"github.com/MJE43/lightgrid/internal/auth"
	"github.com/MJE43/lightgrid/internal/config"
	"github.com/MJE43/lightgrid/internal/service"
)

func main() {
	configPath := flag.String("config", "", "HCL config file")
	addr := flag.String("addr", "", "listen address")
	dbPath := flag.String("db", "", "SQLite database path")
	levelsDir := flag.String("levels", "", "directory of extra *.hcl level files")
	setToken := flag.String("set-admin-token", "", "store the admin token in the keyring and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(api.GetVersionInfo().String())
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		if err := cfg.LoadFile(*configPath); err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	cfg.ApplyEnv(os.Getenv)

	// Only flags given on the command line override file and env values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "db":
			cfg.DBPath = *dbPath
		case "levels":
			cfg.LevelsDir = *levelsDir
		}
	})

	if *setToken != "" {
		tokens := auth.NewTokenStore(cfg.KeyringService, auth.DefaultEnvVar, cfg.TokenFile)
		if err := tokens.Set(*setToken); err != nil {
			log.Fatalf("store admin token: %v", err)
		}
		fmt.Println("admin token stored")
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	if err := svc.Start(); err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	log.Printf("lightgrid %s listening on %s", api.EngineVersion, svc.Addr())

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx, "signal"); err != nil {
		log.Printf("shutdown: %v", err)
		os.Exit(1)
	}
}
