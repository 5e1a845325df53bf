package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ashen-labs/luamod/pkg/server"
)

// envDefault returns the environment variable value if set, otherwise the fallback.
func envDefault(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}

func main() {
	confFile := flag.String("conf", envDefault("LUAMOD_CONF", ""), "Path to server config file (env: LUAMOD_CONF)")
	scriptsDir := flag.String("scripts", envDefault("LUAMOD_SCRIPTS", ""), "Path to Lua scripts directory, overrides config (env: LUAMOD_SCRIPTS)")
	httpAddr := flag.String("addr", envDefault("LUAMOD_ADDR", ""), "HTTP listen address, overrides config (env: LUAMOD_ADDR)")
	accountsPath := flag.String("accounts", envDefault("LUAMOD_ACCOUNTS", ""), "Path to account store, overrides config (env: LUAMOD_ACCOUNTS)")
	auditPath := flag.String("audit", envDefault("LUAMOD_AUDIT", ""), "Path to audit database, overrides config (env: LUAMOD_AUDIT)")
	adminPass := flag.String("adminpass", envDefault("LUAMOD_ADMINPASS", ""), "Set the admin account password and exit (env: LUAMOD_ADMINPASS)")
	flag.Parse()

	log.Printf("Welcome to %s", server.VersionString())

	// Load config if specified, otherwise use defaults
	var cfg *server.Config
	if *confFile != "" {
		var err error
		cfg, err = server.LoadConfig(*confFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		log.Printf("Loaded config from %s", *confFile)
	} else {
		cfg = server.DefaultConfig()
	}

	// Command-line flags override config file values
	if *scriptsDir != "" {
		cfg.ScriptsDir = *scriptsDir
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *accountsPath != "" {
		cfg.AccountsPath = *accountsPath
	}
	if *auditPath != "" {
		cfg.AuditPath = *auditPath
	}

	if err := os.MkdirAll(filepath.Dir(cfg.AccountsPath), 0o755); err != nil {
		log.Fatalf("Error creating data directory: %v", err)
	}

	accounts, err := server.OpenAccountStore(cfg.AccountsPath)
	if err != nil {
		log.Fatalf("Error opening account store %s: %v", cfg.AccountsPath, err)
	}
	defer accounts.Close()

	// Maintenance mode: set the admin password and exit.
	if *adminPass != "" {
		created, err := accounts.SeedAdmin(*adminPass, cfg.AdminAuthority)
		if err != nil {
			log.Fatalf("Error setting admin password: %v", err)
		}
		if created {
			fmt.Println("Admin account created.")
		} else {
			fmt.Println("Admin password updated.")
		}
		return
	}

	if err := os.MkdirAll(filepath.Dir(cfg.AuditPath), 0o755); err != nil {
		log.Fatalf("Error creating data directory: %v", err)
	}
	audit, err := server.OpenAuditLog(cfg.AuditPath, cfg.AuditLimit, cfg.AuditTimeout)
	if err != nil {
		log.Fatalf("Error opening audit log %s: %v", cfg.AuditPath, err)
	}
	defer audit.Close()

	srv := server.New(cfg, accounts, audit)
	if err := srv.LoadScripts(); err != nil {
		log.Fatalf("Error loading scripts from %s: %v", cfg.ScriptsDir, err)
	}
	log.Printf("Loaded %d commands from %s", srv.Manager().Count(), cfg.ScriptsDir)

	srv.Start()
	web := server.NewWebServer(srv)

	// Graceful shutdown on SIGINT/SIGTERM.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Printf("Received %s, shutting down", s)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := web.Stop(ctx); err != nil {
			log.Printf("Web server shutdown error: %v", err)
		}
	}()

	log.Printf("Starting %s on %s...", cfg.ServerName, cfg.HTTPAddr)
	if err := web.Start(); err != nil {
		log.Fatalf("Web server error: %v", err)
	}
	srv.Stop()
}
