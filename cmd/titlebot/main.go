// Command titlebot runs the title handoff coordination server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maddasher/titlebot/internal/auth"
	"github.com/maddasher/titlebot/internal/cli"
	"github.com/maddasher/titlebot/internal/engine"
	httpapi "github.com/maddasher/titlebot/internal/http"
	"github.com/maddasher/titlebot/internal/notify"
	"github.com/maddasher/titlebot/internal/scheduler"
	"github.com/maddasher/titlebot/internal/server"
	"github.com/maddasher/titlebot/internal/storage"
	"github.com/maddasher/titlebot/internal/storage/file"
	"github.com/maddasher/titlebot/internal/storage/sqlite"
	"github.com/maddasher/titlebot/internal/ws"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		log.Fatalf("titlebot: %v", err)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "titlebot",
		Short: "Queued title-slot coordination server",
	}
	root.AddCommand(serveCmd(), initCmd())
	return root
}

func serveCmd() *cobra.Command {
	var (
		addr       string
		socketPath string
		dbPath     string
		dataDir    string
		configPath string
		keysPath   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the titlebot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadServerConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			if socketPath != "" {
				cfg.SocketPath = socketPath
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}

			store, err := openStore(cfg.DBPath, dataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			keyring, err := auth.LoadKeyring(keysPath)
			if err != nil {
				return fmt.Errorf("load keyring: %w", err)
			}

			seed := cfg.Seed()
			eng, err := engine.New(store, &seed)
			if err != nil {
				return fmt.Errorf("init engine: %w", err)
			}
			hub := ws.NewHub()
			eng.WithNotifier(hub).WithNotifier(notify.NewLogger())

			// Boot-time import keeps the registry aligned with the
			// config file; known titles come through untouched.
			created, err := eng.ImportTitles(cfg.Titles)
			if err != nil {
				return fmt.Errorf("import titles: %w", err)
			}
			if len(created) > 0 {
				log.Printf("titlebot: created %d title(s): %v", len(created), created)
			}

			svc := httpapi.NewService(eng)
			router := httpapi.NewRouter(svc, hub.Handler(), auth.Middleware(keyring))

			srv, err := server.New(server.Config{
				Addr:       cfg.ListenAddr,
				SocketPath: cfg.SocketPath,
				Handler:    router,
			})
			if err != nil {
				return fmt.Errorf("init server: %w", err)
			}

			sched := scheduler.New(eng, scheduler.DefaultInterval)
			sched.Start(cmd.Context())
			defer sched.Stop()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("titlebot: listening on %s", cfg.ListenAddr)
				errCh <- srv.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return err
				}
			case sig := <-sigCh:
				log.Printf("titlebot: received %s, shutting down", sig)
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					return fmt.Errorf("shutdown: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&socketPath, "socket", "", "unix socket path (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path; empty with --data-dir selects the file store")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "directory for the plain-file store (used when --db is empty)")
	cmd.Flags().StringVar(&configPath, "config", "titlebot.yaml", "server config file")
	cmd.Flags().StringVar(&keysPath, "keys-file", auth.ResolveKeysPath(), "API keys file")
	return cmd
}

// openStore picks the backend: resilient SQLite by default, the plain
// file store when the db path is cleared and a data dir is given.
func openStore(dbPath, dataDir string) (storage.Store, error) {
	if dbPath != "" {
		st, err := sqlite.New(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return sqlite.NewResilient(st), nil
	}
	if dataDir == "" {
		return nil, fmt.Errorf("either --db or --data-dir required")
	}
	st, err := file.New(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open file store: %w", err)
	}
	return st, nil
}

func initCmd() *cobra.Command {
	var (
		configPath string
		keysPath   string
		role       string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config and generate an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cli.InitConfigFile(configPath); err != nil {
				if !os.IsExist(err) {
					// An existing config is fine; init is re-runnable
					// for key generation.
					fmt.Fprintf(cmd.OutOrStdout(), "%v\n", err)
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
			}

			key, err := cli.InitKeysFile(keysPath, auth.Role(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated %s key (shown once): %s\n", role, key)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "titlebot.yaml", "server config file to create")
	cmd.Flags().StringVar(&keysPath, "keys-file", auth.ResolveKeysPath(), "API keys file to create or extend")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleAdmin), "role for the generated key (member, guardian, admin)")
	return cmd
}
