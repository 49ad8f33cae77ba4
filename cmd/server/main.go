package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/NicolasHaas/shadowroom/pkg/auth"
	"github.com/NicolasHaas/shadowroom/pkg/datastore"
	"github.com/NicolasHaas/shadowroom/pkg/logging"
	"github.com/NicolasHaas/shadowroom/pkg/server"
	"github.com/NicolasHaas/shadowroom/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	configPath := flag.String("config", "", "YAML config file (flags override its values)")
	flag.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "TCP chat bind address")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP bind address for /metrics, /healthz and /ws (empty to disable)")
	flag.StringVar(&cfg.UsersFile, "users", cfg.UsersFile, "Credential file of username:password lines")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite credential database (used instead of -users when set)")
	flag.StringVar(&cfg.GroupsFile, "groups", cfg.GroupsFile, "YAML file defining groups to create on startup")
	flag.StringVar(&cfg.RoomName, "room", cfg.RoomName, "Room name shown in the welcome message")
	flag.BoolVar(&cfg.WebSocket, "ws", cfg.WebSocket, "Serve the chat protocol over WebSocket at /ws")
	flag.BoolVar(&cfg.ImportUsers, "import-users", false, "Import the users file into the database and exit")
	flag.BoolVar(&cfg.ExportUsers, "export-users", false, "Export all usernames as YAML and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stderr,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	if *configPath != "" {
		// Reload from the file, then parse again so explicit flags win.
		cfg = server.DefaultConfig()
		if err := server.LoadConfigFile(*configPath, &cfg); err != nil {
			slog.Error("load config", "err", err)
			os.Exit(1)
		}
		_ = flag.CommandLine.Parse(os.Args[1:])
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	if cfg.ImportUsers || cfg.ExportUsers {
		if err := runUserAction(cfg); err != nil {
			slog.Error("user action failed", "err", err)
			os.Exit(1)
		}
		return
	}

	authenticator, closeAuth, err := openAuthenticator(cfg)
	if err != nil {
		slog.Error("load credentials", "err", err)
		os.Exit(1)
	}
	defer closeAuth()

	slog.Info("starting Shadow Room", "version", version.String())
	srv := server.New(cfg, server.Dependencies{Auth: authenticator})
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		closeAuth()
		os.Exit(1)
	}
}

// openAuthenticator picks the credential database when configured and the
// plain users file otherwise. A missing or unreadable source is fatal.
func openAuthenticator(cfg server.Config) (auth.Authenticator, func(), error) {
	if cfg.DBPath != "" {
		st, err := datastore.NewProviderFactory(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		n, err := st.NonTx().CountUsers()
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		slog.Info("using credential database", "path", cfg.DBPath, "users", n)
		return st, func() { _ = st.Close() }, nil
	}

	table, err := auth.LoadFile(cfg.UsersFile)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("loaded users file", "path", cfg.UsersFile, "users", table.Len())
	return table, func() {}, nil
}

func runUserAction(cfg server.Config) error {
	if cfg.ImportUsers {
		if cfg.DBPath == "" {
			return fmt.Errorf("-import-users requires -db")
		}
		table, err := auth.LoadFile(cfg.UsersFile)
		if err != nil {
			return err
		}
		st, err := datastore.NewProviderFactory(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		n, err := st.ImportCredentials(context.Background(), table.Credentials())
		if err != nil {
			return err
		}
		slog.Info("imported users", "count", n, "db", cfg.DBPath)
	}

	if cfg.ExportUsers {
		var usernames []string
		if cfg.DBPath != "" {
			st, err := datastore.NewProviderFactory(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()
			if usernames, err = st.NonTx().ListUsernames(); err != nil {
				return err
			}
		} else {
			table, err := auth.LoadFile(cfg.UsersFile)
			if err != nil {
				return err
			}
			for _, c := range table.Credentials() {
				usernames = append(usernames, c.Username)
			}
		}
		data, err := server.ExportUsersYAML(usernames)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
	}
	return nil
}
