package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/nhle/chronicle/internal/app"
	"github.com/nhle/chronicle/internal/auth"
	"github.com/nhle/chronicle/internal/credential"
	"github.com/nhle/chronicle/internal/localstore"
	"github.com/nhle/chronicle/internal/model"
	"github.com/nhle/chronicle/internal/remote"
	"github.com/nhle/chronicle/internal/workspace"
)

const usage = `usage: chronicle [-config path] <command> [args]

commands:
  run                 open the dashboard (default)
  init                write a default config file
  login <token>       store a session token from the hosted backend
  login -issue <user> issue a token with auth.jwt_secret (self-hosted)
  logout              forget the stored session
  status              show storage mode, session and local counts
  export [file]       write all local data as JSON (stdout by default)
  import <file>       replace local collections from an export
  migrate [-clear]    copy local data to the signed-in account
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("loading .env: %v", err)
	}

	configPath := flag.String("config", model.DefaultConfigPath(), "path to config.yaml")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	cmd, args := "run", flag.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	if err := run(cmd, args, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "chronicle: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string, configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	switch cmd {
	case "run":
		return runDashboard(cfg)
	case "init":
		return initConfig(configPath, cfg)
	case "login":
		return login(cfg, args)
	case "logout":
		return logout(cfg)
	case "status":
		return showStatus(cfg)
	case "export":
		return exportData(cfg, args)
	case "import":
		return importData(cfg, args)
	case "migrate":
		return migrate(cfg, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// session opens the keyring-backed session. Without a usable keyring the
// user is treated as signed out.
func session(cfg *model.AppConfig) (*auth.SessionProvider, error) {
	creds, err := credential.Open(model.ConfigDir())
	if err != nil {
		return nil, err
	}
	p := auth.NewSessionProvider(creds, cfg.Auth.JWTSecret)
	if err := p.Load(); err != nil {
		return nil, err
	}
	return p, nil
}

func openWorkspace(ctx context.Context, cfg *model.AppConfig) (*workspace.Workspace, error) {
	var provider auth.Provider
	p, err := session(cfg)
	if err != nil {
		log.Printf("session unavailable, continuing signed out: %v", err)
		provider = auth.NewStatic(nil)
	} else {
		provider = p
	}
	return workspace.Open(ctx, workspace.Options{Config: cfg, Auth: provider})
}

func runDashboard(cfg *model.AppConfig) error {
	if err := os.MkdirAll(model.ConfigDir(), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	logFile, err := tea.LogToFile(filepath.Join(model.ConfigDir(), "chronicle.log"), "chronicle")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	ws, err := openWorkspace(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	program := tea.NewProgram(app.New(ws), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}

func initConfig(path string, cfg *model.AppConfig) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := model.SaveConfig(path, cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func login(cfg *model.AppConfig, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	issue := fs.String("issue", "", "issue a token for this user id using auth.jwt_secret")
	email := fs.String("email", "", "email claim for an issued token")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "lifetime of an issued token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var token string
	switch {
	case *issue != "":
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("issuing a token needs auth.jwt_secret")
		}
		t, err := auth.IssueToken(*issue, *email, []byte(cfg.Auth.JWTSecret), *ttl, time.Now())
		if err != nil {
			return err
		}
		token = t
	case fs.NArg() == 1:
		token = fs.Arg(0)
	default:
		return fmt.Errorf("login needs a token or -issue <user>")
	}

	p, err := session(cfg)
	if err != nil {
		return err
	}
	u, err := p.Login(token)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s\n", describeUser(u))
	return nil
}

func logout(cfg *model.AppConfig) error {
	p, err := session(cfg)
	if err != nil {
		return err
	}
	if err := p.Logout(); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

func showStatus(cfg *model.AppConfig) error {
	ws, err := openWorkspace(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	backend := "not configured"
	if ws.Backend != nil {
		backend = ws.Backend.Driver()
	}
	user := "signed out"
	if u := ws.Auth().Current().User; u != nil {
		user = describeUser(u)
	}
	fmt.Printf("mode:     %s\n", ws.Mode())
	fmt.Printf("backend:  %s\n", backend)
	fmt.Printf("session:  %s\n", user)
	fmt.Printf("local:    %s\n", cfg.Local.Path)
	for _, ns := range localstore.Namespaces() {
		fmt.Printf("  %-20s %d\n", ns, ws.Store.Len(ns))
	}
	if ws.NeedsMigration() {
		fmt.Println("local data has not been migrated; run `chronicle migrate`")
	}
	return nil
}

func exportData(cfg *model.AppConfig, args []string) error {
	ws, err := openWorkspace(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	data := ws.Store.ExportAll()
	if len(args) == 0 {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(args[0], data, 0o600); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

func importData(cfg *model.AppConfig, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("import needs a file")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading import: %w", err)
	}

	ws, err := openWorkspace(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	if !ws.Store.ImportAll(data) {
		return fmt.Errorf("%s is not a valid export", args[0])
	}
	fmt.Println("imported")
	return nil
}

func migrate(cfg *model.AppConfig, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	clearLocal := fs.Bool("clear", false, "remove local copies when every item was copied")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ws, err := openWorkspace(ctx, cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	status, err := ws.MigrateLocalData(ctx, *clearLocal)
	for _, c := range remote.Collections() {
		ts, ok := status[c]
		if !ok {
			continue
		}
		fmt.Printf("%-13s %d/%d\n", c, ts.Migrated, ts.Total)
		for _, e := range ts.Errors {
			fmt.Printf("  %s\n", e)
		}
	}
	if err != nil {
		return err
	}
	if failed := status.Failed(); failed > 0 {
		return fmt.Errorf("%d item(s) failed to migrate", failed)
	}
	return nil
}

func describeUser(u *auth.User) string {
	if u.Email != "" {
		return fmt.Sprintf("%s (%s)", u.Email, u.ID)
	}
	return u.ID
}
