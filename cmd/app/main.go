package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	sqliteadapter "github.com/thijsken/gmsnederland/internal/adapters/db/sqlite"
	httpadapter "github.com/thijsken/gmsnederland/internal/adapters/http"
	rpcadapter "github.com/thijsken/gmsnederland/internal/adapters/rpcjson"
	"github.com/thijsken/gmsnederland/internal/application"
	"github.com/thijsken/gmsnederland/internal/domain"
	"github.com/thijsken/gmsnederland/internal/mailbox"
	"github.com/urfave/cli/v3"
)

// Plates the original ANPR deployment watched for.
var defaultWatchlist = []string{"XX-123-X", "99-ABC-1", "00-POL-911"}

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "gmsnederland",
		Usage: "GMS Nederland dispatch backend server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			authCommand(),
			apikeyCommand(),
			meldingenCommand(),
			unitsCommand(),
			alarmCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, serverOptions{
				Addr:              ":8080",
				RPCSocket:         "/tmp/gmsnederland.sock",
				DBPath:            "gmsnederland.db",
				BootstrapEmail:    "meldkamer@gmsnederland.local",
				BootstrapPassword: "meldkamer",
				BootstrapOwnerID:  "meldkamer",
				Watchlist:         defaultWatchlist,
			})
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

type serverOptions struct {
	Addr              string
	RPCSocket         string
	DBPath            string
	BootstrapEmail    string
	BootstrapPassword string
	BootstrapOwnerID  string
	Watchlist         []string
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Value: "/tmp/gmsnederland.sock", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Value: "gmsnederland.db", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "bootstrap-operator-email", Value: "meldkamer@gmsnederland.local", Usage: "initial operator email"},
			&cli.StringFlag{Name: "bootstrap-operator-password", Value: "meldkamer", Usage: "initial operator password when no operators exist"},
			&cli.StringFlag{Name: "bootstrap-owner-id", Value: "meldkamer", Usage: "owner id of the initial operator"},
			&cli.StringFlag{Name: "anpr-watchlist", Value: strings.Join(defaultWatchlist, ","), Usage: "csv of plates that trigger an ANPR melding"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx, serverOptions{
				Addr:              c.String("addr"),
				RPCSocket:         c.String("rpc-socket"),
				DBPath:            c.String("db-path"),
				BootstrapEmail:    c.String("bootstrap-operator-email"),
				BootstrapPassword: c.String("bootstrap-operator-password"),
				BootstrapOwnerID:  c.String("bootstrap-owner-id"),
				Watchlist:         splitCSV(c.String("anpr-watchlist")),
			})
		},
	}
}

func runServer(ctx context.Context, opts serverOptions) error {
	db, err := sqliteadapter.Open(opts.DBPath)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return err
	}

	repo := sqliteadapter.NewDispatchRepository(db)
	service := application.NewDispatchService(repo, mailbox.New(), opts.Watchlist)
	if err := service.BootstrapOperator(ctx, opts.BootstrapEmail, opts.BootstrapPassword, opts.BootstrapOwnerID); err != nil {
		return err
	}

	router := httpadapter.NewRouter(service)
	srv := &http.Server{Addr: opts.Addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(opts.RPCSocket, service)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	log.Printf("json-rpc listening on unix://%s", opts.RPCSocket)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Operator authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login as operator and store the bearer token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080"},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					cfg.Server = c.String("server")
					var out struct {
						Token string `json:"token"`
					}
					if err := doLogin(ctx, cfg, c.String("email"), c.String("password"), c.String("token-name"), &out); err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("logged in as %s\n", c.String("email"))
					return nil
				},
			},
			{
				Name:  "operator-create",
				Usage: "Create a dashboard operator (uds transport)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "owner-id", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.Operator
					if err := doOperatorCreate(ctx, cfg, c.String("email"), c.String("password"), c.String("owner-id"), &out); err != nil {
						return err
					}
					printKV([][2]string{{"email", out.Email}, {"owner_id", out.OwnerID}})
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Clear the stored bearer token",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					cfg.Token = ""
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}
}

func apikeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "apikey",
		Usage: "API key commands",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate (or rotate) the API key of an owner",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner-id", Required: true},
					&cli.StringFlag{Name: "server-id"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
					&cli.BoolFlag{Name: "save", Usage: "store the key in the CLI config"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						APIKey  string `json:"apiKey"`
						OwnerID string `json:"ownerId"`
					}
					if err := doAPIKeyGenerate(ctx, cfg, c.String("owner-id"), c.String("server-id"), &out); err != nil {
						return err
					}
					if c.Bool("save") {
						cfg.APIKey = out.APIKey
						if err := saveConfig(cfg); err != nil {
							return err
						}
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"owner_id", c.String("owner-id")}, {"api_key", out.APIKey}})
					return nil
				},
			},
		},
	}
}

func meldingenCommand() *cli.Command {
	return &cli.Command{
		Name:  "meldingen",
		Usage: "Incident report commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List meldingen of the authenticated owner",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner-id", Usage: "owner id (uds transport only)"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Melding
					if err := doMeldingenList(ctx, cfg, c.String("owner-id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printMeldingen(out)
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "Submit a melding",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Required: true},
					&cli.StringFlag{Name: "location", Required: true},
					&cli.StringFlag{Name: "player", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var melding domain.Melding
					err = doMeldingCreate(ctx, cfg, c.String("type"), c.String("location"), c.String("player"), c.String("description"), &melding)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(melding)
					}
					printMeldingen([]domain.Melding{melding})
					return nil
				},
			},
			{
				Name:  "status",
				Usage: "Update the status of a melding",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "status", Required: true},
					&cli.StringFlag{Name: "owner-id", Usage: "owner id (uds transport only)"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var melding domain.Melding
					err = doMeldingStatus(ctx, cfg, c.String("owner-id"), uint(c.Uint("id")), c.String("status"), &melding)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(melding)
					}
					printMeldingen([]domain.Melding{melding})
					return nil
				},
			},
		},
	}
}

func unitsCommand() *cli.Command {
	return &cli.Command{
		Name:  "units",
		Usage: "Unit registry commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List units of the authenticated owner",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "owner-id", Usage: "owner id (uds transport only)"},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Unit
					if err := doUnitsList(ctx, cfg, c.String("owner-id"), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printUnits(out)
					return nil
				},
			},
			{
				Name:  "upsert",
				Usage: "Insert or replace a unit",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "type", Required: true},
					&cli.StringFlag{Name: "location", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var unit domain.Unit
					err = doUnitUpsert(ctx, cfg, c.String("id"), c.String("type"), c.String("location"), &unit)
					if err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(unit)
					}
					printUnits([]domain.Unit{unit})
					return nil
				},
			},
		},
	}
}

func alarmCommand() *cli.Command {
	return &cli.Command{
		Name:  "alarm",
		Usage: "Siren and post alarm commands",
		Commands: []*cli.Command{
			{
				Name:  "siren",
				Usage: "Queue a siren action for the game server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "action", Required: true},
					&cli.StringFlag{Name: "device-id", Required: true},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					if err := doSirenPost(ctx, cfg, c.String("action"), c.String("device-id")); err != nil {
						return err
					}
					fmt.Println("siren action queued")
					return nil
				},
			},
			{
				Name:  "siren-poll",
				Usage: "Take the pending siren action, if any",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					action, ok, err := doSirenTake(ctx, cfg)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Println("no pending action")
						return nil
					}
					return printJSON(action)
				},
			},
			{
				Name:  "post",
				Usage: "Queue a post alarm for the game server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "post-id", Required: true},
					&cli.StringFlag{Name: "trigger", Required: true},
					&cli.StringFlag{Name: "vehicle", Required: true},
					&cli.StringFlag{Name: "announcement"},
					&cli.StringFlag{Name: "address"},
					&cli.StringFlag{Name: "info"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					alarm := domain.PostAlarm{
						PostID:       c.String("post-id"),
						Trigger:      c.String("trigger"),
						Vehicle:      c.String("vehicle"),
						Announcement: c.String("announcement"),
						Address:      c.String("address"),
						Info:         c.String("info"),
					}
					if err := doPostAlarmPost(ctx, cfg, alarm); err != nil {
						return err
					}
					fmt.Println("post alarm queued")
					return nil
				},
			},
		},
	}
}

func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
