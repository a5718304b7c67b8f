// Command df is a CLI client for the Dear Friend service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dearfriend/dearfriend-go/internal/api"
	"github.com/dearfriend/dearfriend-go/internal/cache"
	"github.com/dearfriend/dearfriend-go/internal/errs"
	"github.com/dearfriend/dearfriend-go/internal/service"
	"github.com/dearfriend/dearfriend-go/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// app bundles the wired services for command handlers.
type app struct {
	auth   *service.Auth
	feed   *service.Feed
	social *service.Social
}

func usage() {
	fmt.Fprintf(os.Stderr, `df CLI
Usage:
  df [-base-url URL] [-config-dir DIR] [-v] <cmd> [args]

Commands:
  version
  sign-up          -email <e> -password <p> -username <u> [-name <display>]
  sign-in          -email <e> -password <p>
  sign-out
  whoami
  forgot-password  -email <e>
  reset-password   -token <reset token> -password <new>
  change-password  -current <p> -new <p>
  feed             [-category PERSONAL|RELATIONSHIP|CAREER] [-cursor <c>]
  post             -id <uuid>
  ask              -category <c> -body <text>
  reply            -post <uuid> -body <text>
  like             -post <uuid>                  (toggles)
  like-reply       -post <uuid> -reply <uuid>    (toggles)
  pin              -post <uuid> -reply <uuid>
  unpin            -post <uuid>
  report           -post <uuid> -reason <text>
  report-reply     -reply <uuid> -reason <text>
  block            -user <uuid>
  unblock          -user <uuid>
  blocked
  rm               -post <uuid>
`)
	os.Exit(2)
}

// main wires the session store, API client and services, then dispatches
// subcommands.
func main() {
	// .env is optional; flags and real env win.
	_ = godotenv.Load()

	baseURLDefault := os.Getenv("DF_BASE_URL")
	if baseURLDefault == "" {
		baseURLDefault = "http://localhost:3000"
	}

	baseURL := flag.String("base-url", baseURLDefault, "API base URL")
	configDir := flag.String("config-dir", session.DefaultDir(), "session storage dir")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()

	store, err := session.NewFileStore(*configDir)
	if err != nil {
		fail(err)
	}
	client := api.New(*baseURL, store, api.WithLogger(logger))
	c := cache.New()
	a := &app{
		auth:   service.NewAuth(client, store),
		feed:   service.NewFeed(client, c),
		social: service.NewSocial(client, c),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "version":
		fmt.Printf("df %s (%s)\n", version, buildDate)

	case "sign-up":
		fs := flag.NewFlagSet("sign-up", flag.ExitOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		username := fs.String("username", "", "username")
		name := fs.String("name", "", "display name (optional)")
		_ = fs.Parse(args)
		if *email == "" || *password == "" || *username == "" {
			fmt.Fprintln(os.Stderr, "need -email, -password and -username")
			os.Exit(1)
		}
		if err := a.auth.SignUp(ctx, service.SignUpInput{
			Email: *email, Password: *password, Username: *username, DisplayName: *name,
		}); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "sign-in":
		fs := flag.NewFlagSet("sign-in", flag.ExitOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "need -email and -password")
			os.Exit(1)
		}
		user, err := a.auth.SignIn(ctx, *email, *password)
		if err != nil {
			fail(err)
		}
		printJSON(user)

	case "sign-out":
		if err := a.auth.SignOut(ctx); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "whoami":
		user, err := a.auth.CurrentUser()
		if err != nil {
			fail(err)
		}
		if user == nil {
			fmt.Fprintln(os.Stderr, "not signed in")
			os.Exit(1)
		}
		printJSON(user)

	case "forgot-password":
		fs := flag.NewFlagSet("forgot-password", flag.ExitOnError)
		email := fs.String("email", "", "email")
		_ = fs.Parse(args)
		if *email == "" {
			fmt.Fprintln(os.Stderr, "need -email")
			os.Exit(1)
		}
		fmt.Println(a.auth.ForgotPassword(ctx, *email))

	case "reset-password":
		fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
		token := fs.String("token", "", "one-time reset token")
		password := fs.String("password", "", "new password")
		_ = fs.Parse(args)
		if *token == "" || *password == "" {
			fmt.Fprintln(os.Stderr, "need -token and -password")
			os.Exit(1)
		}
		if err := a.auth.ResetPassword(ctx, *token, *password); err != nil {
			fail(err)
		}
		fmt.Println("password updated; sign in again")

	case "change-password":
		fs := flag.NewFlagSet("change-password", flag.ExitOnError)
		current := fs.String("current", "", "current password")
		next := fs.String("new", "", "new password")
		_ = fs.Parse(args)
		if *current == "" || *next == "" {
			fmt.Fprintln(os.Stderr, "need -current and -new")
			os.Exit(1)
		}
		if err := a.auth.ChangePassword(ctx, *current, *next); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	default:
		runAction(ctx, a, cmd, args)
	}
}

// ---- helpers ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(err error) {
	switch {
	case errors.Is(err, errs.ErrNoSession):
		fmt.Fprintln(os.Stderr, "not signed in; run: df sign-in")
	case errors.Is(err, errs.ErrSessionExpired):
		fmt.Fprintln(os.Stderr, "session expired; run: df sign-in")
	case errors.Is(err, errs.ErrAlreadyReported):
		fmt.Fprintln(os.Stderr, "you already reported this")
	case errors.Is(err, errs.ErrInFlight):
		fmt.Fprintln(os.Stderr, "that action is already running")
	default:
		var ae *api.Error
		if errors.As(err, &ae) {
			fmt.Fprintf(os.Stderr, "api error: status=%d msg=%s\n", ae.Status, ae.Message)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}
