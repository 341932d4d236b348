package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/go-library-kiosk/client"
	"github.com/aluiziolira/go-library-kiosk/config"
	"github.com/aluiziolira/go-library-kiosk/covers"
	"github.com/aluiziolira/go-library-kiosk/device"
	"github.com/aluiziolira/go-library-kiosk/models"
	"github.com/aluiziolira/go-library-kiosk/session"
	"github.com/aluiziolira/go-library-kiosk/submit"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	defaultCfg := config.DefaultConfig()
	baseDefault := defaultCfg.BaseURL
	if value, ok := config.EnvString("KIOSK_BASE_URL"); ok {
		baseDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("KIOSK_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	gpsDefault := defaultCfg.GPSTimeout
	if value, ok, err := config.EnvDuration("KIOSK_GPS_TIMEOUT"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid KIOSK_GPS_TIMEOUT: %v\n", err)
		os.Exit(1)
	} else if ok {
		gpsDefault = value
	}

	baseURL := flag.String("base-url", baseDefault, "Backend API base URL")
	configFile := flag.String("config", "", "Optional YAML config file")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Ops listen address (e.g. :9090)")
	gpsTimeout := flag.Duration("gps-timeout", gpsDefault, "Location acquisition timeout")
	tokenFile := flag.String("token-file", "", "Credential store path (empty: in-memory only)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := config.DefaultConfig()
	if *configFile != "" {
		if err := config.LoadFile(*configFile, cfg); err != nil {
			slog.Error("loading config file", slog.Any("error", err))
			os.Exit(1)
		}
	}
	cfg.BaseURL = *baseURL
	cfg.MetricsAddr = *metricsAddr
	cfg.GPSTimeout = *gpsTimeout
	cfg.TokenFile = *tokenFile
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	api, err := client.NewClient(cfg)
	if err != nil {
		slog.Error("initialising api client", slog.Any("error", err))
		os.Exit(1)
	}

	coverCache, err := covers.New(cfg)
	if err != nil {
		slog.Error("initialising cover cache", slog.Any("error", err))
		os.Exit(1)
	}

	var store session.TokenStore = session.NewMemoryStore()
	if cfg.TokenFile != "" {
		store = session.NewFileStore(filepath.Clean(cfg.TokenFile))
	}

	limits := config.NewLimitStore(cfg)
	sessions := session.NewManager(api, store, limits)
	scanner := device.NewScanner()
	locator := device.NewLocator(platformProvider(), cfg.GPSTimeout, cfg.GPSCache)
	ui := &terminalUI{}
	coordinator := submit.New(api, sessions, scanner, locator, ui, cfg.AutoLogoutDelay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opsServer *http.Server
	if cfg.MetricsAddr != "" {
		router := mux.NewRouter()
		router.Handle("/metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
		router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
		}).Methods(http.MethodGet)

		opsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: router}
		go func() {
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("ops server failed", slog.Any("error", err))
			}
		}()
		slog.Info("ops server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	// Late-patch the backend-owned limits; the kiosk keeps running on the
	// configured defaults when the fetch fails.
	go func() {
		remote, err := api.FetchRemoteConfig(ctx)
		if err != nil {
			slog.Warn("remote config unavailable, keeping defaults", slog.Any("error", err))
			return
		}
		limits.Patch(config.Limits{
			MaxLoanLimit: remote.MaxLoanLimit,
			AlertDays:    remote.AlertDays,
			LimitDays:    remote.LimitDays,
		})
		slog.Info("remote config applied", slog.Int("max_loan_limit", remote.MaxLoanLimit))
	}()

	// Silent restore from stored credentials, the reload path.
	if sess, err := sessions.Restore(ctx); err == nil {
		fmt.Printf("Welcome back, %s.\n", sess.UserName())
		coverCache.Prefetch(sess.Mirror().All())
	} else if !errors.Is(err, session.ErrNoCredentials) {
		slog.Warn("session restore failed", slog.Any("error", err))
	}

	app := &kioskApp{
		cfg:         cfg,
		limits:      limits,
		api:         api,
		sessions:    sessions,
		coordinator: coordinator,
		covers:      coverCache,
		camera:      device.NewManualCamera(),
		ui:          ui,
	}
	app.run(ctx)

	coordinator.Logout(context.Background())
	if opsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("ops server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
}

// terminalUI is the submit.UI for a line-based front end. Lock parks the
// prompt loop; warnings print inline and stay on screen by nature.
type terminalUI struct {
	locked atomic.Bool
}

func (u *terminalUI) Lock()   { u.locked.Store(true) }
func (u *terminalUI) Unlock() { u.locked.Store(false) }

func (u *terminalUI) Locked() bool { return u.locked.Load() }

func (u *terminalUI) Notify(msg string, warning bool) {
	if warning {
		fmt.Printf("!! %s\n", msg)
		return
	}
	fmt.Printf(">> %s\n", msg)
}

func (u *terminalUI) Progress(main, sub string) {
	fmt.Printf(".. %s (%s)\n", main, sub)
}

type kioskApp struct {
	cfg         *config.Config
	limits      *config.LimitStore
	api         *client.Client
	sessions    *session.Manager
	coordinator *submit.Coordinator
	covers      *covers.Cache
	camera      *device.ManualCamera
	ui          *terminalUI
}

func (a *kioskApp) run(ctx context.Context) {
	rl := liner.NewLiner()
	defer rl.Close()
	rl.SetCtrlCAborts(true)

	fmt.Println("Library kiosk ready. Type 'help' for commands.")
	for {
		if ctx.Err() != nil {
			return
		}
		if a.ui.Locked() {
			// the coordinator owns the screen mid-transaction
			time.Sleep(50 * time.Millisecond)
			continue
		}

		line, err := rl.Prompt("kiosk> ")
		if err != nil {
			// Ctrl-C or EOF ends the kiosk loop.
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rl.AppendHistory(line)

		if quit := a.dispatch(ctx, line); quit {
			return
		}
	}
}

func (a *kioskApp) dispatch(ctx context.Context, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "help":
		printHelp()
	case "login":
		a.login(ctx, rest)
	case "logout":
		a.coordinator.Logout(ctx)
		fmt.Println("Logged out.")
	case "search":
		a.withSession(func(sess *session.Session) {
			printBooks(sess.Mirror().SearchPrefix(rest), sess, a.limits.Current())
		})
	case "all":
		a.withSession(func(sess *session.Session) {
			printBooks(sess.Mirror().All(), sess, a.limits.Current())
		})
	case "loans":
		a.withSession(func(sess *session.Session) {
			printBooks(sess.Mirror().LoansOf(sess.UserName()), sess, a.limits.Current())
		})
	case "returned":
		a.withSession(func(sess *session.Session) {
			printBooks(sess.Mirror().ReturnedSince(time.Now(), a.cfg.RecentReturnDays), sess, a.limits.Current())
		})
	case "add":
		a.withSession(func(sess *session.Session) {
			kind, err := sess.AddIntent(rest)
			if err != nil {
				fmt.Printf("!! %v\n", err)
				return
			}
			fmt.Printf(">> staged %q as %s (%d in cart)\n", rest, kind, sess.CartLen())
		})
	case "remove":
		a.withSession(func(sess *session.Session) {
			index, err := strconv.Atoi(rest)
			if err != nil {
				fmt.Println("!! usage: remove <index>")
				return
			}
			title, err := sess.RemoveIntent(index)
			if err != nil {
				fmt.Printf("!! %v\n", err)
				return
			}
			fmt.Printf(">> removed %q\n", title)
		})
	case "cart":
		a.withSession(func(sess *session.Session) {
			titles := sess.CartTitles()
			if len(titles) == 0 {
				fmt.Println("Cart is empty.")
				return
			}
			for i, title := range titles {
				fmt.Printf("  [%d] %s\n", i, title)
			}
		})
	case "scan":
		if err := a.coordinator.BeginScan(ctx, a.camera); err != nil {
			fmt.Printf("!! %v\n", err)
			return false
		}
		fmt.Println("Scan mode: point the camera at the location code ('code <value>' to simulate).")
	case "code":
		if err := a.camera.Inject(rest); err != nil {
			fmt.Printf("!! %v\n", err)
		}
	case "cancel":
		if err := a.coordinator.CancelScan(ctx); err != nil {
			fmt.Printf("!! %v\n", err)
		} else {
			fmt.Println("Scan cancelled.")
		}
	case "cover":
		a.withSession(func(sess *session.Session) {
			rec, ok := sess.Mirror().Get(rest)
			if !ok {
				fmt.Printf("!! no record for %q\n", rest)
				return
			}
			body, err := a.covers.GetRecord(rec)
			if err != nil {
				fmt.Printf("!! %v\n", err)
				return
			}
			fmt.Printf(">> cover for %q: %d bytes\n", rest, len(body))
		})
	case "reset":
		res, err := a.api.RequestPasswordReset(ctx, rest)
		if err != nil {
			fmt.Printf("!! %v\n", err)
			return false
		}
		if res.Success {
			fmt.Println(">> reset mail sent")
		} else {
			fmt.Printf("!! %s\n", res.Message)
		}
	case "quit", "exit":
		return true
	default:
		fmt.Printf("!! unknown command %q (try 'help')\n", cmd)
	}
	return false
}

func (a *kioskApp) login(ctx context.Context, rest string) {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		fmt.Println("!! usage: login <email> <password>")
		return
	}

	sess, res, err := a.sessions.Login(ctx, fields[0], fields[1])
	if err != nil {
		fmt.Printf("!! %v\n", err)
		return
	}
	if sess == nil && res.NeedsRegistration {
		fmt.Printf(">> first login: complete registration at %s?page=sign_up\n", res.TargetURL)
		return
	}
	fmt.Printf("Welcome, %s. You currently hold %d book(s).\n", sess.UserName(), sess.LoanCount())
	a.covers.Prefetch(sess.Mirror().All())
}

func (a *kioskApp) withSession(fn func(*session.Session)) {
	sess := a.sessions.Current()
	if sess == nil {
		fmt.Println("!! not logged in")
		return
	}
	fn(sess)
}

func printBooks(records []models.BookRecord, sess *session.Session, limits config.Limits) {
	if len(records) == 0 {
		fmt.Println("No matching books.")
		return
	}
	now := time.Now()
	for _, rec := range records {
		marker := " "
		switch {
		case rec.HeldBy(sess.UserName()):
			marker = "*"
		case rec.Status == models.StatusOnLoan:
			marker = "-"
		}
		due := ""
		if rec.DueDate != "" {
			due = " due " + rec.DueDate
			switch models.ClassifyDue(rec.DueDate, now, limits.AlertDays, limits.LimitDays) {
			case models.DueCritical:
				due += " (!)"
			case models.DueSoon:
				due += " (soon)"
			}
		}
		shelf := ""
		if rec.Bookshelf != "" {
			shelf = " [" + rec.Bookshelf + "]"
		}
		fmt.Printf(" %s %-30s %s%s%s\n", marker, rec.Title, rec.Author, due, shelf)
	}
}

func printHelp() {
	fmt.Print(`Commands:
  login <email> <password>   authenticate
  all | search <prefix>      browse the inventory
  loans | returned           your loans / recent returns
  add <title>                stage a borrow or return intent
  remove <index>             unstage by cart index
  cart                       show staged intents
  scan                       enter scan mode (then 'code <value>')
  cancel                     leave scan mode without submitting
  cover <title>              fetch the cover image
  reset <email>              request a password reset mail
  logout | quit
`)
}

// platformProvider returns the geolocation source for this build. Desktop
// kiosks have no positioning hardware, so the nil provider makes every
// acquisition resolve to the unsupported sentinel.
func platformProvider() device.PositionProvider {
	return nil
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelWarn)
	}

	// Logs go to stderr; stdout belongs to the interactive prompt.
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

