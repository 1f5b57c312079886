package app

import (
	"context"
	"log"
	"net/http"

	"callout_framework/internal/config"
	"callout_framework/internal/datahub"
	"callout_framework/internal/dispatch"
	"callout_framework/internal/httpapi"
	"callout_framework/internal/store"
	"callout_framework/internal/watch"
)

// App wires the callout components together.
type App struct {
	cfg     config.Config
	store   *store.Store
	hub     *datahub.Hub
	client  *dispatch.Client
	watcher *watch.Watcher
	mux     *http.ServeMux
}

func New(cfg config.Config) (*App, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	paths := datahub.Paths{
		Postcodes: cfg.PostcodesPath,
		Addresses: cfg.AddressesPath,
		ABA:       cfg.ABAPath,
		Incidents: cfg.IncidentsDir,
		TaskIDs:   cfg.TaskIDsPath,
	}
	overrides, err := st.Sources(context.Background())
	if err != nil {
		return nil, err
	}
	hub := datahub.New(paths.ApplyOverrides(overrides), cfg.DayAssistUnit, cfg.NightAssistUnit)
	// A missing source file on boot is an operator problem, not a crash:
	// the API stays up so /ops/sources and /ops/reload can fix it.
	if err := hub.LoadAll(); err != nil {
		log.Printf("initial load failed: %v", err)
	}

	client := dispatch.New(cfg.RotaBaseURL, cfg.RotaClientID, cfg.RotaTimeout, func(t dispatch.Token, username string) {
		err := st.SaveToken(context.Background(), store.Token{
			Username:     username,
			AccessToken:  t.AccessToken,
			RefreshToken: t.RefreshToken,
			ExpiresAt:    t.ExpiresAt,
		})
		if err != nil {
			log.Printf("persist token: %v", err)
		}
	})
	if tok, ok, err := st.LoadToken(context.Background()); err != nil {
		log.Printf("load token: %v", err)
	} else if ok {
		client.SetToken(dispatch.Token{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    tok.ExpiresAt,
		})
	}

	watcher := watch.New(cfg, hub)
	mux := http.NewServeMux()
	router := httpapi.NewRouter(cfg, hub, st, client)
	router.Register(mux)
	return &App{cfg: cfg, store: st, hub: hub, client: client, watcher: watcher, mux: mux}, nil
}

// Run starts the watcher and HTTP server.
func (a *App) Run(ctx context.Context) error {
	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	srv := &http.Server{Addr: ":" + a.cfg.HTTPPort, Handler: a.mux}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()
	log.Printf("http listening on %s", a.cfg.HTTPPort)
	return srv.ListenAndServe()
}

func (a *App) Hub() *datahub.Hub   { return a.hub }
func (a *App) Store() *store.Store { return a.store }
func (a *App) Mux() *http.ServeMux { return a.mux }
