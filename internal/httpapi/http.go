package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"callout_framework/internal/addresses"
	"callout_framework/internal/config"
	"callout_framework/internal/datahub"
	"callout_framework/internal/dispatch"
	"callout_framework/internal/faults"
	"callout_framework/internal/metrics"
	"callout_framework/internal/rules"
	"callout_framework/internal/store"
)

// Router builds HTTP handlers for /api and /ops.
type Router struct {
	cfg    config.Config
	hub    *datahub.Hub
	store  *store.Store
	client *dispatch.Client
}

func NewRouter(cfg config.Config, hub *datahub.Hub, st *store.Store, client *dispatch.Client) *Router {
	return &Router{cfg: cfg, hub: hub, store: st, client: client}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/addresses", r.addresses)
	mux.HandleFunc("/api/addresses/search", r.searchComponents)
	mux.HandleFunc("/api/addresses/fuzzy", r.searchFuzzy)
	mux.HandleFunc("/api/incidents", r.incidents)
	mux.HandleFunc("/api/resolve", r.resolve)
	mux.HandleFunc("/api/dispatch", r.dispatch)
	mux.HandleFunc("/api/login", r.login)
	mux.HandleFunc("/ops/reload", r.reload)
	mux.HandleFunc("/ops/sources", r.sources)
	mux.HandleFunc("/ops/sources/import", r.importSource)
	mux.HandleFunc("/ops/connection", r.connection)
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/metrics", r.metricsHandler)
}

// ready rejects data-plane requests until the first successful load. The
// server deliberately starts with missing source files so /ops/sources and
// /ops/reload can fix them; until then there is no snapshot to serve from.
func (r *Router) ready(w http.ResponseWriter) bool {
	if !r.hub.Ready() {
		http.Error(w, "reference data not loaded", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// addresses is the operator typeahead over full display strings.
func (r *Router) addresses(w http.ResponseWriter, req *http.Request) {
	if !r.ready(w) {
		return
	}
	q := req.URL.Query().Get("q")
	if q == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}
	hits := r.hub.Addresses().FindByDisplayContains(q, queryLimit(req, 20))
	respondJSON(w, hits)
}

func (r *Router) searchComponents(w http.ResponseWriter, req *http.Request) {
	if !r.ready(w) {
		return
	}
	qv := req.URL.Query()
	street := qv.Get("street")
	houseNo := qv.Get("house_no")
	if street == "" || houseNo == "" {
		http.Error(w, "missing street or house_no parameter", http.StatusBadRequest)
		return
	}
	hits := r.hub.Addresses().FindByComponents(street, houseNo, qv.Get("extra"), queryLimit(req, 20))
	respondJSON(w, hits)
}

func (r *Router) searchFuzzy(w http.ResponseWriter, req *http.Request) {
	if !r.ready(w) {
		return
	}
	qv := req.URL.Query()
	street := qv.Get("street")
	houseNo := qv.Get("house_no")
	if street == "" || houseNo == "" {
		http.Error(w, "missing street or house_no parameter", http.StatusBadRequest)
		return
	}
	minScore := r.cfg.FuzzyMinScore
	if v := qv.Get("min_score"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			minScore = f
		}
	}
	hits := r.hub.Addresses().FindFuzzyStreetHouse(street, houseNo, qv.Get("letter"), queryLimit(req, r.cfg.FuzzyLimit), minScore)
	respondJSON(w, hits)
}

func (r *Router) incidents(w http.ResponseWriter, req *http.Request) {
	if !r.ready(w) {
		return
	}
	district := req.URL.Query().Get("district")
	if district == "" {
		respondJSON(w, map[string]any{"districts": r.hub.Incidents().Districts()})
		return
	}
	respondJSON(w, r.hub.Incidents().ListIncidents(district))
}

type resolveRequest struct {
	NormKey      string `json:"norm_key"`
	Street       string `json:"street"`
	HouseNo      string `json:"house_no"`
	HouseExtra   string `json:"house_extra"`
	Postcode     string `json:"postcode"`
	City         string `json:"city"`
	DistrictNo   string `json:"district_no"`
	IncidentCode string `json:"incident_code"`
	Comments     string `json:"comments"`
	UseSecondary bool   `json:"use_secondary"`
}

type resolveReply struct {
	Address         string   `json:"address"`
	IncidentCode    string   `json:"incident_code"`
	Label           string   `json:"label"`
	Units           []string `json:"units"`
	RuleApplied     bool     `json:"rule_applied"`
	RuleReason      string   `json:"rule_reason"`
	SiteName        string   `json:"site_name,omitempty"`
	AlertText       string   `json:"alert_text"`
	TaskIDs         []int    `json:"task_ids"`
	MissingUnits    []string `json:"missing_units,omitempty"`
	AssistanceAdded bool     `json:"assistance_added"`
	AssistanceUnit  string   `json:"assistance_unit,omitempty"`
}

// resolve turns an address + incident code into units, task ids and the
// composed alert text without sending anything.
func (r *Router) resolve(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !r.ready(w) {
		return
	}
	var body resolveRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reply, err := r.doResolve(body)
	if err != nil {
		metrics.IncResolutionFailed()
		respondError(w, err)
		return
	}
	metrics.IncResolutionOK()
	respondJSON(w, reply)
}

func (r *Router) doResolve(body resolveRequest) (*resolveReply, error) {
	addrs := r.hub.Addresses()
	addr, known := addrs.ByNormKey(body.NormKey)
	a := addr.Address
	if !known {
		city := body.City
		if city == "" {
			city = r.hub.Postcodes().CityForPostcode(body.Postcode)
		}
		a = addresses.MakeManualAddress(body.Street, body.HouseNo, body.HouseExtra, body.Postcode, city, body.DistrictNo)
	}

	resolver := &rules.Resolver{Incidents: r.hub.Incidents(), ABA: r.hub.ABA()}
	res, err := resolver.Resolve(a, body.IncidentCode, body.UseSecondary)
	if err != nil {
		return nil, err
	}

	sel := r.hub.Tasks().SelectForUnits(res.FinalUnits, time.Now(), r.cfg.AutoAssistance)

	siteName := ""
	if res.Site != nil {
		siteName = res.Site.Name
	}
	text := rules.ComposeAlertText(rules.ComposeInput{
		Address:      a.Display,
		City:         a.City,
		IncidentText: res.Label,
		Priority:     r.cfg.Priority,
		Comments:     body.Comments,
		SiteName:     siteName,
		IsABA:        res.IncidentCode == rules.CodeABA,
	}, res.FinalUnits)

	return &resolveReply{
		Address:         a.Display,
		IncidentCode:    res.IncidentCode,
		Label:           res.Label,
		Units:           res.FinalUnits,
		RuleApplied:     res.Rule.Applied,
		RuleReason:      res.Rule.Reason,
		SiteName:        siteName,
		AlertText:       text,
		TaskIDs:         sel.TaskIDs,
		MissingUnits:    sel.MissingUnits,
		AssistanceAdded: sel.AssistanceAdded,
		AssistanceUnit:  sel.AssistanceUnit,
	}, nil
}

// dispatch resolves and then creates the incident at the dispatch service.
func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !r.ready(w) {
		return
	}
	var body resolveRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	reply, err := r.doResolve(body)
	if err != nil {
		metrics.IncResolutionFailed()
		respondError(w, err)
		return
	}
	if len(reply.TaskIDs) == 0 {
		metrics.IncDispatchFailed()
		respondError(w, faults.Invalid("no task ids resolved for units %v", reply.Units))
		return
	}
	err = r.client.CreateIncident(req.Context(), dispatch.Incident{
		Body:     reply.AlertText,
		Priority: r.cfg.Priority,
		Location: reply.Address,
		TaskIDs:  reply.TaskIDs,
	})
	if err != nil {
		metrics.IncDispatchFailed()
		log.Printf("dispatch failed for %q: %v", reply.Address, err)
		respondError(w, err)
		return
	}
	metrics.IncDispatchSent()
	log.Printf("dispatched %q to task ids %v", reply.AlertText, reply.TaskIDs)
	respondJSON(w, reply)
}

func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Username == "" || body.Password == "" {
		http.Error(w, "username and password are required", http.StatusBadRequest)
		return
	}
	if err := r.client.LoginWithPassword(req.Context(), body.Username, body.Password); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, map[string]any{"logged_in": true, "username": body.Username})
}

func (r *Router) reload(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.hub.ReloadAll(); err != nil {
		respondError(w, err)
		return
	}
	metrics.IncReload()
	respondJSON(w, map[string]any{"reloaded": true})
}

// sources lists (GET) or overrides (PUT) the source file registry. An
// override persists across restarts and takes effect on the next reload.
func (r *Router) sources(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		overrides, err := r.store.Sources(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"paths": r.hub.Paths(), "overrides": overrides})
	case http.MethodPut:
		var body struct {
			Key  string `json:"key"`
			Path string `json:"path"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch body.Key {
		case datahub.SourcePostcodes, datahub.SourceAddresses, datahub.SourceABA, datahub.SourceIncidents, datahub.SourceTaskIDs:
		default:
			http.Error(w, "unknown source key", http.StatusBadRequest)
			return
		}
		if err := r.store.SetSource(req.Context(), body.Key, body.Path); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		overrides, err := r.store.Sources(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		r.hub.SetPaths(r.hub.Paths().ApplyOverrides(overrides))
		respondJSON(w, map[string]any{"paths": r.hub.Paths()})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// importSource copies an operator-supplied file over the active source file
// for a key and reloads. The original workflow is replacing one export at a
// time without touching the others.
func (r *Router) importSource(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Key  string `json:"key"`
		Path string `json:"path"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	paths := r.hub.Paths()
	var dest string
	switch body.Key {
	case datahub.SourcePostcodes:
		dest = paths.Postcodes
	case datahub.SourceAddresses:
		dest = paths.Addresses
	case datahub.SourceABA:
		dest = paths.ABA
	case datahub.SourceTaskIDs:
		dest = paths.TaskIDs
	default:
		http.Error(w, "unknown or non-importable source key", http.StatusBadRequest)
		return
	}
	data, err := os.ReadFile(body.Path)
	if err != nil {
		respondError(w, &faults.DataSourceError{Source: body.Path, Err: err})
		return
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := r.hub.ReloadAll(); err != nil {
		respondError(w, err)
		return
	}
	metrics.IncReload()
	log.Printf("imported %s from %s", body.Key, body.Path)
	respondJSON(w, map[string]any{"imported": body.Key, "dest": dest})
}

func (r *Router) connection(w http.ResponseWriter, req *http.Request) {
	serverOK, authOK := r.client.TestConnection(req.Context())
	respondJSON(w, map[string]any{"server": serverOK, "auth": authOK})
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if !r.hub.Ready() {
		http.Error(w, "reference data not loaded", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) metricsHandler(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, metrics.Snapshot())
}

func queryLimit(req *http.Request, def int) int {
	v := req.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// respondError maps the error taxonomy to status codes and surfaces the
// message verbatim; the operator needs the exact missing-column or
// no-match text to act on it.
func respondError(w http.ResponseWriter, err error) {
	var ve *faults.ValidationError
	var nf *faults.NotFoundError
	var ds *faults.DataSourceError
	status := http.StatusBadGateway
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &ds):
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}); err != nil {
		log.Printf("write json: %v", err)
	}
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
