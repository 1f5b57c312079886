package datahub

import (
	"log"
	"sync"

	"callout_framework/internal/aba"
	"callout_framework/internal/addresses"
	"callout_framework/internal/incidents"
	"callout_framework/internal/postcodes"
	"callout_framework/internal/taskmap"
)

// Paths names the five source files/directories the hub loads.
type Paths struct {
	Postcodes string
	Addresses string
	ABA       string
	Incidents string
	TaskIDs   string
}

// Source keys used by the path registry and the reload endpoint.
const (
	SourcePostcodes = "postcodes"
	SourceAddresses = "addresses"
	SourceABA       = "aba"
	SourceIncidents = "incidents"
	SourceTaskIDs   = "task_ids"
)

// ApplyOverrides replaces any path for which the overrides map has a
// non-empty entry.
func (p Paths) ApplyOverrides(overrides map[string]string) Paths {
	if v := overrides[SourcePostcodes]; v != "" {
		p.Postcodes = v
	}
	if v := overrides[SourceAddresses]; v != "" {
		p.Addresses = v
	}
	if v := overrides[SourceABA]; v != "" {
		p.ABA = v
	}
	if v := overrides[SourceIncidents]; v != "" {
		p.Incidents = v
	}
	if v := overrides[SourceTaskIDs]; v != "" {
		p.TaskIDs = v
	}
	return p
}

type snapshot struct {
	postcodes *postcodes.Directory
	addresses *addresses.Directory
	aba       *aba.Directory
	incidents *incidents.Matrix
	tasks     *taskmap.Map
}

// Hub owns the loaded reference data and swaps it atomically on reload so
// in-flight lookups always see one consistent generation. Until the first
// successful LoadAll the directory accessors return nil; callers gate on
// Ready before serving lookups.
type Hub struct {
	mu        sync.RWMutex
	paths     Paths
	dayUnit   string
	nightUnit string
	snap      snapshot
}

func New(paths Paths, dayAssistUnit, nightAssistUnit string) *Hub {
	return &Hub{paths: paths, dayUnit: dayAssistUnit, nightUnit: nightAssistUnit}
}

// SetPaths replaces the source paths used by the next reload.
func (h *Hub) SetPaths(paths Paths) {
	h.mu.Lock()
	h.paths = paths
	h.mu.Unlock()
}

// Paths returns the current source paths.
func (h *Hub) Paths() Paths {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.paths
}

// LoadAll loads every source. All five must load; a failure leaves the
// previous snapshot in place.
func (h *Hub) LoadAll() error {
	h.mu.RLock()
	paths := h.paths
	dayUnit, nightUnit := h.dayUnit, h.nightUnit
	h.mu.RUnlock()

	pc, err := postcodes.Load(paths.Postcodes)
	if err != nil {
		return err
	}
	addr, err := addresses.Load(paths.Addresses, pc.AsMap())
	if err != nil {
		return err
	}
	sites, err := aba.Load(paths.ABA)
	if err != nil {
		return err
	}
	matrix, err := incidents.LoadDir(paths.Incidents)
	if err != nil {
		return err
	}
	tasks, err := taskmap.Load(paths.TaskIDs, dayUnit, nightUnit)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.snap = snapshot{postcodes: pc, addresses: addr, aba: sites, incidents: matrix, tasks: tasks}
	h.mu.Unlock()
	log.Printf("datahub: loaded %d postcodes, %d addresses, %d alarm sites, %d districts",
		pc.Len(), addr.Len(), sites.Len(), len(matrix.Districts()))
	return nil
}

// ReloadAll is LoadAll with logging suited to background reloads.
func (h *Hub) ReloadAll() error {
	if err := h.LoadAll(); err != nil {
		log.Printf("datahub: reload failed, keeping previous data: %v", err)
		return err
	}
	return nil
}

// Ready reports whether a snapshot has ever loaded.
func (h *Hub) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap.addresses != nil
}

func (h *Hub) Postcodes() *postcodes.Directory {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap.postcodes
}

func (h *Hub) Addresses() *addresses.Directory {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap.addresses
}

func (h *Hub) ABA() *aba.Directory {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap.aba
}

func (h *Hub) Incidents() *incidents.Matrix {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap.incidents
}

func (h *Hub) Tasks() *taskmap.Map {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snap.tasks
}
