package models

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/golang/glog"

	e "github.com/microcosm-cc/appstore/errors"
	h "github.com/microcosm-cc/appstore/helpers"
	"github.com/microcosm-cc/appstore/pubsub"
	"github.com/microcosm-cc/appstore/queue"
)

// Registry is the process-wide directory of stores. It is an explicit
// object constructed once in main.go and handed to everything that needs a
// lookup; there is no ambient global. It owns the shared version counter
// and history ledger for the life of the process.
type Registry struct {
	Versions  *VersionCounter
	History   HistoryStore
	Scheduler queue.Scheduler

	// Locks serializes rebuilds of one store across every process consuming
	// the shared queue. Nil means this process is the only rebuild worker
	// and the per-store mutex suffices.
	Locks queue.Locker

	// NoCache turns every store into a direct database read and disables
	// rebuild scheduling. Explicit configuration, only for deterministic
	// testing and local development.
	NoCache bool

	mu     sync.RWMutex
	stores map[string]*Store
}

// NewRegistry wires the shared collaborators. Scheduler may be nil, in
// which case mutations never schedule rebuilds (nocache mode).
func NewRegistry(
	versions *VersionCounter,
	history HistoryStore,
	scheduler queue.Scheduler,
	noCache bool,
) *Registry {

	return &Registry{
		Versions:  versions,
		History:   history,
		Scheduler: scheduler,
		NoCache:   noCache,
		stores:    map[string]*Store{},
	}
}

// Register records a store under its name. Called once per store at process
// startup before any traffic; a duplicate name is a configuration error and
// fatal.
func (r *Registry) Register(s *Store) {
	err := r.register(s)
	if err != nil {
		glog.Fatal(err)
	}
}

func (r *Registry) register(s *Store) error {
	if s.Name == "" {
		return fmt.Errorf("store must have a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stores[s.Name]; exists {
		return fmt.Errorf("store already registered at %s", s.Name)
	}

	s.registry = r
	r.stores[s.Name] = s

	return nil
}

// Lookup returns the store registered under name
func (r *Registry) Lookup(name string) (*Store, int, error) {
	r.mu.RLock()
	s, exists := r.stores[name]
	r.mu.RUnlock()

	if !exists {
		return nil, http.StatusNotFound, e.New(
			"registry.Lookup",
			e.StoreNotFound,
			fmt.Sprintf("no store registered at %s", name),
		)
	}

	return s, http.StatusOK, nil
}

// StoreNames returns every registered name, sorted for deterministic output
func (r *Registry) StoreNames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)

	return names
}

// FullSnapshot returns every store's list at once, plus the global current
// version under the "version" key
func (r *Registry) FullSnapshot() (map[string]interface{}, int, error) {
	out := map[string]interface{}{}

	for _, name := range r.StoreNames() {
		s, status, err := r.Lookup(name)
		if err != nil {
			return nil, status, err
		}

		list, status, err := s.Data()
		if err != nil {
			return nil, status, err
		}

		out[name] = list
	}

	version, _, err := r.Versions.Current()
	if err != nil {
		return nil, http.StatusInternalServerError, err
	}
	out["version"] = version

	return out, http.StatusOK, nil
}

// StoreVersion returns the most relevant version for one store: the
// ledger's latest record for that store, falling back to the global current
// version when the store has no record yet
func (r *Registry) StoreVersion(name string) int64 {
	version, found, err := r.History.LatestVersionFor(name)
	if err != nil {
		glog.Errorf("History.LatestVersionFor(%s) %+v", name, err)
	}
	if found {
		return version
	}

	current, _, err := r.Versions.Current()
	if err != nil {
		glog.Errorf("Versions.Current() %+v", err)
	}

	return current
}

// ReloadAll forces every store's snapshot to a freshly computed state,
// advances the version once, appends one global history record and
// broadcasts. Used for disaster recovery and cold start.
func (r *Registry) ReloadAll() (int64, int, error) {
	db, err := h.GetConnection()
	if err != nil {
		return 0, http.StatusInternalServerError, err
	}

	for _, name := range r.StoreNames() {
		s, status, err := r.Lookup(name)
		if err != nil {
			return 0, status, err
		}

		err = s.reload(db)
		if err != nil {
			return 0, http.StatusInternalServerError, err
		}
	}

	version, err := r.Versions.Advance()
	if err != nil {
		return 0, http.StatusInternalServerError, err
	}

	err = r.History.Append(HistoryRecordType{
		Version: version,
		State:   StateFullReload,
	})
	if err != nil {
		return 0, http.StatusInternalServerError, err
	}

	pubsub.Broadcast(version)

	return version, http.StatusOK, nil
}

// RunRebuild is the worker entry point for scheduled rebuild jobs. An
// unknown store name is a configuration bug and a permanent failure: it is
// logged and the job dropped, never retried. Transient failures are
// returned so the queue can redeliver.
func (r *Registry) RunRebuild(storeName string, itemID int64) error {
	s, status, err := r.Lookup(storeName)
	if err != nil {
		if status == http.StatusNotFound {
			glog.Errorf("rebuild job for unregistered store %s dropped", storeName)
			return nil
		}

		return err
	}

	version, _, err := s.Rebuild(itemID)
	if err != nil {
		return err
	}

	pubsub.Broadcast(version)

	return nil
}
