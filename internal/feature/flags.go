package feature

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	qerrors "github.com/dshills/QuantaOpt/internal/errors"
)

// Flag represents a feature flag
type Flag string

// Feature flags for the QuantaOpt optimizer
const (
	// ExploitConstraints lets rules rely on declared unique keys and row-count
	// bounds to remove operators that provably have no effect.
	ExploitConstraints Flag = "exploit_constraints"

	// LimitSortFusion fuses a LIMIT directly above a SORT into a bounded sort.
	LimitSortFusion Flag = "limit_sort_fusion"

	// OptimizerTracing logs every rule attempt, not only the ones that fire.
	OptimizerTracing Flag = "optimizer_tracing"
)

// FlagMetadata contains metadata about a feature flag
type FlagMetadata struct {
	Name         Flag
	Description  string
	DefaultValue bool
	Category     string
	Stability    string // "stable", "beta", "experimental"
}

// Manager manages feature flags for one session or process.
type Manager struct {
	flags    map[Flag]*flagState
	mu       sync.RWMutex
	onChange []func(Flag, bool)
	metadata map[Flag]*FlagMetadata
}

// flagState represents the state of a single flag
type flagState struct {
	enabled    atomic.Bool
	overridden atomic.Bool
	envVar     string
}

var defaultManager = NewManager()

// Default returns the process-wide manager used by the command line tools.
func Default() *Manager {
	return defaultManager
}

// NewManager creates a manager with every flag at its default, then applies
// QUANTAOPT_FEATURE_* environment overrides.
func NewManager() *Manager {
	m := &Manager{
		flags:    make(map[Flag]*flagState),
		metadata: make(map[Flag]*FlagMetadata),
	}

	m.register(&FlagMetadata{
		Name:         ExploitConstraints,
		Description:  "Use declared unique keys and row-count bounds to eliminate redundant operators",
		DefaultValue: false,
		Category:     "optimizer",
		Stability:    "beta",
	})
	m.register(&FlagMetadata{
		Name:         LimitSortFusion,
		Description:  "Fuse LIMIT over SORT into a bounded (top-N) sort",
		DefaultValue: true,
		Category:     "optimizer",
		Stability:    "stable",
	})
	m.register(&FlagMetadata{
		Name:         OptimizerTracing,
		Description:  "Log every optimizer rule attempt",
		DefaultValue: false,
		Category:     "monitoring",
		Stability:    "stable",
	})

	m.loadFromEnvironment()
	return m
}

func (m *Manager) register(metadata *FlagMetadata) {
	state := &flagState{envVar: flagToEnvVar(metadata.Name)}
	state.enabled.Store(metadata.DefaultValue)
	m.flags[metadata.Name] = state
	m.metadata[metadata.Name] = metadata
}

// loadFromEnvironment loads flag values from environment variables
func (m *Manager) loadFromEnvironment() {
	for _, state := range m.flags {
		if val := os.Getenv(state.envVar); val != "" {
			if enabled, err := strconv.ParseBool(val); err == nil {
				state.enabled.Store(enabled)
				state.overridden.Store(true)
			}
		}
	}
}

// IsEnabled checks if a feature flag is enabled
func (m *Manager) IsEnabled(flag Flag) bool {
	m.mu.RLock()
	state, exists := m.flags[flag]
	m.mu.RUnlock()

	if !exists {
		return false
	}
	return state.enabled.Load()
}

// Enable enables a feature flag
func (m *Manager) Enable(flag Flag) {
	m.setFlag(flag, true)
}

// Disable disables a feature flag
func (m *Manager) Disable(flag Flag) {
	m.setFlag(flag, false)
}

// Set enables or disables a flag by name. Unknown names are rejected.
func (m *Manager) Set(name string, enabled bool) error {
	flag := Flag(strings.ToLower(name))
	m.mu.RLock()
	_, exists := m.flags[flag]
	m.mu.RUnlock()
	if !exists {
		return qerrors.Newf(qerrors.UndefinedObject, "unknown feature flag \"%s\"", name)
	}
	m.setFlag(flag, enabled)
	return nil
}

// Apply sets every flag in overrides, stopping at the first unknown name.
func (m *Manager) Apply(overrides map[string]bool) error {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := m.Set(name, overrides[name]); err != nil {
			return err
		}
	}
	return nil
}

// setFlag sets a flag value and notifies listeners
func (m *Manager) setFlag(flag Flag, enabled bool) {
	m.mu.RLock()
	state, exists := m.flags[flag]
	callbacks := m.onChange
	m.mu.RUnlock()

	if !exists {
		return
	}

	state.overridden.Store(true)
	if state.enabled.Swap(enabled) != enabled {
		for _, cb := range callbacks {
			cb(flag, enabled)
		}
	}
}

// OnChange registers a callback for flag changes
func (m *Manager) OnChange(callback func(Flag, bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, callback)
}

// GetAll returns all flag states
func (m *Manager) GetAll() map[Flag]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[Flag]bool, len(m.flags))
	for flag, state := range m.flags {
		result[flag] = state.enabled.Load()
	}
	return result
}

// GetMetadata returns metadata for a flag
func (m *Manager) GetMetadata(flag Flag) (*FlagMetadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metadata, exists := m.metadata[flag]
	return metadata, exists
}

// GetByCategory returns all flags in a category, sorted by name
func (m *Manager) GetByCategory(category string) []Flag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Flag
	for flag, metadata := range m.metadata {
		if metadata.Category == category {
			result = append(result, flag)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Reset resets all flags to their default values
func (m *Manager) Reset() {
	m.mu.RLock()
	flags := make([]Flag, 0, len(m.flags))
	for flag := range m.flags {
		flags = append(flags, flag)
	}
	m.mu.RUnlock()

	for _, flag := range flags {
		m.setFlag(flag, m.metadata[flag].DefaultValue)
		m.flags[flag].overridden.Store(false)
	}
}

// flagToEnvVar converts a flag name to an environment variable name
func flagToEnvVar(flag Flag) string {
	return "QUANTAOPT_FEATURE_" + strings.ToUpper(string(flag))
}

// DebugString returns a debug string with all flag states
func (m *Manager) DebugString() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flags := make([]Flag, 0, len(m.flags))
	for flag := range m.flags {
		flags = append(flags, flag)
	}
	sort.Slice(flags, func(i, j int) bool { return flags[i] < flags[j] })

	var b strings.Builder
	b.WriteString("Feature Flags:\n")
	for _, flag := range flags {
		state := m.flags[flag]
		metadata := m.metadata[flag]

		status := "disabled"
		if state.enabled.Load() {
			status = "enabled"
		}
		override := ""
		if state.overridden.Load() {
			override = " (overridden)"
		}
		fmt.Fprintf(&b, "  %-22s: %-8s [%s]%s - %s\n",
			flag, status, metadata.Stability, override, metadata.Description)
	}
	return b.String()
}
