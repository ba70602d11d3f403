package modules

import (
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"sweep/internal/config"
	"sweep/internal/observer"
	"sweep/pkg/sweeptypes"
)

// Loaded holds the instantiated modules of one campaign: every instance by
// module ID, plus the subset that exposes the trigger capability.
type Loaded struct {
	Modules  map[string]sweeptypes.Observer
	Triggers map[string]sweeptypes.Triggerable
}

// Trigger returns the trigger capability of the named module, or an error if
// the module does not exist or is not triggerable.
func (l *Loaded) Trigger(moduleID string) (sweeptypes.Triggerable, error) {
	if _, ok := l.Modules[moduleID]; !ok {
		return nil, fmt.Errorf("module %q is not loaded", moduleID)
	}
	trigger, ok := l.Triggers[moduleID]
	if !ok {
		return nil, fmt.Errorf("module %q does not expose a trigger", moduleID)
	}
	return trigger, nil
}

// Load resolves every configured module against the registry, constructs it
// with its configuration sub-mapping, and registers it in the observer
// registry. Module IDs are processed in sorted order so observer
// registration order is deterministic. Any resolution or construction
// failure is fatal.
func Load(cfgs map[string]config.ModuleConfig, registry *Registry, observers *observer.Registry, logger *log.Logger) (*Loaded, error) {
	loaded := &Loaded{
		Modules:  make(map[string]sweeptypes.Observer),
		Triggers: make(map[string]sweeptypes.Triggerable),
	}

	ids := make([]string, 0, len(cfgs))
	for id := range cfgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		moduleCfg := cfgs[id]
		factory, ok := registry.Get(moduleCfg.Module)
		if !ok {
			return nil, fmt.Errorf("module %q: unknown module name %q (registered: %v)",
				id, moduleCfg.Module, registry.Names())
		}

		instance, err := factory(moduleCfg.Config, logger)
		if err != nil {
			return nil, fmt.Errorf("module %q: failed to construct %q: %w", id, moduleCfg.Module, err)
		}

		loaded.Modules[id] = instance
		observers.Register(instance)
		if trigger, ok := instance.(sweeptypes.Triggerable); ok {
			loaded.Triggers[id] = trigger
			logger.Debug("Module exposes trigger capability", "module", id)
		}
		logger.Info("Loaded module", "module", id, "kind", moduleCfg.Module)
	}

	return loaded, nil
}
