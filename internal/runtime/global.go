package runtime

import "sync"

var (
	globalMu   sync.Mutex
	globalInst *Runtime
	globalCfg  Config
)

// Global returns the process-wide Runtime, lazily constructing it on first
// access from whatever Config was last passed to Configure (or the zero
// Config if Configure was never called).
func Global() *Runtime {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalInst == nil {
		globalInst = New(globalCfg)
	}
	return globalInst
}

// Configure sets the Config used to lazily construct the global Runtime.
// Must be called before the first Global() access to have any effect;
// call ResetGlobal first to reconfigure an already-constructed instance.
func Configure(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalCfg = cfg
}

// ResetGlobal tears down the current global Runtime, if any, stopping its
// timers, and clears it so the next Global() call constructs a fresh one
// from the most recently Configure'd Config. Intended for test isolation
// between cases that each want their own process-wide instance.
func ResetGlobal() {
	globalMu.Lock()
	inst := globalInst
	globalInst = nil
	globalMu.Unlock()

	if inst != nil {
		inst.Shutdown()
	}
}
