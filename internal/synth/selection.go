package synth

import (
	"fmt"
	"os"
	"sync"

	"github.com/MimeLyc/voice-translator/pkg/log"
	"github.com/MimeLyc/voice-translator/pkg/proc"
)

// State is the position of the backend selection state machine.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateProbingAssets State = "probing_assets"
	StateNeuralReady   State = "neural_ready"
	StateFallbackOnly  State = "fallback_only"
)

// BackendKind names the backend that produced an artifact.
type BackendKind string

const (
	BackendNeural   BackendKind = "neural"
	BackendFallback BackendKind = "fallback"
)

// Assets are the files the neural engine needs.
type Assets struct {
	ModelPath   string
	VocoderPath string
	ConfigPath  string
}

func (a Assets) check() error {
	for _, p := range []struct{ name, path string }{
		{"model", a.ModelPath},
		{"vocoder", a.VocoderPath},
		{"config", a.ConfigPath},
	} {
		if p.path == "" {
			return fmt.Errorf("%s path not configured", p.name)
		}
		info, err := os.Stat(p.path)
		if err != nil {
			return fmt.Errorf("%s %s: %w", p.name, p.path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s %s is a directory", p.name, p.path)
		}
	}
	return nil
}

// EngineFactory constructs the neural engine for a device.
type EngineFactory func(assets Assets, device string) (Engine, error)

// Selection is the immutable outcome of probing.
type Selection struct {
	State   State       `json:"state"`
	Backend BackendKind `json:"backend"`
	Device  string      `json:"device,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// Selector decides once between the neural engine and the fallback.
// The decision is never re-evaluated, even if the assets later disappear.
type Selector struct {
	assets  Assets
	device  string
	factory EngineFactory
	hasGPU  func() bool

	once   sync.Once
	mu     sync.RWMutex
	state  State
	engine Engine
	sel    Selection
}

type SelectorOption func(*Selector)

// WithGPUProbe overrides how "auto" decides whether cuda is available.
func WithGPUProbe(probe func() bool) SelectorOption {
	return func(s *Selector) { s.hasGPU = probe }
}

func NewSelector(assets Assets, device string, factory EngineFactory, opts ...SelectorOption) *Selector {
	if device == "" {
		device = "auto"
	}
	s := &Selector{
		assets:  assets,
		device:  device,
		factory: factory,
		hasGPU:  func() bool { return proc.Available("nvidia-smi") },
		state:   StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the current machine state without triggering a probe.
func (s *Selector) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Select runs the probe on first use and returns the settled selection.
func (s *Selector) Select() Selection {
	s.once.Do(s.probe)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Engine returns the neural engine, or nil when settled on the fallback.
func (s *Selector) Engine() Engine {
	s.once.Do(s.probe)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func (s *Selector) probe() {
	s.setState(StateProbingAssets)

	if err := s.assets.check(); err != nil {
		s.settleFallback(fmt.Sprintf("neural assets unavailable: %v", err))
		return
	}
	if s.factory == nil {
		s.settleFallback("no neural engine configured")
		return
	}

	device := s.resolveDevice()
	engine, err := s.factory(s.assets, device)
	if err != nil {
		s.settleFallback(fmt.Sprintf("neural engine init on %s: %v", device, err))
		return
	}

	s.mu.Lock()
	s.engine = engine
	s.state = StateNeuralReady
	s.sel = Selection{State: StateNeuralReady, Backend: BackendNeural, Device: device}
	s.mu.Unlock()
	log.Info("Synthesis: neural engine ready on %s", device)
}

func (s *Selector) resolveDevice() string {
	if s.device != "auto" {
		return s.device
	}
	if s.hasGPU != nil && s.hasGPU() {
		return "cuda"
	}
	return "cpu"
}

func (s *Selector) settleFallback(reason string) {
	s.mu.Lock()
	s.state = StateFallbackOnly
	s.sel = Selection{State: StateFallbackOnly, Backend: BackendFallback, Reason: reason}
	s.mu.Unlock()
	log.Warn("Synthesis: using fallback synthesizer (%s)", reason)
}

func (s *Selector) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
