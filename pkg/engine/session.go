package engine

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	gonferrors "github.com/mathysgrapotte/gonf/pkg/errors"
)

// SessionState tracks the single-use session lifecycle.
type SessionState int

const (
	StateCreated SessionState = iota
	StateInitialized
	StateStarted
	StateRunning
	StateDestroyed
)

func (s SessionState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateRunning:
		return "running"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// DockerConfig holds container options written into the session config under
// the "docker" key. It must be applied before Start: the engine silently
// ignores config changes made after the session has started.
type DockerConfig struct {
	Enabled          bool
	Registry         string
	RegistryOverride *bool
	RunOptions       string
	Remove           *bool
}

// Session is one execution-scoped handle into the engine. Sessions are
// single use: no transition is retried, and Close always destroys the
// foreign session regardless of how far the lifecycle got.
type Session struct {
	rt       *Runtime
	obj      *goja.Object
	state    SessionState
	logger   *zap.Logger
	observer *goja.Object
	closed   bool
}

// NewSession creates a fresh engine session. It blocks until no other
// session is using the VM; the caller must Close the session on every path.
func (rt *Runtime) NewSession() (*Session, error) {
	rt.sessMu.Lock()

	obj, err := rt.api.createSession()
	if err != nil {
		rt.sessMu.Unlock()
		return nil, fmt.Errorf("creating engine session: %w", err)
	}
	return &Session{
		rt:     rt,
		obj:    obj,
		state:  StateCreated,
		logger: rt.logger,
	}, nil
}

// State returns the session's lifecycle state.
func (s *Session) State() SessionState {
	return s.state
}

// Init binds the session to a script locator with an empty extra-args list.
func (s *Session) Init(scriptPath string) error {
	if s.state != StateCreated {
		return fmt.Errorf("%w: init from %s", gonferrors.ErrSessionState, s.state)
	}
	if err := s.rt.api.sessionInit(s.obj, scriptPath); err != nil {
		return err
	}
	s.state = StateInitialized
	return nil
}

// ConfigureDocker writes container options into the session config map.
// Calling it after Start is rejected here rather than silently dropped by
// the engine.
func (s *Session) ConfigureDocker(cfg DockerConfig) error {
	if s.state != StateCreated && s.state != StateInitialized {
		return fmt.Errorf("%w: docker config after start is a no-op in the engine", gonferrors.ErrSessionState)
	}
	config, err := s.rt.api.sessionConfig(s.obj)
	if err != nil {
		return err
	}

	var docker *goja.Object
	existing := config.Get("docker")
	if existing == nil || goja.IsUndefined(existing) || goja.IsNull(existing) {
		docker = s.rt.vm.NewObject()
		if err := config.Set("docker", docker); err != nil {
			return err
		}
	} else {
		docker = existing.ToObject(s.rt.vm)
	}

	if err := docker.Set("enabled", cfg.Enabled); err != nil {
		return err
	}
	if cfg.Registry != "" {
		if err := docker.Set("registry", cfg.Registry); err != nil {
			return err
		}
	}
	if cfg.RegistryOverride != nil {
		if err := docker.Set("registryOverride", *cfg.RegistryOverride); err != nil {
			return err
		}
	}
	if cfg.RunOptions != "" {
		if err := docker.Set("runOptions", cfg.RunOptions); err != nil {
			return err
		}
	}
	if cfg.Remove != nil {
		if err := docker.Set("remove", *cfg.Remove); err != nil {
			return err
		}
	}
	return nil
}

// SetExecutor records the executor name in the session config. Pre-start
// only, same as ConfigureDocker.
func (s *Session) SetExecutor(name string) error {
	if name == "" {
		return nil
	}
	if s.state != StateCreated && s.state != StateInitialized {
		return fmt.Errorf("%w: executor config after start is a no-op in the engine", gonferrors.ErrSessionState)
	}
	config, err := s.rt.api.sessionConfig(s.obj)
	if err != nil {
		return err
	}
	return config.Set("executor", name)
}

// Start starts the initialized session.
func (s *Session) Start() error {
	if s.state != StateInitialized {
		return fmt.Errorf("%w: start from %s", gonferrors.ErrSessionState, s.state)
	}
	if err := s.rt.api.sessionStart(s.obj); err != nil {
		return err
	}
	s.state = StateStarted
	return nil
}

// SetBindingVariable sets a script-level variable on the session binding.
func (s *Session) SetBindingVariable(name string, value interface{}) error {
	v, err := s.toEngine(value, "")
	if err != nil {
		return err
	}
	return s.rt.api.sessionSetBinding(s.obj, name, v)
}

// PutParam converts a host value and writes it into the session parameter
// store under the given name. The declared type is a conversion hint only.
func (s *Session) PutParam(name string, value interface{}, declaredType string) error {
	params, err := s.rt.api.sessionParams(s.obj)
	if err != nil {
		return err
	}
	v, err := s.toEngine(value, declaredType)
	if err != nil {
		return gonferrors.NewError(gonferrors.CodeInjection, fmt.Sprintf("converting parameter %q", name), err)
	}
	return params.Set(name, v)
}

// NewLoader creates a script loader bound to this session.
func (s *Session) NewLoader() (*Loader, error) {
	obj, err := s.rt.api.createLoader(s.obj)
	if err != nil {
		return nil, err
	}
	return &Loader{s: s, obj: obj}, nil
}

// Run executes the parsed script: run the script body, fire the dataflow
// network, and block until the engine reports completion. There is no
// cancellation or timeout at this layer; a hang in the engine hangs the
// caller.
func (s *Session) Run(loader *Loader) error {
	if s.state != StateStarted {
		return fmt.Errorf("%w: run from %s", gonferrors.ErrSessionState, s.state)
	}
	s.state = StateRunning
	if err := s.rt.api.loaderRunScript(loader.obj); err != nil {
		return gonferrors.NewError(gonferrors.CodeExecution, "workflow execution failed", err)
	}
	if err := s.rt.api.sessionFireNetwork(s.obj); err != nil {
		return gonferrors.NewError(gonferrors.CodeExecution, "workflow execution failed", err)
	}
	if err := s.rt.api.sessionAwait(s.obj); err != nil {
		return gonferrors.NewError(gonferrors.CodeExecution, "workflow execution failed", err)
	}
	return nil
}

// WorkDir returns the session work directory. Only valid while the session
// is alive; callers snapshot it before Close.
func (s *Session) WorkDir() (string, error) {
	return s.rt.api.sessionWorkDir(s.obj)
}

// Stats snapshots the completed and failed task counts from the session's
// statistics observer. Must be read before Close.
func (s *Session) Stats() (completed, failed int, err error) {
	return s.rt.api.sessionStats(s.obj)
}

// Close destroys the foreign session and releases the VM to the next
// session. Teardown errors are swallowed so they can never mask the error
// that triggered the teardown; Close is safe to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	s.unregisterObserver()

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Debug("session destroy panicked", zap.Any("panic", r))
			}
		}()
		if err := s.rt.api.sessionDestroy(s.obj); err != nil {
			s.logger.Debug("session destroy failed", zap.Error(err))
		}
	}()

	s.state = StateDestroyed
	s.rt.sessMu.Unlock()
}

// Loader wraps the engine's script loader for one session.
type Loader struct {
	s   *Session
	obj *goja.Object
}

// Parse parses the pipeline source. Parse failures are script-load errors:
// they propagate unchanged and are never retried, since they almost always
// mean malformed pipeline source.
func (l *Loader) Parse(scriptPath string) error {
	if err := l.s.rt.api.loaderParse(l.obj, scriptPath); err != nil {
		return gonferrors.NewError(gonferrors.CodeScriptLoad, fmt.Sprintf("parsing %s", scriptPath), err)
	}
	return nil
}

// SetModule switches the loader between module and top-level interpretation.
func (l *Loader) SetModule(on bool) error {
	return l.s.rt.api.loaderSetModule(l.obj, on)
}

// RunScript executes the parsed script body once.
func (l *Loader) RunScript() error {
	return l.s.rt.api.loaderRunScript(l.obj)
}

// Script returns the parsed script handle.
func (l *Loader) Script() (*Script, error) {
	obj, err := l.s.rt.api.loaderScript(l.obj)
	if err != nil {
		return nil, err
	}
	return &Script{s: l.s, obj: obj}, nil
}

// Script is an opaque handle to a parsed pipeline script.
type Script struct {
	s   *Session
	obj *goja.Object
}

// Meta returns the engine's metadata view of the script.
func (sc *Script) Meta() (*Meta, error) {
	obj, err := sc.s.rt.api.scriptMeta(sc.obj)
	if err != nil {
		return nil, err
	}
	return &Meta{s: sc.s, obj: obj}, nil
}

// Meta wraps the engine's script metadata object.
type Meta struct {
	s   *Session
	obj *goja.Object
}

// ProcessNames returns declared process names in declaration order.
func (m *Meta) ProcessNames() ([]string, error) {
	return m.s.rt.api.metaProcessNames(m.obj)
}

// IsModule reports whether the script is flagged as a module.
func (m *Meta) IsModule() (bool, error) {
	return m.s.rt.api.metaIsModule(m.obj)
}

// SetModule flags the script as a module (or not).
func (m *Meta) SetModule(on bool) error {
	return m.s.rt.api.metaSetModule(m.obj, on)
}

// Process returns the definition of a named process.
func (m *Meta) Process(name string) (*ProcessDef, error) {
	obj, err := m.s.rt.api.metaProcess(m.obj, name)
	if err != nil {
		return nil, err
	}
	return &ProcessDef{s: m.s, obj: obj}, nil
}

// ProcessDef wraps one process definition.
type ProcessDef struct {
	s   *Session
	obj *goja.Object
}

// Inputs returns the process's declared input definitions in order.
func (p *ProcessDef) Inputs() ([]*InputDef, error) {
	objs, err := p.s.rt.api.processInputs(p.obj)
	if err != nil {
		return nil, err
	}
	out := make([]*InputDef, 0, len(objs))
	for _, obj := range objs {
		out = append(out, &InputDef{s: p.s, obj: obj})
	}
	return out, nil
}

// InputDef wraps one declared input.
type InputDef struct {
	s   *Session
	obj *goja.Object
}

// TypeName returns the declared input type (val, path, tuple, ...).
func (d *InputDef) TypeName() (string, error) {
	return d.s.rt.api.inputTypeName(d.obj)
}

// Name returns the declared parameter name.
func (d *InputDef) Name() (string, error) {
	return d.s.rt.api.inputName(d.obj)
}

// Inner returns the component list of a composite input, or nil for a
// simple input.
func (d *InputDef) Inner() ([]*InputDef, error) {
	objs, err := d.s.rt.api.inputInner(d.obj)
	if err != nil {
		return nil, err
	}
	if objs == nil {
		return nil, nil
	}
	out := make([]*InputDef, 0, len(objs))
	for _, obj := range objs {
		out = append(out, &InputDef{s: d.s, obj: obj})
	}
	return out, nil
}
