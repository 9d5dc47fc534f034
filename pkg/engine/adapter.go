package engine

import (
	"fmt"

	"github.com/dop251/goja"

	gonferrors "github.com/mathysgrapotte/gonf/pkg/errors"
)

// api is the capability adapter for one engine bundle API version. Every
// member name on an engine object lives here and nowhere else, so a layout
// change in the bundle is absorbed by adding an adapter, not by hunting down
// call sites.
type api interface {
	version() int

	createSession() (*goja.Object, error)
	createLoader(session *goja.Object) (*goja.Object, error)

	sessionInit(session *goja.Object, scriptPath string) error
	sessionStart(session *goja.Object) error
	sessionConfig(session *goja.Object) (*goja.Object, error)
	sessionSetBinding(session *goja.Object, name string, value goja.Value) error
	sessionParams(session *goja.Object) (*goja.Object, error)
	sessionFireNetwork(session *goja.Object) error
	sessionAwait(session *goja.Object) error
	sessionDestroy(session *goja.Object) error
	sessionWorkDir(session *goja.Object) (string, error)
	sessionStats(session *goja.Object) (completed, failed int, err error)
	// sessionObservers returns the session's internal observer list. There is
	// no public registration API; this is a versioned contract on the
	// session's field layout.
	sessionObservers(session *goja.Object) (*goja.Object, error)

	loaderParse(loader *goja.Object, scriptPath string) error
	loaderSetModule(loader *goja.Object, on bool) error
	loaderRunScript(loader *goja.Object) error
	loaderScript(loader *goja.Object) (*goja.Object, error)

	scriptMeta(script *goja.Object) (*goja.Object, error)
	metaProcessNames(meta *goja.Object) ([]string, error)
	metaIsModule(meta *goja.Object) (bool, error)
	metaSetModule(meta *goja.Object, on bool) error
	metaProcess(meta *goja.Object, name string) (*goja.Object, error)
	processInputs(processDef *goja.Object) ([]*goja.Object, error)
	inputTypeName(input *goja.Object) (string, error)
	inputName(input *goja.Object) (string, error)
	inputInner(input *goja.Object) ([]*goja.Object, error)

	eventText(event *goja.Object, getter string) (string, error)
	eventValue(event *goja.Object, getter string) (goja.Value, error)
	taskWorkDir(event *goja.Object) (string, error)

	requiredHooks() ([]string, error)
	pathString(obj *goja.Object) (string, bool)
}

// selectAPI picks the adapter matching the bundle's declared apiVersion.
func selectAPI(rt *Runtime) (api, error) {
	verVal := rt.root.Get("apiVersion")
	if verVal == nil || goja.IsUndefined(verVal) {
		return nil, gonferrors.ErrUnsupportedAPI
	}
	switch ver := verVal.ToInteger(); ver {
	case 2:
		return &apiV2{rt: rt}, nil
	default:
		return nil, fmt.Errorf("%w: %d", gonferrors.ErrUnsupportedAPI, ver)
	}
}

// apiV2 speaks the v2 bundle layout: a root object exposing createSession,
// ScriptLoaderFactory, ScriptMeta, and a TraceObserverV2 descriptor, with
// the observer list stored on the session's observersV2 field.
type apiV2 struct {
	rt *Runtime
}

func (a *apiV2) version() int { return 2 }

// call invokes a zero-or-more-argument method on an engine object.
func (a *apiV2) call(obj *goja.Object, method string, args ...goja.Value) (goja.Value, error) {
	fn, ok := goja.AssertFunction(obj.Get(method))
	if !ok {
		return nil, fmt.Errorf("engine object has no %s()", method)
	}
	return fn(obj, args...)
}

func (a *apiV2) member(obj *goja.Object, name string) (*goja.Object, error) {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, fmt.Errorf("engine root has no %s handle", name)
	}
	return v.ToObject(a.rt.vm), nil
}

func (a *apiV2) createSession() (*goja.Object, error) {
	v, err := a.call(a.rt.root, "createSession")
	if err != nil {
		return nil, err
	}
	return v.ToObject(a.rt.vm), nil
}

func (a *apiV2) createLoader(session *goja.Object) (*goja.Object, error) {
	factory, err := a.member(a.rt.root, "ScriptLoaderFactory")
	if err != nil {
		return nil, err
	}
	v, err := a.call(factory, "create", session)
	if err != nil {
		return nil, err
	}
	return v.ToObject(a.rt.vm), nil
}

func (a *apiV2) sessionInit(session *goja.Object, scriptPath string) error {
	// Matches the engine signature init(scriptFile, args): the extra-args
	// list is always empty at this layer.
	_, err := a.call(session, "init", a.rt.vm.ToValue(scriptPath), a.rt.vm.NewArray())
	return err
}

func (a *apiV2) sessionStart(session *goja.Object) error {
	_, err := a.call(session, "start")
	return err
}

func (a *apiV2) sessionConfig(session *goja.Object) (*goja.Object, error) {
	v, err := a.call(session, "getConfig")
	if err != nil {
		return nil, err
	}
	return v.ToObject(a.rt.vm), nil
}

func (a *apiV2) sessionSetBinding(session *goja.Object, name string, value goja.Value) error {
	binding, err := a.call(session, "getBinding")
	if err != nil {
		return err
	}
	_, err = a.call(binding.ToObject(a.rt.vm), "setVariable", a.rt.vm.ToValue(name), value)
	return err
}

func (a *apiV2) sessionParams(session *goja.Object) (*goja.Object, error) {
	v, err := a.call(session, "getParams")
	if err != nil {
		return nil, err
	}
	return v.ToObject(a.rt.vm), nil
}

func (a *apiV2) sessionFireNetwork(session *goja.Object) error {
	_, err := a.call(session, "fireDataflowNetwork", a.rt.vm.ToValue(false))
	return err
}

func (a *apiV2) sessionAwait(session *goja.Object) error {
	_, err := a.call(session, "await")
	return err
}

func (a *apiV2) sessionDestroy(session *goja.Object) error {
	_, err := a.call(session, "destroy")
	return err
}

func (a *apiV2) sessionWorkDir(session *goja.Object) (string, error) {
	v, err := a.call(session, "getWorkDir")
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (a *apiV2) sessionStats(session *goja.Object) (int, int, error) {
	observer, err := a.call(session, "getStatsObserver")
	if err != nil {
		return 0, 0, err
	}
	stats, err := a.call(observer.ToObject(a.rt.vm), "getStats")
	if err != nil {
		return 0, 0, err
	}
	statsObj := stats.ToObject(a.rt.vm)
	succeeded, err := a.call(statsObj, "getSucceededCount")
	if err != nil {
		return 0, 0, err
	}
	failed, err := a.call(statsObj, "getFailedCount")
	if err != nil {
		return 0, 0, err
	}
	return int(succeeded.ToInteger()), int(failed.ToInteger()), nil
}

func (a *apiV2) sessionObservers(session *goja.Object) (*goja.Object, error) {
	v := session.Get("observersV2")
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, fmt.Errorf("session has no observersV2 field")
	}
	return v.ToObject(a.rt.vm), nil
}

func (a *apiV2) loaderParse(loader *goja.Object, scriptPath string) error {
	_, err := a.call(loader, "parse", a.rt.vm.ToValue(scriptPath))
	return err
}

func (a *apiV2) loaderSetModule(loader *goja.Object, on bool) error {
	_, err := a.call(loader, "setModule", a.rt.vm.ToValue(on))
	return err
}

func (a *apiV2) loaderRunScript(loader *goja.Object) error {
	_, err := a.call(loader, "runScript")
	return err
}

func (a *apiV2) loaderScript(loader *goja.Object) (*goja.Object, error) {
	v, err := a.call(loader, "getScript")
	if err != nil {
		return nil, err
	}
	return v.ToObject(a.rt.vm), nil
}

func (a *apiV2) scriptMeta(script *goja.Object) (*goja.Object, error) {
	metaCls, err := a.member(a.rt.root, "ScriptMeta")
	if err != nil {
		return nil, err
	}
	v, err := a.call(metaCls, "get", script)
	if err != nil {
		return nil, err
	}
	return v.ToObject(a.rt.vm), nil
}

func (a *apiV2) metaProcessNames(meta *goja.Object) ([]string, error) {
	v, err := a.call(meta, "getProcessNames")
	if err != nil {
		return nil, err
	}
	return a.stringSlice(v)
}

func (a *apiV2) metaIsModule(meta *goja.Object) (bool, error) {
	v, err := a.call(meta, "isModule")
	if err != nil {
		return false, err
	}
	return v.ToBoolean(), nil
}

func (a *apiV2) metaSetModule(meta *goja.Object, on bool) error {
	_, err := a.call(meta, "setModule", a.rt.vm.ToValue(on))
	return err
}

func (a *apiV2) metaProcess(meta *goja.Object, name string) (*goja.Object, error) {
	v, err := a.call(meta, "getProcess", a.rt.vm.ToValue(name))
	if err != nil {
		return nil, err
	}
	return v.ToObject(a.rt.vm), nil
}

func (a *apiV2) processInputs(processDef *goja.Object) ([]*goja.Object, error) {
	cfg, err := a.call(processDef, "getProcessConfig")
	if err != nil {
		return nil, err
	}
	inputs, err := a.call(cfg.ToObject(a.rt.vm), "getInputs")
	if err != nil {
		return nil, err
	}
	return a.objectSlice(inputs)
}

func (a *apiV2) inputTypeName(input *goja.Object) (string, error) {
	v, err := a.call(input, "getTypeName")
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (a *apiV2) inputName(input *goja.Object) (string, error) {
	v, err := a.call(input, "getName")
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (a *apiV2) inputInner(input *goja.Object) ([]*goja.Object, error) {
	fn, ok := goja.AssertFunction(input.Get("getInner"))
	if !ok {
		return nil, nil
	}
	v, err := fn(input)
	if err != nil {
		return nil, err
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return a.objectSlice(v)
}

func (a *apiV2) eventText(event *goja.Object, getter string) (string, error) {
	v, err := a.call(event, getter)
	if err != nil {
		return "", err
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	return v.String(), nil
}

func (a *apiV2) eventValue(event *goja.Object, getter string) (goja.Value, error) {
	return a.call(event, getter)
}

func (a *apiV2) taskWorkDir(event *goja.Object) (string, error) {
	handler, err := a.call(event, "getHandler")
	if err != nil {
		return "", err
	}
	task, err := a.call(handler.ToObject(a.rt.vm), "getTask")
	if err != nil {
		return "", err
	}
	workDir, err := a.call(task.ToObject(a.rt.vm), "getWorkDir")
	if err != nil {
		return "", err
	}
	return workDir.String(), nil
}

func (a *apiV2) requiredHooks() ([]string, error) {
	descriptor, err := a.member(a.rt.root, "TraceObserverV2")
	if err != nil {
		return nil, err
	}
	hooks := descriptor.Get("requiredHooks")
	if hooks == nil || goja.IsUndefined(hooks) {
		return nil, fmt.Errorf("observer descriptor has no requiredHooks list")
	}
	return a.stringSlice(hooks)
}

// pathString recognizes engine path objects (they expose toAbsolutePath)
// and resolves them to their absolute path text.
func (a *apiV2) pathString(obj *goja.Object) (string, bool) {
	fn, ok := goja.AssertFunction(obj.Get("toAbsolutePath"))
	if !ok {
		return "", false
	}
	v, err := fn(obj)
	if err != nil {
		return "", false
	}
	return v.String(), true
}

func (a *apiV2) stringSlice(v goja.Value) ([]string, error) {
	raw := v.Export()
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected engine list, got %T", raw)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprint(item))
	}
	return out, nil
}

func (a *apiV2) objectSlice(v goja.Value) ([]*goja.Object, error) {
	arr := v.ToObject(a.rt.vm)
	lengthVal := arr.Get("length")
	if lengthVal == nil || goja.IsUndefined(lengthVal) {
		return nil, fmt.Errorf("expected engine list")
	}
	n := int(lengthVal.ToInteger())
	out := make([]*goja.Object, 0, n)
	for i := 0; i < n; i++ {
		item := arr.Get(fmt.Sprintf("%d", i))
		if item == nil || goja.IsUndefined(item) || goja.IsNull(item) {
			continue
		}
		out = append(out, item.ToObject(a.rt.vm))
	}
	return out, nil
}
