package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog"

	"batchrpc/internal/handler"
	"batchrpc/internal/message"
)

// DefaultExecutionTimeout is the default timeout for script execution
const DefaultExecutionTimeout = 5 * time.Second

var (
	requestDirectiveRegex  = regexp.MustCompile(`(?m)^//\s*@request\s+(\S+)`)
	responseDirectiveRegex = regexp.MustCompile(`(?m)^//\s*@response\s+(\S+)`)
)

// Manager loads scripts and exposes them as request handlers
type Manager struct {
	scripts map[string]*Script // request type -> script
	types   *message.TypeRegistry
	logger  zerolog.Logger
	timeout time.Duration
	mu      sync.RWMutex
}

// NewManager creates a new Manager. Script responses are decoded into
// fresh values from types.
func NewManager(types *message.TypeRegistry, logger zerolog.Logger) *Manager {
	return &Manager{
		scripts: make(map[string]*Script),
		types:   types,
		logger:  logger.With().Str("component", "plugin-manager").Logger(),
		timeout: DefaultExecutionTimeout,
	}
}

// SetTimeout sets the execution timeout for scripts
func (m *Manager) SetTimeout(timeout time.Duration) {
	m.timeout = timeout
}

// LoadFromDirectory loads all .js scripts from a directory
func (m *Manager) LoadFromDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		m.logger.Warn().Str("directory", dir).Msg("plugins directory does not exist")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat plugins directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("plugins path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read plugins directory: %w", err)
	}

	loadedCount := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".js") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err == nil {
			err = m.Load(strings.TrimSuffix(entry.Name(), ".js"), string(content))
		}
		if err != nil {
			m.logger.Error().
				Err(err).
				Str("file", entry.Name()).
				Msg("failed to load plugin")
			continue
		}
		loadedCount++
	}

	m.logger.Info().
		Int("loaded", loadedCount).
		Str("directory", dir).
		Msg("plugins loaded")

	return nil
}

// Load compiles and registers a single script
func (m *Manager) Load(name, source string) error {
	requestType := extractDirective(requestDirectiveRegex, source)
	if requestType == "" {
		return errors.New("plugin missing @request directive")
	}
	responseType := extractDirective(responseDirectiveRegex, source)
	if responseType != "" && !m.types.HasResponse(responseType) {
		return fmt.Errorf("unknown response type: %s", responseType)
	}

	if _, err := goja.Compile(name, source, false); err != nil {
		return fmt.Errorf("script error: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.scripts[requestType]; exists {
		return fmt.Errorf("duplicate request type: %s", requestType)
	}
	m.scripts[requestType] = &Script{
		Name:         name,
		RequestType:  requestType,
		ResponseType: responseType,
		Source:       source,
	}

	m.logger.Info().
		Str("name", name).
		Str("request", requestType).
		Str("response", responseType).
		Msg("plugin loaded")

	return nil
}

func extractDirective(re *regexp.Regexp, source string) string {
	matches := re.FindStringSubmatch(source)
	if len(matches) >= 2 {
		return matches[1]
	}
	return ""
}

// HasScript checks if a script handles the request type
func (m *Manager) HasScript(requestType string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.scripts[requestType]
	return exists
}

// RequestTypes returns the request types handled by scripts, sorted
func (m *Manager) RequestTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tags := make([]string, 0, len(m.scripts))
	for tag := range m.scripts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Handler returns the handler running the script for requestType
func (m *Manager) Handler(requestType string) (*ScriptHandler, bool) {
	m.mu.RLock()
	script, ok := m.scripts[requestType]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return &ScriptHandler{script: script, manager: m}, true
}

// RegisterAll registers every script with the handler registry. A request
// type that already has a handler is an error.
func (m *Manager) RegisterAll(registry *handler.Registry) error {
	for _, tag := range m.RequestTypes() {
		h, _ := m.Handler(tag)
		if err := registry.RegisterHandler(h); err != nil {
			return fmt.Errorf("plugin %s: %w", h.script.Name, err)
		}
	}
	return nil
}

// Close releases all scripts
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = make(map[string]*Script)
	m.logger.Info().Msg("plugin manager closed")
}

// ScriptHandler runs a script as a handler.Handler. Every call gets its own VM.
type ScriptHandler struct {
	script  *Script
	manager *Manager
}

var _ handler.Handler = (*ScriptHandler)(nil)

// RequestType returns the handled request type
func (h *ScriptHandler) RequestType() string {
	return h.script.RequestType
}

// DefaultResponse returns a fresh value of the script's response type
func (h *ScriptHandler) DefaultResponse() message.Response {
	if h.script.ResponseType != "" {
		if resp, err := h.manager.types.NewResponse(h.script.ResponseType); err == nil {
			return resp
		}
	}
	return &message.GenericResponse{}
}

// Handle passes req to the script's handle function and decodes its result
func (h *ScriptHandler) Handle(ctx context.Context, req message.Request) (message.Response, error) {
	params, err := toPlain(req)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	runtime := NewRuntime(h.script.Name, h.manager.logger)

	execCtx, cancel := context.WithTimeout(ctx, h.manager.timeout)
	defer cancel()
	stop := context.AfterFunc(execCtx, func() {
		runtime.VM().Interrupt(execCtx.Err())
	})
	defer stop()

	if _, err := runtime.RunScript(h.script.Source); err != nil {
		return nil, h.scriptError(runtime, err)
	}

	result, err := runtime.CallFunction("handle", params)
	if err != nil {
		return nil, h.scriptError(runtime, err)
	}

	resp := h.DefaultResponse()
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return resp, nil
	}

	data, err := json.Marshal(result.Export())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("script %s returned an invalid %s: %w", h.script.Name, resp.ResponseType(), err)
	}
	return resp, nil
}

// scriptError maps a goja failure to the error reported for the request
func (h *ScriptHandler) scriptError(runtime *Runtime, err error) error {
	if failure := runtime.Failure(); failure != nil {
		return failure
	}

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		h.manager.logger.Warn().
			Str("script", h.script.Name).
			Dur("timeout", h.manager.timeout).
			Msg("plugin execution interrupted")
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("script %s interrupted: %w", h.script.Name, cause)
		}
		return fmt.Errorf("script %s interrupted", h.script.Name)
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return fmt.Errorf("script %s: %s", h.script.Name, exception.Value().String())
	}
	return fmt.Errorf("script %s: %w", h.script.Name, err)
}

// toPlain converts a request into plain JSON values for the VM
func toPlain(req message.Request) (interface{}, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var plain interface{}
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, err
	}
	return plain, nil
}
