package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"batchrpc/internal/fault"
	"batchrpc/internal/handler"
	"batchrpc/internal/message"
)

type discountRequest struct {
	Total int `json:"total"`
}

func (*discountRequest) RequestType() string { return "DiscountRequest" }

type discountResponse struct {
	message.Base
	Percent int `json:"percent"`
}

func (*discountResponse) ResponseType() string { return "DiscountResponse" }

const discountScript = `// @request DiscountRequest
// @response DiscountResponse
function handle(request) {
    if (request.total <= 0) {
        fail("EMPTY_ORDER", "nothing to discount");
    }
    return { percent: request.total > 100 ? 10 : 0 };
}
`

func newManager(t *testing.T) *Manager {
	t.Helper()
	types := message.NewTypeRegistry()
	if err := message.RegisterResponse[discountResponse](types); err != nil {
		t.Fatal(err)
	}
	return NewManager(types, zerolog.Nop())
}

func TestScriptHandler_Answers(t *testing.T) {
	m := newManager(t)
	if err := m.Load("discount", discountScript); err != nil {
		t.Fatalf("Load: %v", err)
	}

	h, ok := m.Handler("DiscountRequest")
	if !ok {
		t.Fatal("handler not found")
	}
	resp, err := h.Handle(context.Background(), &discountRequest{Total: 150})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := resp.(*discountResponse).Percent; got != 10 {
		t.Errorf("percent = %d, want 10", got)
	}
}

func TestScriptHandler_FailIsBusinessFault(t *testing.T) {
	m := newManager(t)
	if err := m.Load("discount", discountScript); err != nil {
		t.Fatal(err)
	}
	h, _ := m.Handler("DiscountRequest")

	_, err := h.Handle(context.Background(), &discountRequest{Total: 0})
	var scriptErr *ScriptError
	if !errors.As(err, &scriptErr) {
		t.Fatalf("err = %v, want *ScriptError", err)
	}
	if scriptErr.Code != "EMPTY_ORDER" {
		t.Errorf("code = %q", scriptErr.Code)
	}

	kind, record := fault.NewClassifier().Classify(err)
	if kind != message.Business || record.FaultCode != "EMPTY_ORDER" {
		t.Errorf("classified as %v %+v", kind, record)
	}
}

func TestScriptHandler_Timeout(t *testing.T) {
	m := newManager(t)
	m.SetTimeout(50 * time.Millisecond)
	if err := m.Load("spin", "// @request DiscountRequest\nfunction handle(r) { for (;;) {} }\n"); err != nil {
		t.Fatal(err)
	}
	h, _ := m.Handler("DiscountRequest")

	_, err := h.Handle(context.Background(), &discountRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if _, ok := h.DefaultResponse().(*message.GenericResponse); !ok {
		t.Errorf("default = %T, want GenericResponse", h.DefaultResponse())
	}
}

func TestManager_LoadErrors(t *testing.T) {
	m := newManager(t)

	cases := map[string]string{
		"no directive":     "function handle(r) {}",
		"unknown response": "// @request DiscountRequest\n// @response NopeResponse\nfunction handle(r) {}",
		"syntax":           "// @request DiscountRequest\nfunction handle(r) {",
	}
	for name, source := range cases {
		if err := m.Load(name, source); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	if err := m.Load("a", discountScript); err != nil {
		t.Fatal(err)
	}
	if err := m.Load("b", discountScript); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("duplicate load err = %v", err)
	}
}

func TestManager_LoadFromDirectoryAndRegister(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "discount.js"), []byte(discountScript), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := newManager(t)
	if err := m.LoadFromDirectory(dir); err != nil {
		t.Fatalf("LoadFromDirectory: %v", err)
	}
	if !m.HasScript("DiscountRequest") || len(m.RequestTypes()) != 1 {
		t.Fatalf("request types = %v", m.RequestTypes())
	}

	registry := handler.NewRegistry(zerolog.Nop())
	if err := m.RegisterAll(registry); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if !registry.Has("DiscountRequest") {
		t.Error("script not registered")
	}
	if err := m.RegisterAll(registry); !errors.Is(err, handler.ErrDuplicateHandler) {
		t.Errorf("second RegisterAll err = %v, want ErrDuplicateHandler", err)
	}

	if err := m.LoadFromDirectory(filepath.Join(dir, "missing")); err != nil {
		t.Errorf("missing directory err = %v, want nil", err)
	}
}
