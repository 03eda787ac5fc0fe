package factory

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Workers  int
	Interval time.Duration
}

type sampleConf struct {
	Workers  int           `json:"workers"`
	Interval time.Duration `json:"interval"`
}

func newSample(conf map[string]any) (*sample, error) {
	var c sampleConf
	if err := Decode(conf, &c); err != nil {
		return nil, err
	}
	return &sample{Workers: c.Workers, Interval: c.Interval}, nil
}

// Test registry registration and instantiation using Decode.
func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*sample]()
	if err := reg.Register("s", newSample); err != nil {
		t.Fatalf("register: %v", err)
	}
	inst, err := reg.Create(ModuleConfig{Type: "s", Conf: map[string]any{"workers": 3, "interval": "2s"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if inst.Workers != 3 || inst.Interval != 2*time.Second {
		t.Fatalf("unexpected instance %+v", inst)
	}
}

// Environment overrides arrive as strings.
func TestDecode_WeakTypes(t *testing.T) {
	var c sampleConf
	if err := Decode(map[string]any{"workers": "8"}, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Workers != 8 {
		t.Fatalf("expected 8 got %d", c.Workers)
	}
}

// Test duplicate registration and unknown type errors.
func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	if err := reg.Register("x", func(map[string]any) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("x", func(map[string]any) (int, error) { return 2, nil }); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("z", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	_, err := reg.Create(ModuleConfig{Type: "y"})
	if err == nil || !strings.Contains(err.Error(), "known: x") {
		t.Fatalf("expected unknown type error listing x, got %v", err)
	}

	boom := errors.New("boom")
	_ = reg.Register("bad", func(map[string]any) (int, error) { return 0, boom })
	if _, err := reg.Create(ModuleConfig{Type: "bad"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped factory error, got %v", err)
	}
	if got := reg.Names(); len(got) != 2 || got[0] != "bad" || got[1] != "x" {
		t.Fatalf("unexpected names %v", got)
	}
}
