package mqtt

import (
	"fmt"
	"testing"
	"time"

	coremon "github.com/kilianp07/ecom/core/monitoring"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestPublishErrorCaptured(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail, fail}}
	withMock(t, mc)
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(coremon.NopMonitor{})

	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", AckTopic: "a", MaxRetries: 0, BackoffMS: 1, Variables: []string{"pImp"}}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	ids, err := cli.PublishSchedule("run", "north", testCandidate(t))
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(ids) != 0 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if len(mc.published) != 4 {
		t.Fatalf("expected default retries, got %d attempts", len(mc.published))
	}
	if mon.err == nil {
		t.Fatalf("error not captured")
	}
	if mon.tags["scene"] != "north" || mon.tags["module"] != "mqtt" || mon.tags["variable"] != "pImp" {
		t.Fatalf("tags not set: %v", mon.tags)
	}
}
