// Package mqtt defines how optimised schedules leave the scheduler: one
// setpoint message per variable and unit, optionally acknowledged by the
// device that applies it.
package mqtt

import (
	"fmt"
	"time"

	"github.com/kilianp07/ecom/core/schedule"
)

// Setpoint is the payload published for one unit of one variable.
type Setpoint struct {
	MessageID string    `json:"message_id"`
	RunID     string    `json:"run_id"`
	Scene     string    `json:"scene"`
	Variable  string    `json:"variable"`
	Unit      int       `json:"unit"`
	Values    []float64 `json:"values"`
	Timestamp int64     `json:"timestamp"`
}

// Publisher sends the rows of a schedule to the devices of a community.
type Publisher interface {
	// PublishSchedule publishes the selected variables of x and returns the
	// message identifiers used for acknowledgment tracking.
	PublishSchedule(runID, scene string, x *schedule.Candidate) ([]string, error)

	// WaitForAck waits for an acknowledgment of the message or until the
	// timeout expires.
	WaitForAck(messageID string, timeout time.Duration) (bool, error)
}

// Topic returns the topic of one unit of a variable.
func Topic(prefix, scene, variable string, unit int) string {
	return fmt.Sprintf("%s/%s/%s/%d", prefix, scene, variable, unit)
}

// DefaultVariables are the continuous decisions published when no explicit
// selection is configured.
func DefaultVariables() []schedule.Var {
	var out []schedule.Var
	for _, v := range schedule.Vars() {
		if !v.IsBinary() {
			out = append(out, v)
		}
	}
	return out
}

// NopPublisher discards schedules.
type NopPublisher struct{}

func (NopPublisher) PublishSchedule(string, string, *schedule.Candidate) ([]string, error) {
	return nil, nil
}
func (NopPublisher) WaitForAck(string, time.Duration) (bool, error) { return true, nil }
