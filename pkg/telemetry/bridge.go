package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/rtserial/pkg/protocol"
	"github.com/robotalks/rtserial/pkg/realtime"
)

// DefaultHeartbeat is how often an unchanged status is published again.
const DefaultHeartbeat = 5 * time.Second

// Injector puts bytes on the wire towards the device.
type Injector interface {
	Inject(p []byte)
}

// StatusSource provides the latest controller status.
type StatusSource interface {
	Status() protocol.Status
}

// Bridge publishes status snapshots on <device>/status and forwards
// real-time commands received on <device>/rt. A command payload is either a
// command name (e.g. "feed-hold") or raw command bytes; data bytes are
// never forwarded so the remote side cannot interleave lines with the host.
type Bridge struct {
	Broker     Broker
	DeviceID   string
	Source     StatusSource
	Injector   Injector
	Classifier realtime.Classifier
	Interval   time.Duration
	Heartbeat  time.Duration

	last     *Snapshot
	lastTime time.Time
}

// StatusTopic returns the topic snapshots are published on.
func (b *Bridge) StatusTopic() string {
	return b.DeviceID + "/status"
}

// CommandTopic returns the topic real-time commands are received on.
func (b *Bridge) CommandTopic() string {
	return b.DeviceID + "/rt"
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	if b.Injector != nil {
		b.Broker.Sub(b.CommandTopic(), b.handleCommand)
	}
	interval := b.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			b.publish(now)
		}
	}
}

// publish sends the status if it changed or the heartbeat is due.
func (b *Bridge) publish(now time.Time) bool {
	st := b.Source.Status()
	snapshot := NewSnapshot(b.DeviceID, &st, now)
	heartbeat := b.Heartbeat
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if sameStatus(snapshot, b.last) && now.Sub(b.lastTime) < heartbeat {
		return false
	}
	payload, err := proto.Marshal(snapshot)
	if err != nil {
		glog.Errorf("encode status error: %v", err)
		return false
	}
	b.Broker.Pub(b.StatusTopic(), payload)
	b.last, b.lastTime = snapshot, now
	return true
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	if k, ok := realtime.Lookup(strings.TrimSpace(string(payload))); ok {
		if r := b.Classifier.Classify(k.Byte()); r.Class == realtime.ClassCommand {
			b.Injector.Inject([]byte{k.Byte()})
			return
		}
		glog.Warningf("remote command %s not enabled", k)
		return
	}
	cmds := make([]byte, 0, len(payload))
	for _, c := range payload {
		if b.Classifier.Classify(c).Class == realtime.ClassCommand {
			cmds = append(cmds, c)
		}
	}
	if len(cmds) < len(payload) {
		glog.Warningf("dropped %d non-command bytes from %s", len(payload)-len(cmds), topic)
	}
	if len(cmds) > 0 {
		b.Injector.Inject(cmds)
	}
}
