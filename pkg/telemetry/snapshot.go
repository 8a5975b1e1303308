// Package telemetry publishes machine status over MQTT and accepts remote
// real-time commands.
package telemetry

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/rtserial/pkg/protocol"
)

// Snapshot is the status message published on <device>/status.
type Snapshot struct {
	DeviceId        string    `protobuf:"bytes,1,opt,name=device_id,json=deviceId,proto3" json:"device_id,omitempty"`
	State           string    `protobuf:"bytes,2,opt,name=state,proto3" json:"state,omitempty"`
	Alarm           uint32    `protobuf:"varint,3,opt,name=alarm,proto3" json:"alarm,omitempty"`
	MachinePos      []float64 `protobuf:"fixed64,4,rep,packed,name=machine_pos,json=machinePos,proto3" json:"machine_pos,omitempty"`
	FeedRate        float64   `protobuf:"fixed64,5,opt,name=feed_rate,json=feedRate,proto3" json:"feed_rate,omitempty"`
	SpindleSpeed    float64   `protobuf:"fixed64,6,opt,name=spindle_speed,json=spindleSpeed,proto3" json:"spindle_speed,omitempty"`
	FeedOverride    uint32    `protobuf:"varint,7,opt,name=feed_override,json=feedOverride,proto3" json:"feed_override,omitempty"`
	RapidOverride   uint32    `protobuf:"varint,8,opt,name=rapid_override,json=rapidOverride,proto3" json:"rapid_override,omitempty"`
	SpindleOverride uint32    `protobuf:"varint,9,opt,name=spindle_override,json=spindleOverride,proto3" json:"spindle_override,omitempty"`
	Accessories     string    `protobuf:"bytes,10,opt,name=accessories,proto3" json:"accessories,omitempty"`
	PlannerFree     uint32    `protobuf:"varint,11,opt,name=planner_free,json=plannerFree,proto3" json:"planner_free,omitempty"`
	RxFree          uint32    `protobuf:"varint,12,opt,name=rx_free,json=rxFree,proto3" json:"rx_free,omitempty"`
	RxDropped       uint32    `protobuf:"varint,13,opt,name=rx_dropped,json=rxDropped,proto3" json:"rx_dropped,omitempty"`
	RxHighWater     uint32    `protobuf:"varint,14,opt,name=rx_high_water,json=rxHighWater,proto3" json:"rx_high_water,omitempty"`
	Discarded       uint32    `protobuf:"varint,15,opt,name=discarded,proto3" json:"discarded,omitempty"`
	Commands        uint32    `protobuf:"varint,16,opt,name=commands,proto3" json:"commands,omitempty"`
	Ignored         uint32    `protobuf:"varint,17,opt,name=ignored,proto3" json:"ignored,omitempty"`
	TxAborted       uint32    `protobuf:"varint,18,opt,name=tx_aborted,json=txAborted,proto3" json:"tx_aborted,omitempty"`
	TimestampMs     int64     `protobuf:"varint,19,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
}

// Reset implements proto.Message.
func (m *Snapshot) Reset() { *m = Snapshot{} }

// String implements proto.Message.
func (m *Snapshot) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Snapshot) ProtoMessage() {}

// NewSnapshot converts a controller status.
func NewSnapshot(deviceID string, st *protocol.Status, now time.Time) *Snapshot {
	return &Snapshot{
		DeviceId:        deviceID,
		State:           st.State.String(),
		Alarm:           st.Alarm,
		MachinePos:      append([]float64(nil), st.Position[:]...),
		FeedRate:        st.FeedRate,
		SpindleSpeed:    st.SpindleSpeed,
		FeedOverride:    uint32(st.Overrides.Feed),
		RapidOverride:   uint32(st.Overrides.Rapid),
		SpindleOverride: uint32(st.Overrides.Spindle),
		Accessories:     st.Accessories(),
		PlannerFree:     uint32(st.PlannerFree),
		RxFree:          uint32(st.RxFree),
		RxDropped:       st.Stats.RxDropped,
		RxHighWater:     st.Stats.RxHighWater,
		Discarded:       st.Stats.Discarded,
		Commands:        st.Stats.Commands,
		Ignored:         st.Stats.Ignored,
		TxAborted:       st.Stats.TxAborted,
		TimestampMs:     now.UnixNano() / int64(time.Millisecond),
	}
}

// sameStatus compares everything but the timestamp.
func sameStatus(a, b *Snapshot) bool {
	if a == nil || b == nil {
		return false
	}
	x, y := *a, *b
	x.TimestampMs, y.TimestampMs = 0, 0
	return proto.Equal(&x, &y)
}
