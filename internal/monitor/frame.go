package monitor

import (
	"fmt"
	"time"

	flatbuffers "github.com/google/flatbuffers/go"
)

// Frame layout, written without generated code:
//
//	table StatsFrame {
//	  timestamp_micros: int64;
//	  connections: [ConnectionStats];
//	}
//
//	table ConnectionStats {
//	  id: string;
//	  remote_addr: string;
//	  connected: bool;
//	  rtt_nanos: int64;
//	  total_sent: uint64;
//	  total_received: uint64;
//	  bps_sent: uint64;
//	  bps_received: uint64;
//	}

const (
	frameFieldTimestamp = iota
	frameFieldConnections
	frameFieldCount
)

const (
	connFieldId = iota
	connFieldRemoteAddr
	connFieldConnected
	connFieldRtt
	connFieldTotalSent
	connFieldTotalReceived
	connFieldBpsSent
	connFieldBpsReceived
	connFieldCount
)

type ConnectionStats struct {
	Id         string
	RemoteAddr string
	Connected  bool

	// Zero until the first pong arrives
	Rtt time.Duration

	TotalSent     uint64
	TotalReceived uint64
	BpsSent       uint64
	BpsReceived   uint64
}

type StatsFrame struct {
	Timestamp   time.Time
	Connections []ConnectionStats
}

// vtable offset of a field slot
func slot(field int) flatbuffers.VOffsetT {
	return flatbuffers.VOffsetT((flatbuffers.VtableMetadataFields + field) * flatbuffers.SizeVOffsetT)
}

func BuildStatsFrame(frame StatsFrame) []byte {
	b := flatbuffers.NewBuilder(128 + 96*len(frame.Connections))

	connections := make([]flatbuffers.UOffsetT, len(frame.Connections))
	for i, conn := range frame.Connections {
		id := b.CreateString(conn.Id)
		remoteAddr := b.CreateString(conn.RemoteAddr)

		b.StartObject(connFieldCount)
		b.PrependUOffsetTSlot(connFieldId, id, 0)
		b.PrependUOffsetTSlot(connFieldRemoteAddr, remoteAddr, 0)
		b.PrependBoolSlot(connFieldConnected, conn.Connected, false)
		b.PrependInt64Slot(connFieldRtt, int64(conn.Rtt), 0)
		b.PrependUint64Slot(connFieldTotalSent, conn.TotalSent, 0)
		b.PrependUint64Slot(connFieldTotalReceived, conn.TotalReceived, 0)
		b.PrependUint64Slot(connFieldBpsSent, conn.BpsSent, 0)
		b.PrependUint64Slot(connFieldBpsReceived, conn.BpsReceived, 0)
		connections[i] = b.EndObject()
	}

	b.StartVector(flatbuffers.SizeUOffsetT, len(connections), flatbuffers.SizeUOffsetT)
	for i := len(connections) - 1; i >= 0; i-- {
		b.PrependUOffsetT(connections[i])
	}
	connectionsVector := b.EndVector(len(connections))

	b.StartObject(frameFieldCount)
	b.PrependInt64Slot(frameFieldTimestamp, frame.Timestamp.UnixMicro(), 0)
	b.PrependUOffsetTSlot(frameFieldConnections, connectionsVector, 0)
	b.Finish(b.EndObject())

	return b.FinishedBytes()
}

// ParseStatsFrame decodes a frame built by BuildStatsFrame. Flatbuffers
// accessors panic on out-of-range offsets, so malformed input is recovered
// into an error.
func ParseStatsFrame(buf []byte) (frame StatsFrame, err error) {
	defer func() {
		if r := recover(); r != nil {
			frame = StatsFrame{}
			err = fmt.Errorf("deformed stats frame: %v", r)
		}
	}()

	if len(buf) < flatbuffers.SizeUOffsetT {
		return StatsFrame{}, fmt.Errorf("stats frame too short (%d bytes)", len(buf))
	}

	root := flatbuffers.Table{
		Bytes: buf,
		Pos:   flatbuffers.GetUOffsetT(buf),
	}

	frame.Timestamp = time.UnixMicro(root.GetInt64Slot(slot(frameFieldTimestamp), 0))

	o := flatbuffers.UOffsetT(root.Offset(slot(frameFieldConnections)))
	if o == 0 {
		return frame, nil
	}

	count := root.VectorLen(o)
	start := root.Vector(o)
	frame.Connections = make([]ConnectionStats, count)
	for i := 0; i < count; i++ {
		conn := flatbuffers.Table{
			Bytes: buf,
			Pos:   root.Indirect(start + flatbuffers.UOffsetT(i)*flatbuffers.SizeUOffsetT),
		}
		frame.Connections[i] = parseConnectionStats(conn)
	}

	return frame, nil
}

func parseConnectionStats(t flatbuffers.Table) ConnectionStats {
	conn := ConnectionStats{
		Connected:     t.GetBoolSlot(slot(connFieldConnected), false),
		Rtt:           time.Duration(t.GetInt64Slot(slot(connFieldRtt), 0)),
		TotalSent:     t.GetUint64Slot(slot(connFieldTotalSent), 0),
		TotalReceived: t.GetUint64Slot(slot(connFieldTotalReceived), 0),
		BpsSent:       t.GetUint64Slot(slot(connFieldBpsSent), 0),
		BpsReceived:   t.GetUint64Slot(slot(connFieldBpsReceived), 0),
	}

	// ByteVector aliases buf, string() copies it out
	if o := flatbuffers.UOffsetT(t.Offset(slot(connFieldId))); o != 0 {
		conn.Id = string(t.ByteVector(o + t.Pos))
	}
	if o := flatbuffers.UOffsetT(t.Offset(slot(connFieldRemoteAddr))); o != 0 {
		conn.RemoteAddr = string(t.ByteVector(o + t.Pos))
	}

	return conn
}
