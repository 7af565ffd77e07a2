package types

// Codec converts values to and from their on-disk byte representation. The
// persistent tier never inspects value contents; everything it writes goes
// through a Codec so the serialization format is explicit and swappable.
type Codec[V any] interface {
	Encode(value V) ([]byte, error)
	Decode(data []byte) (V, error)
}

// Recorder receives cache events as they happen. Implementations must be
// safe for concurrent use and must not block; the cache calls them while
// holding internal locks.
type Recorder interface {
	RecordHit(tier string)
	RecordMiss()
	RecordSet()
	RecordInvalidations(n int)
	RecordEviction(tier string)
	RecordDroppedWrite()
	RecordCorruptionRepair()
	RecordWarmedEntry()
	SetTierSize(tier string, size int)
}

// NopRecorder discards all events. It stands in when no metrics collector
// is wired up.
type NopRecorder struct{}

func (NopRecorder) RecordHit(string)        {}
func (NopRecorder) RecordMiss()             {}
func (NopRecorder) RecordSet()              {}
func (NopRecorder) RecordInvalidations(int) {}
func (NopRecorder) RecordEviction(string)   {}
func (NopRecorder) RecordDroppedWrite()     {}
func (NopRecorder) RecordCorruptionRepair() {}
func (NopRecorder) RecordWarmedEntry()      {}
func (NopRecorder) SetTierSize(string, int) {}
