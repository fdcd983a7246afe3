package winfs

import (
	"math"
	"time"
)

const (
	// 100ns ticks between 1601-01-01 and 1970-01-01
	unixEpochTicks = 116444736000000000
	ticksPerSecond = 10000000
)

// Filetime is a local timestamp: 100ns ticks since 1601, split in halves.
type Filetime struct {
	LowDateTime  uint32
	HighDateTime uint32
}

func FiletimeFromTicks(ticks uint64) Filetime {
	return Filetime{LowDateTime: uint32(ticks), HighDateTime: uint32(ticks >> 32)}
}

// FiletimeFromUnix converts remote unix seconds to a local timestamp.
func FiletimeFromUnix(sec uint32) Filetime {
	return FiletimeFromTicks(uint64(sec)*ticksPerSecond + unixEpochTicks)
}

func FiletimeFromTime(t time.Time) Filetime {
	if t.Unix() < 0 {
		return FiletimeFromTicks(unixEpochTicks)
	}
	return FiletimeFromTicks(uint64(t.Unix())*ticksPerSecond + uint64(t.Nanosecond()/100) + unixEpochTicks)
}

func (ft Filetime) Ticks() uint64 {
	return uint64(ft.HighDateTime)<<32 | uint64(ft.LowDateTime)
}

func (ft Filetime) IsZero() bool { return ft == Filetime{} }

// Unix converts to remote unix seconds, dropping sub-second ticks. Times
// before 1970 become 0. Times past the remote range stop one short of
// 0xFFFFFFFF, which the remote side reads as "leave unchanged".
func (ft Filetime) Unix() uint32 {
	ticks := ft.Ticks()
	if ticks < unixEpochTicks {
		return 0
	}
	sec := (ticks - unixEpochTicks) / ticksPerSecond
	if sec >= math.MaxUint32 {
		return math.MaxUint32 - 1
	}
	return uint32(sec)
}

func (ft Filetime) Time() time.Time {
	ticks := ft.Ticks()
	if ticks < unixEpochTicks {
		return time.Unix(0, 0)
	}
	ticks -= unixEpochTicks
	return time.Unix(int64(ticks/ticksPerSecond), int64(ticks%ticksPerSecond)*100)
}
