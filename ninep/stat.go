package ninep

import "fmt"

// Values a Stat field carries when a wstat should leave it unchanged.
const (
	NoTouchU8  = ^uint8(0)
	NoTouchU16 = ^uint16(0)
	NoTouchU32 = ^uint32(0)
	NoTouchU64 = ^uint64(0)
)

// Stat is a snapshot of a remote file's metadata. Times are unix seconds.
type Stat struct {
	Type   uint16
	Dev    uint32
	Qid    Qid
	Mode   Mode
	Atime  uint32
	Mtime  uint32
	Length uint64
	Name   string
	Uid    string
	Gid    string
	Muid   string
}

// SyncStat returns a stat where every field means "don't touch". Sending it
// with WriteStat asks the server to commit the file to stable storage.
func SyncStat() Stat {
	return Stat{
		Type:   NoTouchU16,
		Dev:    NoTouchU32,
		Qid:    Qid{Type: QidType(NoTouchU8), Version: NoTouchU32, Path: NoTouchU64},
		Mode:   Mode(NoTouchU32),
		Atime:  NoTouchU32,
		Mtime:  NoTouchU32,
		Length: NoTouchU64,
	}
}

// SyncStatWithName is SyncStat with only the name changed, which renames
// the file within its directory.
func SyncStatWithName(name string) Stat {
	s := SyncStat()
	s.Name = name
	return s
}

func (s Stat) IsDir() bool { return s.Qid.IsDir() || s.Mode.IsDir() }

// IsSync reports whether every field of s is "don't touch".
func (s Stat) IsSync() bool { return s == SyncStat() }

func (s Stat) String() string {
	return fmt.Sprintf("Stat{name=%q, %s, mode=%s, len=%d, atime=%d, mtime=%d, uid=%q, gid=%q}",
		s.Name, s.Qid, s.Mode, s.Length, s.Atime, s.Mtime, s.Uid, s.Gid)
}
