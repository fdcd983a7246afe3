package ninep

import (
	"fmt"
	"os"
	"strings"
)

// Access intent for an open or create call.
type OpenMode uint8

const (
	OREAD   OpenMode = 0
	OWRITE  OpenMode = 1
	ORDWR   OpenMode = 2
	OEXEC   OpenMode = 3 // execute, == read but check execute permission
	OTRUNC  OpenMode = 0x10
	ORCLOSE OpenMode = 0x40 // remove on close

	OMODE OpenMode = 3
)

func (m OpenMode) IsReadOnly() bool  { return m&OMODE == OREAD }
func (m OpenMode) IsWriteOnly() bool { return m&OMODE == OWRITE }
func (m OpenMode) IsReadWrite() bool { return m&OMODE == ORDWR }

// IsReadOnly() || IsReadWrite()
func (m OpenMode) IsReadable() bool { return m.IsReadOnly() || m.IsReadWrite() }

// IsWriteOnly() || IsReadWrite()
func (m OpenMode) IsWriteable() bool { return m.IsWriteOnly() || m.IsReadWrite() }

func (m OpenMode) String() string {
	res := []string{}
	switch m & OMODE {
	case OREAD:
		res = append(res, "OREAD")
	case OWRITE:
		res = append(res, "OWRITE")
	case ORDWR:
		res = append(res, "ORDWR")
	case OEXEC:
		res = append(res, "OEXEC")
	}
	if m&OTRUNC != 0 {
		res = append(res, "OTRUNC")
	}
	if m&ORCLOSE != 0 {
		res = append(res, "ORCLOSE")
	}
	return strings.Join(res, "|")
}

// ToOsFlag converts the open mode into flags suitable for os.OpenFile.
func (m OpenMode) ToOsFlag() int {
	var flags int
	switch {
	case m.IsWriteOnly():
		flags |= os.O_WRONLY
	case m.IsReadWrite():
		flags |= os.O_RDWR
	default:
		flags |= os.O_RDONLY
	}
	if m&OTRUNC != 0 {
		flags |= os.O_TRUNC
	}
	return flags
}

// Permission and type bits of a remote file.
type Mode uint32

const (
	M_DIR    Mode = 0x80000000 // mode bit for directories
	M_APPEND Mode = 0x40000000 // mode bit for append only files
	M_EXCL   Mode = 0x20000000 // mode bit for exclusive use files
	M_MOUNT  Mode = 0x10000000 // mode bit for mounted channel
	M_AUTH   Mode = 0x08000000 // mode bit for authentication file
	M_TMP    Mode = 0x04000000 // mode bit for non-backed-up file

	M_TYPE Mode = M_DIR | M_APPEND | M_EXCL | M_MOUNT | M_AUTH | M_TMP
	M_PERM Mode = 0777
)

func (m Mode) IsDir() bool { return m&M_DIR != 0 }

func (m Mode) String() string {
	res := []string{os.FileMode(m & M_PERM).String()}
	if m&M_DIR != 0 {
		res = append(res, "M_DIR")
	}
	if m&M_APPEND != 0 {
		res = append(res, "M_APPEND")
	}
	if m&M_EXCL != 0 {
		res = append(res, "M_EXCL")
	}
	if m&M_AUTH != 0 {
		res = append(res, "M_AUTH")
	}
	if m&M_TMP != 0 {
		res = append(res, "M_TMP")
	}
	return strings.Join(res, "|")
}

// QidType returns the qid type bits implied by the mode's type bits.
func (m Mode) QidType() QidType { return QidType((m & M_TYPE) >> 24) }

func (m Mode) ToOsMode() os.FileMode {
	mode := os.FileMode(m & M_PERM)
	if m&M_DIR != 0 {
		mode |= os.ModeDir
	}
	if m&M_APPEND != 0 {
		mode |= os.ModeAppend
	}
	if m&M_EXCL != 0 {
		mode |= os.ModeExclusive
	}
	if m&M_TMP != 0 {
		mode |= os.ModeTemporary
	}
	return mode
}

func ModeFromOS(mode os.FileMode) Mode {
	perm := Mode(mode.Perm())
	if mode&os.ModeDir != 0 {
		perm |= M_DIR
	}
	if mode&os.ModeAppend != 0 {
		perm |= M_APPEND
	}
	if mode&os.ModeExclusive != 0 {
		perm |= M_EXCL
	}
	if mode&os.ModeTemporary != 0 {
		perm |= M_TMP
	}
	return perm
}

type QidType uint8

const (
	QT_FILE    QidType = 0x00
	QT_SYMLINK QidType = 0x02
	QT_TMP     QidType = 0x04
	QT_AUTH    QidType = 0x08
	QT_MOUNT   QidType = 0x10
	QT_EXCL    QidType = 0x20
	QT_APPEND  QidType = 0x40
	QT_DIR     QidType = 0x80
)

func (qt QidType) IsDir() bool { return qt&QT_DIR != 0 }

func (qt QidType) String() string {
	if qt == QT_FILE {
		return "QT_FILE"
	}
	parts := []string{}
	if qt&QT_DIR != 0 {
		parts = append(parts, "QT_DIR")
	}
	if qt&QT_APPEND != 0 {
		parts = append(parts, "QT_APPEND")
	}
	if qt&QT_EXCL != 0 {
		parts = append(parts, "QT_EXCL")
	}
	if qt&QT_MOUNT != 0 {
		parts = append(parts, "QT_MOUNT")
	}
	if qt&QT_AUTH != 0 {
		parts = append(parts, "QT_AUTH")
	}
	if qt&QT_TMP != 0 {
		parts = append(parts, "QT_TMP")
	}
	if qt&QT_SYMLINK != 0 {
		parts = append(parts, "QT_SYMLINK")
	}
	return strings.Join(parts, "|")
}

// Unique identity of a remote file. Path is stable for the lifetime of
// the file and is reported locally as the file index.
type Qid struct {
	Type    QidType
	Version uint32
	Path    uint64
}

func (q Qid) IsDir() bool { return q.Type.IsDir() }

func (q Qid) String() string {
	return fmt.Sprintf("Qid{%s, v=%d, path=%d}", q.Type, q.Version, q.Path)
}
