package winfs

import (
	"github.com/jeffh/ninefs/ninep"
)

// FileInformation mirrors BY_HANDLE_FILE_INFORMATION.
type FileInformation struct {
	FileAttributes     FileAttribute
	CreationTime       Filetime
	LastAccessTime     Filetime
	LastWriteTime      Filetime
	VolumeSerialNumber uint32
	FileSizeHigh       uint32
	FileSizeLow        uint32
	NumberOfLinks      uint32
	FileIndexHigh      uint32
	FileIndexLow       uint32
}

func (fi *FileInformation) FileSize() uint64 {
	return uint64(fi.FileSizeHigh)<<32 | uint64(fi.FileSizeLow)
}

func (fi *FileInformation) FileIndex() uint64 {
	return uint64(fi.FileIndexHigh)<<32 | uint64(fi.FileIndexLow)
}

// FindData mirrors WIN32_FIND_DATAW.
type FindData struct {
	FileAttributes    FileAttribute
	CreationTime      Filetime
	LastAccessTime    Filetime
	LastWriteTime     Filetime
	FileSizeHigh      uint32
	FileSizeLow       uint32
	Reserved0         uint32
	Reserved1         uint32
	FileName          [MaxPath]uint16
	AlternateFileName [MaxShortName]uint16
}

func (fd *FindData) FileSize() uint64 {
	return uint64(fd.FileSizeHigh)<<32 | uint64(fd.FileSizeLow)
}

func (fd *FindData) Name() string      { return LocalString(fd.FileName[:]) }
func (fd *FindData) ShortName() string { return LocalString(fd.AlternateFileName[:]) }

func attributesOf(st ninep.Stat) FileAttribute {
	if st.Qid.IsDir() {
		return FILE_ATTRIBUTE_DIRECTORY
	}
	return FILE_ATTRIBUTE_NORMAL
}

// FileInformationFromStat projects a remote stat onto the local file
// information record. The remote side has no creation time, so it is
// always zero.
func FileInformationFromStat(st ninep.Stat) FileInformation {
	return FileInformation{
		FileAttributes:     attributesOf(st),
		LastAccessTime:     FiletimeFromUnix(st.Atime),
		LastWriteTime:      FiletimeFromUnix(st.Mtime),
		VolumeSerialNumber: st.Dev,
		FileSizeHigh:       uint32(st.Length >> 32),
		FileSizeLow:        uint32(st.Length),
		NumberOfLinks:      1,
		FileIndexHigh:      uint32(st.Qid.Path >> 32),
		FileIndexLow:       uint32(st.Qid.Path),
	}
}

// FindDataFromStat projects a directory entry onto a find data record.
// It fails only when the entry's name cannot be encoded locally.
func (c NameCodec) FindDataFromStat(st ninep.Stat) (FindData, error) {
	name, err := c.ToLocal(st.Name)
	if err != nil {
		return FindData{}, err
	}
	fd := FindData{
		FileAttributes: attributesOf(st),
		LastAccessTime: FiletimeFromUnix(st.Atime),
		LastWriteTime:  FiletimeFromUnix(st.Mtime),
		FileSizeHigh:   uint32(st.Length >> 32),
		FileSizeLow:    uint32(st.Length),
	}
	copy(fd.FileName[:MaxPath-1], name)
	fd.AlternateFileName = shortName(fd.FileName)
	return fd, nil
}

// shortName derives the legacy alternate name: walk the primary name up
// to its terminator, drop every '.', emit a '.' once 8 characters have
// been emitted, and stop at 13. Not a real 8.3 name and not unique.
func shortName(name [MaxPath]uint16) [MaxShortName]uint16 {
	var alt [MaxShortName]uint16
	j := 0
	for i := 0; j < 13 && name[i] != 0; i++ {
		if j == 8 {
			alt[j] = '.'
			j++
		}
		if name[i] != '.' {
			alt[j] = name[i]
			j++
		}
	}
	return alt
}
