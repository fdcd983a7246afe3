package winfs

type FileAttribute uint32

const (
	FILE_ATTRIBUTE_READONLY  FileAttribute = 0x00000001
	FILE_ATTRIBUTE_HIDDEN    FileAttribute = 0x00000002
	FILE_ATTRIBUTE_SYSTEM    FileAttribute = 0x00000004
	FILE_ATTRIBUTE_DIRECTORY FileAttribute = 0x00000010
	FILE_ATTRIBUTE_ARCHIVE   FileAttribute = 0x00000020
	FILE_ATTRIBUTE_NORMAL    FileAttribute = 0x00000080
	FILE_ATTRIBUTE_TEMPORARY FileAttribute = 0x00000100
)

func (a FileAttribute) IsDir() bool { return a&FILE_ATTRIBUTE_DIRECTORY != 0 }

// AccessMask holds the access rights requested by a create call.
type AccessMask uint32

const (
	FILE_READ_DATA   AccessMask = 0x00000001
	FILE_WRITE_DATA  AccessMask = 0x00000002
	FILE_APPEND_DATA AccessMask = 0x00000004
	GENERIC_ALL      AccessMask = 0x10000000
	GENERIC_EXECUTE  AccessMask = 0x20000000
	GENERIC_WRITE    AccessMask = 0x40000000
	GENERIC_READ     AccessMask = 0x80000000
)

func (a AccessMask) readable() bool {
	return a&(GENERIC_READ|FILE_READ_DATA|GENERIC_ALL) != 0
}

func (a AccessMask) writable() bool {
	return a&(GENERIC_WRITE|FILE_WRITE_DATA|GENERIC_ALL) != 0
}

type CreateDisposition uint32

const (
	CREATE_NEW        CreateDisposition = 1
	CREATE_ALWAYS     CreateDisposition = 2
	OPEN_EXISTING     CreateDisposition = 3
	OPEN_ALWAYS       CreateDisposition = 4
	TRUNCATE_EXISTING CreateDisposition = 5
)

func (d CreateDisposition) String() string {
	switch d {
	case CREATE_NEW:
		return "CREATE_NEW"
	case CREATE_ALWAYS:
		return "CREATE_ALWAYS"
	case OPEN_EXISTING:
		return "OPEN_EXISTING"
	case OPEN_ALWAYS:
		return "OPEN_ALWAYS"
	case TRUNCATE_EXISTING:
		return "TRUNCATE_EXISTING"
	}
	return "CreateDisposition(?)"
}

// mayCreate reports whether a missing file should be created.
func (d CreateDisposition) mayCreate() bool {
	return d == CREATE_NEW || d == CREATE_ALWAYS || d == OPEN_ALWAYS
}

// truncates reports whether existing content is replaced on open.
func (d CreateDisposition) truncates() bool {
	return d == TRUNCATE_EXISTING || d == CREATE_ALWAYS
}

const (
	MaxPath      = 260 // capacity of FindData.FileName, terminator included
	MaxShortName = 14  // capacity of FindData.AlternateFileName, terminator included
)
