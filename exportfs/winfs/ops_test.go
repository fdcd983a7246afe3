package winfs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffh/ninefs/ninep"
	"github.com/jeffh/ninefs/ninep/nineptest"
)

func newTestFS(t *testing.T, opts Options) (*FileSystem, *nineptest.Client) {
	t.Helper()
	clt := nineptest.New()
	clt.Dev = 3
	clt.AddDir("/a")
	clt.AddFile("/a/b.txt", []byte("hello world"))
	clt.ResetCalls()
	return New(NewSession(clt, opts)), clt
}

var ctx = context.Background()

func lp(s string) []uint16 { return LocalPath(s) }

func TestCreateFileOpensExisting(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	var fc FileContext
	require.Equal(t, ERROR_SUCCESS, fs.CreateFile(ctx, lp(`\a\b.txt`), GENERIC_READ|GENERIC_WRITE, OPEN_EXISTING, &fc))
	assert.Equal(t, Opened, fc.State())
	assert.False(t, fc.IsDirectory())

	opens := clt.CallsFor("open")
	require.Len(t, opens, 1)
	assert.Equal(t, "/a/b.txt", opens[0].Path)
	assert.Equal(t, ninep.ORDWR, opens[0].Mode)
	assert.Empty(t, clt.CallsFor("create"))

	assert.Equal(t, ERROR_SUCCESS, fs.Cleanup(ctx, lp(`\a\b.txt`), &fc))
	assert.Equal(t, ERROR_SUCCESS, fs.CloseFile(ctx, lp(`\a\b.txt`), &fc))
	assert.Equal(t, 0, clt.OpenRefs())
	assert.Len(t, clt.CallsFor("clunk"), 1)
}

func TestCreateFileModes(t *testing.T) {
	var tcs = []struct {
		access      AccessMask
		disposition CreateDisposition
		mode        ninep.OpenMode
	}{
		{GENERIC_READ, OPEN_EXISTING, ninep.OREAD},
		{FILE_READ_DATA, OPEN_EXISTING, ninep.OREAD},
		{GENERIC_WRITE, OPEN_EXISTING, ninep.OWRITE},
		{FILE_WRITE_DATA, OPEN_ALWAYS, ninep.OWRITE},
		{GENERIC_READ | FILE_WRITE_DATA, OPEN_EXISTING, ninep.ORDWR},
		{GENERIC_ALL, OPEN_EXISTING, ninep.ORDWR},
		{0, OPEN_EXISTING, ninep.OREAD},
		{GENERIC_WRITE, TRUNCATE_EXISTING, ninep.OWRITE | ninep.OTRUNC},
		{GENERIC_READ | GENERIC_WRITE, CREATE_ALWAYS, ninep.ORDWR | ninep.OTRUNC},
	}
	for _, tc := range tcs {
		assert.Equal(t, tc.mode, openMode(tc.access, tc.disposition), "%x %s", tc.access, tc.disposition)
	}
}

func TestCreateFileCreatesWhenMissing(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	var fc FileContext
	require.Equal(t, ERROR_SUCCESS, fs.CreateFile(ctx, lp(`\a\new.txt`), GENERIC_READ|GENERIC_WRITE, CREATE_ALWAYS, &fc))

	calls := clt.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "open", calls[0].Op)
	assert.Equal(t, ninep.ORDWR|ninep.OTRUNC, calls[0].Mode)
	assert.Equal(t, "create", calls[1].Op)
	assert.Equal(t, ninep.ORDWR|ninep.OTRUNC, calls[1].Mode)
	assert.Equal(t, ninep.Mode(0666), calls[1].Perm)
	assert.True(t, clt.Exists("/a/new.txt"))

	assert.Equal(t, ERROR_SUCCESS, fs.CloseFile(ctx, lp(`\a\new.txt`), &fc))
	assert.Equal(t, 0, clt.OpenRefs())
}

func TestCreateFileWithoutCreationRight(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	var fc FileContext
	assert.Equal(t, ERROR_FILE_NOT_FOUND, fs.CreateFile(ctx, lp(`\a\nope.txt`), GENERIC_READ, OPEN_EXISTING, &fc))
	assert.Empty(t, clt.CallsFor("create"))
	assert.Equal(t, Unopened, fc.State())
}

func TestCreateFileBothFail(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	clt.Fail("create", "/a/new.txt", ninep.NewError("permission denied"))

	for i := 0; i < 3; i++ {
		var fc FileContext
		errno := fs.CreateFile(ctx, lp(`\a\new.txt`), GENERIC_READ|GENERIC_WRITE, TRUNCATE_EXISTING, &fc)
		// TRUNCATE_EXISTING never creates
		assert.Equal(t, ERROR_FILE_NOT_FOUND, errno)

		errno = fs.CreateFile(ctx, lp(`\a\new.txt`), GENERIC_READ|GENERIC_WRITE, CREATE_ALWAYS, &fc)
		assert.Equal(t, ERROR_ACCESS_DENIED, errno)
		assert.Equal(t, Unopened, fc.State())
	}
	assert.Len(t, clt.CallsFor("create"), 3)
	assert.Equal(t, 0, clt.OpenRefs())
}

func TestCreateFileCreateNewRefusesExisting(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	var fc FileContext
	assert.Equal(t, ERROR_FILE_EXISTS, fs.CreateFile(ctx, lp(`\a\b.txt`), GENERIC_WRITE, CREATE_NEW, &fc))
	assert.Equal(t, 0, clt.OpenRefs())
	data, _ := clt.Data("/a/b.txt")
	assert.Equal(t, "hello world", string(data))
}

func TestCreateFileTranslatesSpaces(t *testing.T) {
	fs, clt := newTestFS(t, Options{PathTranslation: true})
	var fc FileContext
	require.Equal(t, ERROR_SUCCESS, fs.CreateFile(ctx, lp(`\a\my file.txt`), GENERIC_WRITE, OPEN_ALWAYS, &fc))
	assert.True(t, clt.Exists("/a/my?file.txt"))
	fs.CloseFile(ctx, lp(`\a\my file.txt`), &fc)
}

func TestCreateFileBadName(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	var fc FileContext
	assert.Equal(t, ERROR_NO_UNICODE_TRANSLATION, fs.CreateFile(ctx, []uint16{'\\', 0xD800}, GENERIC_READ, OPEN_ALWAYS, &fc))
	assert.Empty(t, clt.Calls())
}

func TestCreateDirectory(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	var fc FileContext
	require.Equal(t, ERROR_SUCCESS, fs.CreateDirectory(ctx, lp(`\a\sub`), &fc))

	creates := clt.CallsFor("create")
	require.Len(t, creates, 1)
	assert.Equal(t, ninep.M_DIR|0777, creates[0].Perm)
	assert.Equal(t, ninep.OREAD, creates[0].Mode)
	assert.Equal(t, 0, clt.OpenRefs())
	assert.Equal(t, Unopened, fc.State())

	assert.Equal(t, ERROR_ALREADY_EXISTS, fs.CreateDirectory(ctx, lp(`\a\sub`), &fc))
}

func TestOpenDirectory(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	var fc FileContext
	require.Equal(t, ERROR_SUCCESS, fs.OpenDirectory(ctx, lp(`\a`), &fc))
	assert.True(t, fc.IsDirectory())
	assert.Equal(t, 1, clt.OpenRefs())
	fs.CloseFile(ctx, lp(`\a`), &fc)

	var fc2 FileContext
	assert.Equal(t, ERROR_DIRECTORY, fs.OpenDirectory(ctx, lp(`\a\b.txt`), &fc2))
	assert.Equal(t, Unopened, fc2.State())
	assert.Equal(t, 0, clt.OpenRefs())

	assert.Equal(t, ERROR_FILE_NOT_FOUND, fs.OpenDirectory(ctx, lp(`\missing`), &fc2))
}

func TestReadWriteWithContext(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	var fc FileContext
	require.Equal(t, ERROR_SUCCESS, fs.CreateFile(ctx, lp(`\a\b.txt`), GENERIC_READ|GENERIC_WRITE, OPEN_EXISTING, &fc))

	buf := make([]byte, 5)
	n, errno := fs.ReadFile(ctx, lp(`\a\b.txt`), buf, 6, &fc)
	require.Equal(t, ERROR_SUCCESS, errno)
	assert.Equal(t, "world", string(buf[:n]))

	n, errno = fs.WriteFile(ctx, lp(`\a\b.txt`), []byte("HELLO"), 0, &fc)
	require.Equal(t, ERROR_SUCCESS, errno)
	assert.Equal(t, 5, n)

	// one open for the context, none on demand
	assert.Len(t, clt.CallsFor("open"), 1)
	fs.CloseFile(ctx, lp(`\a\b.txt`), &fc)

	data, _ := clt.Data("/a/b.txt")
	assert.Equal(t, "HELLO world", string(data))
}

func TestReadPartialAndEOF(t *testing.T) {
	fs, _ := newTestFS(t, Options{})
	buf := make([]byte, 64)
	n, errno := fs.ReadFile(ctx, lp(`\a\b.txt`), buf, 0, nil)
	require.Equal(t, ERROR_SUCCESS, errno)
	assert.Equal(t, 11, n)

	n, errno = fs.ReadFile(ctx, lp(`\a\b.txt`), buf, 100, nil)
	require.Equal(t, ERROR_SUCCESS, errno)
	assert.Zero(t, n)

	_, errno = fs.ReadFile(ctx, lp(`\a\b.txt`), buf, -1, nil)
	assert.Equal(t, ERROR_INVALID_PARAMETER, errno)
}

func TestOnDemandReadWriteReleasesReference(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	clt.Fail("read", "/a/b.txt", ninep.NewError("i/o error"))
	clt.Fail("write", "/a/b.txt", ninep.NewError("file system full"))

	for i := 0; i < 5; i++ {
		_, errno := fs.ReadFile(ctx, lp(`\a\b.txt`), make([]byte, 4), 0, nil)
		assert.Equal(t, ERROR_INVALID_PARAMETER, errno)
		var fc FileContext
		_, errno = fs.WriteFile(ctx, lp(`\a\b.txt`), []byte("x"), 0, &fc)
		assert.Equal(t, ERROR_DISK_FULL, errno)
		assert.Equal(t, 0, clt.OpenRefs())
	}
	assert.Len(t, clt.CallsFor("open"), 10)
	assert.Len(t, clt.CallsFor("clunk"), 10)

	for _, call := range clt.CallsFor("open") {
		assert.Contains(t, []ninep.OpenMode{ninep.OREAD, ninep.OWRITE}, call.Mode)
	}

	clt.Fail("read", "/a/b.txt", nil)
	n, errno := fs.ReadFile(ctx, lp(`\a\b.txt`), make([]byte, 5), 0, nil)
	assert.Equal(t, ERROR_SUCCESS, errno)
	assert.Equal(t, 5, n)
	assert.Equal(t, 0, clt.OpenRefs())
}

func TestOnDemandOpenFailure(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	_, errno := fs.ReadFile(ctx, lp(`\a\missing`), make([]byte, 4), 0, nil)
	assert.Equal(t, ERROR_FILE_NOT_FOUND, errno)
	assert.Equal(t, 0, clt.OpenRefs())
}

func TestFlushSendsEmptyPatch(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	require.Equal(t, ERROR_SUCCESS, fs.FlushFileBuffers(ctx, lp(`\a\b.txt`), nil))
	wstats := clt.CallsFor("wstat")
	require.Len(t, wstats, 1)
	assert.True(t, wstats[0].Stat.IsSync())
}

func TestGetFileInformation(t *testing.T) {
	fs, _ := newTestFS(t, Options{})
	var info FileInformation
	require.Equal(t, ERROR_SUCCESS, fs.GetFileInformation(ctx, lp(`\a\b.txt`), &info, nil))
	assert.Equal(t, uint64(11), info.FileSize())
	assert.Equal(t, uint32(3), info.VolumeSerialNumber)
	assert.Equal(t, FILE_ATTRIBUTE_NORMAL, info.FileAttributes)

	require.Equal(t, ERROR_SUCCESS, fs.GetFileInformation(ctx, lp(`\a`), &info, nil))
	assert.Equal(t, FILE_ATTRIBUTE_DIRECTORY, info.FileAttributes)

	assert.Equal(t, ERROR_FILE_NOT_FOUND, fs.GetFileInformation(ctx, lp(`\nope`), &info, nil))
}

func collect(t *testing.T, fs *FileSystem, dir string) ([]string, Errno) {
	t.Helper()
	var names []string
	errno := fs.FindFiles(ctx, lp(dir), func(fd *FindData) {
		names = append(names, fd.Name())
	}, nil)
	return names, errno
}

func TestFindFiles(t *testing.T) {
	fs, clt := newTestFS(t, Options{PathTranslation: true})
	clt.AddFile("/a/with?space", nil)
	clt.AddDir("/a/sub")

	names, errno := collect(t, fs, `\a`)
	require.Equal(t, ERROR_SUCCESS, errno)
	assert.Equal(t, []string{"b.txt", "sub", "with space"}, names)
	assert.Equal(t, 0, clt.OpenRefs())
}

func TestFindFilesElidesBadEntries(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	clt.SetDirBatches("/a",
		[]ninep.Stat{{Name: "one"}, {Name: "bad\xffname"}, {Name: ""}, {Name: "two"}},
		[]ninep.Stat{{Name: "three"}},
	)
	names, errno := collect(t, fs, `\a`)
	require.Equal(t, ERROR_SUCCESS, errno)
	assert.Equal(t, []string{"one", "two", "three"}, names)
	assert.Len(t, clt.CallsFor("dirread"), 3)
	assert.Equal(t, 0, clt.OpenRefs())
}

func TestFindFilesDirreadError(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	clt.Fail("dirread", "/a", ninep.NewError("permission denied"))
	_, errno := collect(t, fs, `\a`)
	assert.Equal(t, ERROR_ACCESS_DENIED, errno)
	assert.Equal(t, 0, clt.OpenRefs())
}

func TestFindFilesKeepsEntriesBeforeBadRecord(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	clt.SetDirBatches("/a", []ninep.Stat{{Name: "one"}, {Name: "two"}})
	clt.SetDirError("/a", &ninep.Error{Ename: "malformed directory entry: short entry", Errno: ninep.EIO})

	names, errno := collect(t, fs, `\a`)
	assert.Equal(t, ERROR_INVALID_PARAMETER, errno)
	assert.Equal(t, []string{"one", "two"}, names)
	assert.Equal(t, 0, clt.OpenRefs())
}

func TestDelete(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	assert.Equal(t, ERROR_DIR_NOT_EMPTY, fs.DeleteDirectory(ctx, lp(`\a`), nil))
	assert.Equal(t, ERROR_SUCCESS, fs.DeleteFile(ctx, lp(`\a\b.txt`), nil))
	assert.Equal(t, ERROR_SUCCESS, fs.DeleteDirectory(ctx, lp(`\a`), nil))
	assert.False(t, clt.Exists("/a"))
	assert.Equal(t, ERROR_FILE_NOT_FOUND, fs.DeleteFile(ctx, lp(`\a\b.txt`), nil))
	assert.Len(t, clt.CallsFor("remove"), 4)
}

func TestMoveFileSameDirectory(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	require.Equal(t, ERROR_SUCCESS, fs.MoveFile(ctx, lp(`\a\b.txt`), lp(`\a\c.txt`), false, nil))

	wstats := clt.CallsFor("wstat")
	require.Len(t, wstats, 1)
	assert.Equal(t, "/a/b.txt", wstats[0].Path)
	assert.Equal(t, ninep.SyncStatWithName("c.txt"), wstats[0].Stat)
	assert.True(t, clt.Exists("/a/c.txt"))
	assert.False(t, clt.Exists("/a/b.txt"))
}

func TestMoveFileAcrossDirectoriesRejected(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	clt.AddDir("/z")
	clt.ResetCalls()

	assert.Equal(t, ERROR_NOT_SAME_DEVICE, fs.MoveFile(ctx, lp(`\a\b.txt`), lp(`\z\c.txt`), true, nil))
	assert.Equal(t, ERROR_NOT_SAME_DEVICE, fs.MoveFile(ctx, lp(`\a\b.txt`), lp(`\c.txt`), true, nil))
	assert.Empty(t, clt.Calls())
	assert.True(t, clt.Exists("/a/b.txt"))
}

func TestMoveFileExistingTarget(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	clt.AddFile("/a/c.txt", []byte("old"))

	assert.Equal(t, ERROR_ALREADY_EXISTS, fs.MoveFile(ctx, lp(`\a\b.txt`), lp(`\a\c.txt`), false, nil))
	assert.Empty(t, clt.CallsFor("wstat"))

	require.Equal(t, ERROR_SUCCESS, fs.MoveFile(ctx, lp(`\a\b.txt`), lp(`\a\c.txt`), true, nil))
	data, _ := clt.Data("/a/c.txt")
	assert.Equal(t, "hello world", string(data))
	assert.False(t, clt.Exists("/a/b.txt"))
	assert.False(t, clt.Exists("/a/.c.txt.ninefs-0"))

	removes := clt.CallsFor("remove")
	require.Len(t, removes, 1)
	assert.Equal(t, "/a/.c.txt.ninefs-0", removes[0].Path)
}

func TestMoveFileFailedRenameKeepsTarget(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	clt.AddFile("/a/c.txt", []byte("precious"))
	clt.Fail("wstat", "/a/b.txt", &ninep.Error{Ename: "permission denied", Errno: ninep.EACCES})

	assert.Equal(t, ERROR_ACCESS_DENIED, fs.MoveFile(ctx, lp(`\a\b.txt`), lp(`\a\c.txt`), true, nil))
	data, ok := clt.Data("/a/c.txt")
	require.True(t, ok)
	assert.Equal(t, "precious", string(data))
	assert.True(t, clt.Exists("/a/b.txt"))
	assert.False(t, clt.Exists("/a/.c.txt.ninefs-0"))
	assert.Empty(t, clt.CallsFor("remove"))
}

func TestMoveFileSetAsideSkipsTakenNames(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	clt.AddFile("/a/c.txt", []byte("old"))
	clt.AddFile("/a/.c.txt.ninefs-0", []byte("someone else's"))

	require.Equal(t, ERROR_SUCCESS, fs.MoveFile(ctx, lp(`\a\b.txt`), lp(`\a\c.txt`), true, nil))
	data, _ := clt.Data("/a/.c.txt.ninefs-0")
	assert.Equal(t, "someone else's", string(data))
	assert.False(t, clt.Exists("/a/.c.txt.ninefs-1"))
}

func TestMoveFileSetAsideRefused(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	clt.AddFile("/a/c.txt", []byte("old"))
	clt.Fail("wstat", "/a/c.txt", &ninep.Error{Ename: "permission denied", Errno: ninep.EACCES})

	assert.Equal(t, ERROR_ACCESS_DENIED, fs.MoveFile(ctx, lp(`\a\b.txt`), lp(`\a\c.txt`), true, nil))
	assert.True(t, clt.Exists("/a/b.txt"))
	assert.True(t, clt.Exists("/a/c.txt"))
	for _, call := range clt.CallsFor("wstat") {
		assert.NotEqual(t, "/a/b.txt", call.Path)
	}
}

func TestSetEndOfFile(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	require.Equal(t, ERROR_SUCCESS, fs.SetEndOfFile(ctx, lp(`\a\b.txt`), 5, nil))
	wstats := clt.CallsFor("wstat")
	require.Len(t, wstats, 1)
	want := ninep.SyncStat()
	want.Length = 5
	assert.Equal(t, want, wstats[0].Stat)

	data, _ := clt.Data("/a/b.txt")
	assert.Equal(t, "hello", string(data))

	assert.Equal(t, ERROR_INVALID_PARAMETER, fs.SetEndOfFile(ctx, lp(`\a\b.txt`), -1, nil))
}

func TestSetFileTime(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	creation := FiletimeFromUnix(1)
	assert.Equal(t, ERROR_SUCCESS, fs.SetFileTime(ctx, lp(`\a\b.txt`), &creation, nil, nil, nil))
	assert.Empty(t, clt.Calls())

	write := FiletimeFromUnix(2000)
	require.Equal(t, ERROR_SUCCESS, fs.SetFileTime(ctx, lp(`\a\b.txt`), nil, nil, &write, nil))
	access := FiletimeFromUnix(1000)
	require.Equal(t, ERROR_SUCCESS, fs.SetFileTime(ctx, lp(`\a\b.txt`), nil, &access, &write, nil))

	wstats := clt.CallsFor("wstat")
	require.Len(t, wstats, 2)
	assert.Equal(t, ninep.NoTouchU32, wstats[0].Stat.Atime)
	assert.Equal(t, uint32(2000), wstats[0].Stat.Mtime)
	assert.Equal(t, ninep.NoTouchU64, wstats[0].Stat.Length)
	assert.Equal(t, uint32(1000), wstats[1].Stat.Atime)
	assert.Equal(t, uint32(2000), wstats[1].Stat.Mtime)
}

func TestSetFileAttributes(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	assert.Equal(t, ERROR_SUCCESS, fs.SetFileAttributes(ctx, lp(`\a\b.txt`), FILE_ATTRIBUTE_NORMAL, nil))
	assert.Equal(t, ERROR_SUCCESS, fs.SetFileAttributes(ctx, lp(`\a\b.txt`), 0, nil))
	assert.Equal(t, ERROR_NOT_SUPPORTED, fs.SetFileAttributes(ctx, lp(`\a\b.txt`), FILE_ATTRIBUTE_HIDDEN, nil))
	assert.Equal(t, ERROR_NOT_SUPPORTED, fs.SetFileAttributes(ctx, lp(`\a\b.txt`), FILE_ATTRIBUTE_NORMAL|FILE_ATTRIBUTE_READONLY, nil))
	assert.Empty(t, clt.Calls())
}

func TestUnsupportedOperationsSkipRemote(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	for _, off := range []int64{-1, 0, 1 << 40} {
		assert.Equal(t, ERROR_NOT_SUPPORTED, fs.LockFile(ctx, lp(`\a\b.txt`), off, 10, nil))
		assert.Equal(t, ERROR_NOT_SUPPORTED, fs.UnlockFile(ctx, lp(`\nope`), off, 0, nil))
		assert.Equal(t, ERROR_CALL_NOT_IMPLEMENTED, fs.SetAllocationSize(ctx, lp(`\a\b.txt`), off, nil))
	}
	assert.Empty(t, clt.Calls())
}

func TestUnmountIsIdempotent(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	assert.Equal(t, ERROR_SUCCESS, fs.Unmount(ctx))
	assert.Equal(t, ERROR_SUCCESS, fs.Unmount(ctx))
	assert.True(t, clt.Closed())
	assert.Len(t, clt.CallsFor("close"), 1)
	assert.False(t, fs.Session().Mounted())

	var info FileInformation
	assert.Equal(t, ERROR_NOT_READY, fs.GetFileInformation(ctx, lp(`\a\b.txt`), &info, nil))
	_, err := fs.Session().Client()
	assert.True(t, errors.Is(err, ninep.ErrUnmounted))
}

func TestIndependentSessions(t *testing.T) {
	fs1, clt1 := newTestFS(t, Options{})
	fs2, clt2 := newTestFS(t, Options{PathTranslation: true})
	fs1.Unmount(ctx)

	var fc FileContext
	assert.Equal(t, ERROR_SUCCESS, fs2.CreateFile(ctx, lp(`\a\x y`), GENERIC_WRITE, OPEN_ALWAYS, &fc))
	fs2.CloseFile(ctx, lp(`\a\x y`), &fc)
	assert.True(t, clt2.Exists("/a/x?y"))
	assert.True(t, clt1.Closed())
	assert.False(t, clt2.Closed())
}

func TestConcurrentOpenReadCleanup(t *testing.T) {
	fs, clt := newTestFS(t, Options{})
	name := lp(`\a\b.txt`)

	var wg sync.WaitGroup
	errs := make(chan string, 1024)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				var fc FileContext
				if e := fs.CreateFile(ctx, name, GENERIC_READ, OPEN_EXISTING, &fc); !e.Ok() {
					errs <- "open: " + e.Error()
					return
				}
				buf := make([]byte, 5)
				if n, e := fs.ReadFile(ctx, name, buf, 6, &fc); !e.Ok() || string(buf[:n]) != "world" {
					errs <- "read: " + e.Error()
				}
				var info FileInformation
				if e := fs.GetFileInformation(ctx, name, &info, &fc); !e.Ok() {
					errs <- "stat: " + e.Error()
				}
				fs.Cleanup(ctx, name, &fc)
				fs.CloseFile(ctx, name, &fc)
			}
		}()
	}

	// reads on one context race its cleanup
	var shared FileContext
	require.Equal(t, ERROR_SUCCESS, fs.CreateFile(ctx, name, GENERIC_READ, OPEN_EXISTING, &shared))
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				buf := make([]byte, 5)
				if n, e := fs.ReadFile(ctx, name, buf, 0, &shared); !e.Ok() || string(buf[:n]) != "hello" {
					errs <- "shared read: " + e.Error()
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fs.Cleanup(ctx, name, &shared)
		fs.CloseFile(ctx, name, &shared)
	}()

	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
	assert.Equal(t, Closed, shared.State())
	assert.Equal(t, 0, clt.OpenRefs())
}
