package ninep

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSyncStatTouchesNothing(t *testing.T) {
	s := SyncStat()
	assert.True(t, s.IsSync())
	assert.Equal(t, NoTouchU64, s.Length)
	assert.Equal(t, NoTouchU32, s.Atime)
	assert.Equal(t, NoTouchU32, s.Mtime)
	assert.Equal(t, Mode(NoTouchU32), s.Mode)
	assert.Empty(t, s.Name)
}

func TestSyncStatWithNameOnlyChangesName(t *testing.T) {
	want := SyncStat()
	want.Name = "c.txt"
	if diff := cmp.Diff(want, SyncStatWithName("c.txt")); diff != "" {
		t.Errorf("SyncStatWithName mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, SyncStatWithName("c.txt").IsSync())
}

func TestModeConversions(t *testing.T) {
	var tcs = []struct {
		os   os.FileMode
		mode Mode
	}{
		{0644, 0644},
		{os.ModeDir | 0755, M_DIR | 0755},
		{os.ModeAppend | 0600, M_APPEND | 0600},
		{os.ModeExclusive | 0600, M_EXCL | 0600},
	}
	for _, tc := range tcs {
		assert.Equal(t, tc.mode, ModeFromOS(tc.os))
		assert.Equal(t, tc.os, tc.mode.ToOsMode())
	}
	assert.Equal(t, QT_DIR, (M_DIR | 0777).QidType())
	assert.True(t, Qid{Type: QT_DIR}.IsDir())
	assert.False(t, Qid{Type: QT_FILE}.IsDir())
}

func TestOpenModeString(t *testing.T) {
	assert.Equal(t, "OREAD", OREAD.String())
	assert.Equal(t, "ORDWR|OTRUNC", (ORDWR | OTRUNC).String())
	assert.Equal(t, os.O_WRONLY|os.O_TRUNC, (OWRITE | OTRUNC).ToOsFlag())
	assert.True(t, ORDWR.IsReadable())
	assert.True(t, ORDWR.IsWriteable())
	assert.False(t, OREAD.IsWriteable())
}
