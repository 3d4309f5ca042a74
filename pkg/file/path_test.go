package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceExt(t *testing.T) {
	tests := []struct {
		path string
		ext  string
		want string
	}{
		{path: "uploads/clip.mp3", ext: ".wav", want: filepath.Join("uploads", "clip.wav")},
		{path: "uploads/clip.mp3", ext: "wav", want: filepath.Join("uploads", "clip.wav")},
		{path: "uploads/clip", ext: ".wav", want: filepath.Join("uploads", "clip.wav")},
		{path: "uploads/a.b.ogg", ext: ".wav", want: filepath.Join("uploads", "a.b.wav")},
		{path: "", ext: ".wav", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReplaceExt(tt.path, tt.ext), tt.path)
	}
}

func TestExtAndHasExt(t *testing.T) {
	allowed := []string{"mp3", "wav", "ogg", "flac", "m4a"}

	assert.Equal(t, "mp3", Ext("Song.MP3"))
	assert.Equal(t, "", Ext("noext"))
	assert.Equal(t, "", Ext(".wav"))
	assert.Equal(t, "", Ext("trailing."))

	assert.True(t, HasExt("voice.M4A", allowed))
	assert.True(t, HasExt("voice.wav", []string{".wav"}))
	assert.False(t, HasExt("audio.xyz", allowed))
	assert.False(t, HasExt("wav", allowed))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "passwd", SafeName("../../etc/passwd"))
	assert.Equal(t, "my_clip_1_.mp3", SafeName("my clip (1).mp3"))
	assert.Equal(t, "evil.wav", SafeName(`C:\temp\evil.wav`))
	assert.Equal(t, "upload", SafeName(".."))
}

func TestFindOlderThan(t *testing.T) {
	dir := t.TempDir()
	oldFile := filepath.Join(dir, "old.wav")
	newFile := filepath.Join(dir, "nested", "new.mp3")
	require.NoError(t, os.WriteFile(oldFile, []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(newFile), 0o755))
	require.NoError(t, os.WriteFile(newFile, []byte("y"), 0o644))

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldFile, past, past))

	stale, err := FindOlderThan(dir, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{oldFile}, stale)

	missing, err := FindOlderThan(filepath.Join(dir, "missing"), time.Now())
	require.NoError(t, err)
	assert.Empty(t, missing)
}
