package security

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	safe := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(safe, "frames"), 0o755))

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing subdir", filepath.Join(safe, "frames"), false},
		{"new file in new subdir", filepath.Join(safe, "new", "squat_000001.jpg"), false},
		{"safe dir itself", safe, false},
		{"parent escape", filepath.Join(safe, "..", "elsewhere.db"), true},
		{"dotdot inside", filepath.Join(safe, "frames", "..", "..", "x"), true},
		{"absolute outside", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, safe)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePathRejectsSymlinkEscape(t *testing.T) {
	safe := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(safe, "out")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(link, "frame.jpg"), safe))
	assert.Error(t, ValidatePathWithinDirectory(filepath.Join(link, "deeper", "frame.jpg"), safe))
}

func TestValidatePathWithinAllowedDirs(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	assert.NoError(t, ValidatePathWithinAllowedDirs(filepath.Join(b, "x.db"), []string{a, b}))
	assert.Error(t, ValidatePathWithinAllowedDirs("/etc/x.db", []string{a, b}))
	assert.Error(t, ValidatePathWithinAllowedDirs(filepath.Join(a, "x.db"), nil))
}

func TestValidateOutputPath(t *testing.T) {
	assert.NoError(t, ValidateOutputPath(filepath.Join(os.TempDir(), "pose-replay", "events.db")))
	assert.NoError(t, ValidateOutputPath("frames/out.jpg"))
	assert.Error(t, ValidateOutputPath("/etc/pose.db"))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"squat":             "squat",
		"Sumo Squat":        "Sumo_Squat",
		"../../etc/passwd":  "etc_passwd",
		"a  /  b":           "a_b",
		"":                  "unknown",
		"...":               "unknown",
		"lunge-hold_v2.min": "lunge-hold_v2.min",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestFrameFileName(t *testing.T) {
	assert.Equal(t, "warrior_pose_000042.jpg", FrameFileName("warrior pose", 42))
	assert.Equal(t, "unknown_000001.jpg", FrameFileName("", 1))
}
