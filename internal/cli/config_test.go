package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestSaveConfigRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	viper.Reset()

	path, err := SaveConfig("http://localhost:8080", "tok123", home)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".tsapictl.yaml"), path)
	require.FileExists(t, path)

	viper.Reset()
	InitConfig()
	cfg := GetConfig()
	require.Equal(t, "http://localhost:8080", cfg.ServerURL)
	require.Equal(t, "tok123", cfg.Token)
	require.Equal(t, home, cfg.WatchFolder)
}

func TestInitConfigHonorsExplicitConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: http://example.com\ntoken: abc\n"), 0o644))

	cfgFile = path
	defer func() { cfgFile = "" }()
	viper.Reset()
	InitConfig()

	cfg := GetConfig()
	require.Equal(t, "http://example.com", cfg.ServerURL)
	require.Equal(t, "abc", cfg.Token)
}

func TestIsAudioFileFiltersByExtension(t *testing.T) {
	require.True(t, isAudioFile(".mp3"))
	require.True(t, isAudioFile(".wav"))
	require.False(t, isAudioFile(".WAV"))
	require.False(t, isAudioFile(".txt"))
	require.False(t, isAudioFile(""))
}
