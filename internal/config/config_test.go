package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	gt.NoError(t, cfg.Validate())
	gt.Equal(t, cfg.Ranking.SimilarityWeight, 0.4)
	gt.Equal(t, cfg.Ranking.PopularityWeight, 0.2)
	gt.Equal(t, cfg.Ranking.FreshnessWeight, 0.15)
	gt.Equal(t, cfg.Ranking.Diversity, "drop")
	gt.Equal(t, cfg.Refresh.Mode, "sync")
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	gt.NoError(t, err)
	gt.Equal(t, cfg.Storage.DBPath, Default().Storage.DBPath)
	gt.Equal(t, cfg.Ranking.Timeout, 5*time.Second)
}

func TestSaveLoadRoundTripWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "feedcore.yaml")
	cfg := Default()
	cfg.Ranking.Category = "video"
	cfg.Refresh.ContentInterval = 15 * time.Minute
	gt.NoError(t, Save(path, cfg))

	t.Setenv("FEEDCORE_RANKING_DIVERSITY", "interleave")
	t.Setenv("FEEDCORE_STORAGE_DB_PATH", "/tmp/override.db")

	got, err := Load(path)
	gt.NoError(t, err)
	gt.Equal(t, got.Ranking.Category, "video")
	gt.Equal(t, got.Refresh.ContentInterval, 15*time.Minute)
	gt.Equal(t, got.Ranking.Diversity, "interleave")
	gt.Equal(t, got.Storage.DBPath, "/tmp/override.db")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	gt.NoError(t, os.WriteFile(path, []byte("ranking:\n  diversity: shuffle\n"), 0o644))
	_, err := Load(path)
	gt.Error(t, err)
}

func TestSaveRejectsEmptyPath(t *testing.T) {
	gt.Error(t, Save("", Default()))
}

func TestEnvKey(t *testing.T) {
	gt.Equal(t, envKey("FEEDCORE_REFRESH_CONTENT_INTERVAL"), "refresh.content_interval")
	gt.Equal(t, envKey("FEEDCORE_LOG_LEVEL"), "log.level")
}
