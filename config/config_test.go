package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 3000, cfg.ServerPort)
	require.Equal(t, "full-stack todo app", cfg.Title)
	require.Equal(t, BackendPostgres, cfg.StoreBackend)
	require.Equal(t, "s3cret", cfg.Session.Secret)
	require.Equal(t, "todolist.sid", cfg.Session.CookieName)
	require.Equal(t, 24*time.Hour, cfg.Session.TTL)
	require.Equal(t, BackendLocal, cfg.Upload.Backend)
	require.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
	require.Equal(t, BackendNone, cfg.MQ.Backend)
	require.Equal(t, "todolist.activity", cfg.MQ.Channel)
	require.True(t, cfg.UsesPostgres())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8081")
	t.Setenv("STORE_BACKEND", BackendMongo)
	t.Setenv("SESSION_BACKEND", BackendRedis)
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("MONGO_URI", "mongodb://mongo:27017")
	t.Setenv("UPLOAD_BACKEND", BackendMinio)
	t.Setenv("MINIO_BUCKET", "avatars")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, 8081, cfg.ServerPort)
	require.Equal(t, 30*time.Minute, cfg.Session.TTL)
	require.Equal(t, "db.internal", cfg.Database.Host)
	require.Equal(t, "mongodb://mongo:27017", cfg.Mongo.URI)
	require.Equal(t, "avatars", cfg.Minio.Bucket)
	require.False(t, cfg.UsesPostgres())
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	t.Setenv("SESSION_TTL", "soon")

	_, err := LoadConfig()
	require.Error(t, err)
}
