package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStorageConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.ini")
	content := `[storage]
data_dir = /tmp/godb
pool_size = 128
num_instances = 4
page_size = 8192
bucket_capacity = 16
log_level = debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadStorageConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/godb", cfg.DataDir)
	assert.Equal(t, 128, cfg.PoolSize)
	assert.Equal(t, 4, cfg.NumInstances)
	assert.Equal(t, 8192, cfg.PageSize)
	assert.Equal(t, 16, cfg.BucketCapacity)
	assert.Equal(t, "debug", cfg.LogLevel)
	// unset keys keep the defaults
	assert.Equal(t, "godb.db", cfg.DataFile)
}

func TestStorageConfig_Validate(t *testing.T) {
	cfg := NewStorageConfig()
	assert.NoError(t, cfg.Validate())

	cfg.PageSize = 1000
	assert.Error(t, cfg.Validate(), "page size must be a power of two")

	cfg = NewStorageConfig()
	cfg.PoolSize = 0
	assert.Error(t, cfg.Validate())

	cfg = NewStorageConfig()
	cfg.NumInstances = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadStorageConfig_MissingFile(t *testing.T) {
	_, err := LoadStorageConfig(filepath.Join(t.TempDir(), "nope.ini"))
	assert.Error(t, err)
}
