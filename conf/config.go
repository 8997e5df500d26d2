package conf

import (
	perrors "github.com/pkg/errors"
	"gopkg.in/ini.v1"

	"github.com/zhukovaskychina/godb-storage/basic"
)

// StorageConfig carries everything the storage core needs at startup.
// Values mirror the [storage] section of the ini file; missing keys keep
// the programmatic defaults.
type StorageConfig struct {
	Raw *ini.File `ini:"-"`

	DataDir  string `ini:"data_dir"`
	DataFile string `ini:"data_file"`

	PageSize       int `ini:"page_size"`
	PoolSize       int `ini:"pool_size"`
	NumInstances   int `ini:"num_instances"`
	BucketCapacity int `ini:"bucket_capacity"`

	LogError string `ini:"log_error"`
	LogInfos string `ini:"log_infos"`
	LogLevel string `ini:"log_level"`
}

// NewStorageConfig returns the defaults: one pool of 64 frames over 4K
// pages, bucket capacity derived from the page size.
func NewStorageConfig() *StorageConfig {
	return &StorageConfig{
		Raw:          ini.Empty(),
		DataDir:      "data",
		DataFile:     "godb.db",
		PageSize:     basic.PageSize,
		PoolSize:     64,
		NumInstances: 1,
		LogLevel:     "info",
	}
}

// LoadStorageConfig reads path and overlays it onto the defaults.
func LoadStorageConfig(path string) (*StorageConfig, error) {
	cfg := NewStorageConfig()

	raw, err := ini.Load(path)
	if err != nil {
		return nil, perrors.Wrapf(err, "load storage config %s", path)
	}
	cfg.Raw = raw

	if err := raw.Section("storage").MapTo(cfg); err != nil {
		return nil, perrors.Wrapf(err, "map storage section of %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the pool constructors would panic on.
func (cfg *StorageConfig) Validate() error {
	if cfg.PageSize <= 0 || cfg.PageSize&(cfg.PageSize-1) != 0 {
		return perrors.Errorf("page_size %d must be a positive power of two", cfg.PageSize)
	}
	if cfg.PoolSize <= 0 {
		return perrors.Errorf("pool_size %d must be positive", cfg.PoolSize)
	}
	if cfg.NumInstances <= 0 {
		return perrors.Errorf("num_instances %d must be positive", cfg.NumInstances)
	}
	if cfg.BucketCapacity < 0 {
		return perrors.Errorf("bucket_capacity %d must not be negative", cfg.BucketCapacity)
	}
	return nil
}
