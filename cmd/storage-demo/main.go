package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zhukovaskychina/godb-storage/basic"
	"github.com/zhukovaskychina/godb-storage/buffer"
	"github.com/zhukovaskychina/godb-storage/concurrency"
	"github.com/zhukovaskychina/godb-storage/conf"
	"github.com/zhukovaskychina/godb-storage/container/hash"
	"github.com/zhukovaskychina/godb-storage/logger"
	"github.com/zhukovaskychina/godb-storage/storage/disk"
)

// storage-demo brings the core up from a config file and runs a short
// insert / lookup / remove cycle through the hash index.
func main() {
	configPath := flag.String("config", "", "path to a storage ini file")
	flag.Parse()

	cfg := conf.NewStorageConfig()
	if *configPath != "" {
		loaded, err := conf.LoadStorageConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "storage-demo: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := logger.InitLogger(logger.LogConfig{
		InfoLogPath:  cfg.LogInfos,
		ErrorLogPath: cfg.LogError,
		LogLevel:     cfg.LogLevel,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "storage-demo: init logger: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Fatalf("create data dir %s: %v", cfg.DataDir, err)
	}
	diskManager, err := disk.NewFileDiskManager(filepath.Join(cfg.DataDir, cfg.DataFile), cfg.PageSize)
	if err != nil {
		logger.Fatalf("open disk manager: %v", err)
	}

	bpm := buffer.NewParallelBufferPoolManager(uint32(cfg.NumInstances), cfg.PoolSize, cfg.PageSize, diskManager)
	lockManager := concurrency.NewLockManager()
	txnManager := concurrency.NewTransactionManager(lockManager)

	index, err := hash.NewExtendibleHashTable(bpm, uint32(cfg.BucketCapacity))
	if err != nil {
		logger.Fatalf("create hash index: %v", err)
	}

	txn := txnManager.Begin(concurrency.REPEATABLE_READ)
	for key := uint64(1); key <= 1000; key++ {
		rid := basic.NewRID(basic.PageID(key), uint32(key%16))
		if !index.Insert(txn, key, rid) {
			logger.Fatalf("insert of key %d rejected", key)
		}
	}
	logger.Infof("inserted 1000 entries, directory depth is %d", index.GetGlobalDepth())

	found := index.GetValue(txn, 512)
	logger.Infof("key 512 resolves to %v", found)

	for key := uint64(1); key <= 1000; key++ {
		rid := basic.NewRID(basic.PageID(key), uint32(key%16))
		if !index.Remove(txn, key, rid) {
			logger.Fatalf("remove of key %d rejected", key)
		}
	}
	logger.Infof("removed all entries, directory depth is %d", index.GetGlobalDepth())
	txnManager.Commit(txn)

	bpm.FlushAllPages()
	if err := diskManager.ShutDown(); err != nil {
		logger.Fatalf("shut down disk manager: %v", err)
	}
	logger.Infof("storage-demo finished, database file is %s", filepath.Join(cfg.DataDir, cfg.DataFile))
}
