// Package config provides configuration parsing for the localstate CLI.
//
// The configuration is stored in localstate.json in the working directory
// or any parent. Every field can be overridden with a LOCALSTATE_*
// environment variable. This package handles loading, saving, validating
// and opening the configured store.
//
// # Configuration File Structure
//
//	{
//	  "store": {
//	    "kind": "sqlite",
//	    "path": ".localstate/items.db",
//	    "pollInterval": "250ms"
//	  },
//	  "codec": "json",
//	  "log": {
//	    "level": "debug",
//	    "format": "json"
//	  }
//	}
//
// Store kinds: memory, file (dir), sqlite (path, table, pollInterval),
// s3 (bucket, prefix, region, endpoint, pathStyle) and null.
//
// # Environment
//
//	LOCALSTATE_STORE        store.kind
//	LOCALSTATE_DIR          store.dir
//	LOCALSTATE_PATH         store.path
//	LOCALSTATE_TABLE        store.table
//	LOCALSTATE_POLL         store.pollInterval
//	LOCALSTATE_BUCKET       store.bucket
//	LOCALSTATE_PREFIX       store.prefix
//	LOCALSTATE_REGION       store.region
//	LOCALSTATE_ENDPOINT     store.endpoint
//	LOCALSTATE_CODEC        codec
//	LOCALSTATE_LOG_LEVEL    log.level
//	LOCALSTATE_LOG_FORMAT   log.format
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store, err := cfg.OpenStore(ctx, logger)
package config
