// Package config provides configuration parsing for frp servers.
//
// The configuration is stored in frp.json (or frp.yaml / frp.yml) in the
// working directory. Missing fields take their defaults.
//
// # Configuration File Structure
//
//	{
//	  "server": {
//	    "addr": ":8080",
//	    "readBufferSize": 4096,
//	    "writeBufferSize": 4096,
//	    "readTimeout": "60s",
//	    "inputRate": 120,
//	    "inputBurst": 32,
//	    "window": 64,
//	    "allowedOrigins": ["https://example.com"]
//	  },
//	  "metrics": {
//	    "enabled": true,
//	    "namespace": "frp",
//	    "path": "/metrics"
//	  },
//	  "tracing": {
//	    "enabled": false,
//	    "tracerName": "frp",
//	    "exporter": "stdout"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  },
//	  "budget": {
//	    "maxEmissions": 1048576,
//	    "maxDeferredRounds": 1024
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromDir(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Addr:", cfg.Server.Addr)
package config
