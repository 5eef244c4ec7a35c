package main

import (
	"github.com/banshee-data/pose.report/internal/config"
	"github.com/banshee-data/pose.report/internal/db"
	"github.com/banshee-data/pose.report/internal/pose/sink"
	"github.com/banshee-data/pose.report/internal/pose/storage/postgres"
	"github.com/banshee-data/pose.report/internal/pose/storage/sqlite"
)

// overrides are command-line values that win over the file and the
// environment. Empty fields are ignored.
type overrides struct {
	Listen     string
	GRPCListen string
	DBDriver   string
	DBDSN      string
	MQTTBroker string
}

// eventStore is what the service needs from a storage backend.
type eventStore interface {
	sink.Store
	sink.Pruner
}

// loadConfig layers defaults, the optional file, the environment and
// flags, in that order.
func loadConfig(path string, lookup func(string) (string, bool), o overrides) (*config.PoseConfig, error) {
	cfg := &config.PoseConfig{}
	if path != "" {
		var err error
		if cfg, err = config.LoadPoseConfig(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(lookup)

	set := func(dst **string, v string) {
		if v != "" {
			*dst = &v
		}
	}
	set(&cfg.Listen, o.Listen)
	set(&cfg.GRPCListen, o.GRPCListen)
	set(&cfg.DBDriver, o.DBDriver)
	set(&cfg.DBDSN, o.DBDSN)
	set(&cfg.MQTTBroker, o.MQTTBroker)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newStore(d *db.DB) eventStore {
	if d.Driver == db.DriverPostgres {
		return postgres.NewEventStore(d.DB)
	}
	return sqlite.NewEventStore(d.DB)
}
