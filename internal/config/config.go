package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr string

	// DB
	Env    string // "dev" | "prod"
	DBPath string // e.g. "./data/stockguard.db"

	// Artifact directories. Both must sit outside any web-servable path;
	// the server only ever writes canonical-timestamp filenames into them.
	SnapshotDir string
	ReportDir   string
}

func FromEnv() Config {
	v := viper.New()
	v.SetEnvPrefix("STOCKGUARD")
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("env", "dev")
	v.SetDefault("db_path", "./data/stockguard.db")
	v.SetDefault("snapshot_dir", "./data/snapshots")
	v.SetDefault("report_dir", "./data/reports")

	env := strings.ToLower(v.GetString("env"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	return Config{
		HTTPAddr: v.GetString("http_addr"),

		Env:    env,
		DBPath: v.GetString("db_path"),

		SnapshotDir: v.GetString("snapshot_dir"),
		ReportDir:   v.GetString("report_dir"),
	}
}
