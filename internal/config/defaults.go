package config

import "github.com/spf13/viper"

// setDefaults registers default values for every setting.
func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", BackendJSON)
	v.SetDefault("storage.path", DefaultDataPath())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("export.dir", ".")
	v.SetDefault("export.logo", "")

	v.SetDefault("backup.dir", DefaultBackupDir())
	v.SetDefault("backup.keep", 10)
	v.SetDefault("backup.on_exit", false)

	v.SetDefault("desktop.addr", "127.0.0.1:8090")
}

// Defaults returns the settings used when no file, environment or flag
// overrides anything.
func Defaults() *Settings {
	v := viper.New()
	setDefaults(v)
	s := &Settings{}
	// Unmarshal of plain defaults cannot fail.
	_ = v.Unmarshal(s)
	return s
}
