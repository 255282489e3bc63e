package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/rileyhilliard/rackwatch/internal/errors"
)

// Watch starts watching path and calls onChange with the re-parsed, validated
// config after every write. Invalid edits go to onError and the previous
// config stays in effect. The watch lives for the rest of the process.
func Watch(path string, onChange func(*Config), onError func(error)) error {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read config file for watching",
			"Check the file exists and is valid YAML")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := parseConfig(v, path)
		if err == nil {
			err = Validate(cfg)
		}
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}
