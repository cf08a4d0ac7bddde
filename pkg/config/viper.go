package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load builds the coordinator's configuration source: a YAML file looked
// up in configPath (then the working directory and ./config), with every
// key overridable through the environment (dots become underscores, so
// meeting.grace_period reads MEETING_GRACE_PERIOD). A missing file is not
// an error; containerised deployments often configure purely through the
// environment.
func Load(configPath, configName string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	for _, p := range []string{configPath, ".", "./config"} {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err == nil {
		return v, nil
	}
	if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
		return v, nil
	}
	return nil, fmt.Errorf("read config %s: %w", configName, err)
}
