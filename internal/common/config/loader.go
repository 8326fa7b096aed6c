package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// NewFileViper returns a viper instance reading filePath. Keys are split on "::" rather than "." so that
// resource names such as "nvidia.com/gpu" can be used as map keys.
func NewFileViper(filePath string) (*viper.Viper, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(filePath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithMessagef(err, "failed to read in config %s", filePath)
	}
	return v, nil
}

// Unmarshal decodes the current contents of v into config using CustomHooks.
func Unmarshal(v *viper.Viper, config interface{}) error {
	if err := v.Unmarshal(config, CustomHooks...); err != nil {
		return errors.WithMessagef(err, "failed to unmarshal config %s", v.ConfigFileUsed())
	}
	return nil
}

// LoadConfigFile reads filePath into config.
func LoadConfigFile(filePath string, config interface{}) error {
	v, err := NewFileViper(filePath)
	if err != nil {
		return errors.WithStack(err)
	}
	return Unmarshal(v, config)
}
