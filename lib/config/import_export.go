package config

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

func (img *Image) LoadData(dir string) error {
	if len(img.DataFile) != 0 {
		fname := img.DataFile
		if !filepath.IsAbs(fname) {
			fname = filepath.Join(dir, fname)
		}

		f, err := os.Open(fname)
		if err != nil {
			return err
		}
		defer f.Close()

		data, err := ioutil.ReadAll(f)
		if err != nil {
			return err
		}
		img.Data = data
	}

	return nil
}

// LoadData reads every referenced image file. Relative data_file paths
// are resolved against dir, which LoadConfig sets to the config file's
// directory.
func (c *Config) LoadData(dir string) error {
	if c.Firmware == nil {
		return nil
	}

	for _, img := range c.Firmware.Images {
		err := img.LoadData(dir)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) WriteTOML(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	enc := toml.NewEncoder(f)
	err = enc.Encode(c)
	if err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

func LoadConfig(filename string) (*Config, error) {
	var cfg = &Config{}
	_, err := toml.DecodeFile(filename, cfg)
	if err != nil {
		return nil, err
	}

	err = cfg.LoadData(filepath.Dir(filename))
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
