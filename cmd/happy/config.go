package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"go.happytemplate.net/catalog"
	"go.happytemplate.net/happy"
)

// A config is the contents of a -config file:
//
//	load: [google.protobuf]
//	descriptors: [api.pb]
//	maxCallDepth: 500
//	noDebugInfo: false
//	globals:
//	  title: Report
//	  limits: {rows: 10}
//
// Relative descriptor paths are taken as given.
type config struct {
	Load         []string               `yaml:"load"`
	Descriptors  []string               `yaml:"descriptors"`
	MaxCallDepth int                    `yaml:"maxCallDepth"`
	NoDebugInfo  bool                   `yaml:"noDebugInfo"`
	Globals      map[string]interface{} `yaml:"globals"`
}

// readConfig decodes a config, rejecting unknown keys.
// An empty input yields the zero config.
func readConfig(r io.Reader) (*config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	cfg := new(config)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if cfg.MaxCallDepth < 0 {
		return nil, fmt.Errorf("maxCallDepth must not be negative")
	}
	return cfg, nil
}

func loadConfig(filename string) (*config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := readConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", filename, err)
	}
	return cfg, nil
}

// apply adds the config's settings to opts.
func (cfg *config) apply(opts *happy.Options) error {
	opts.Load = append(opts.Load, cfg.Load...)
	opts.NoDebugInfo = opts.NoDebugInfo || cfg.NoDebugInfo
	for _, name := range sortedKeys(cfg.Globals) {
		v, err := yamlValue(cfg.Globals[name])
		if err != nil {
			return fmt.Errorf("global %s: %v", name, err)
		}
		opts.Predeclared[name] = v
	}
	if len(cfg.Descriptors) > 0 {
		src, err := descriptorSource(cfg.Descriptors)
		if err != nil {
			return err
		}
		opts.Catalog = src
	}
	return nil
}

// descriptorSource returns a catalog of the messages described by the
// named FileDescriptorSet files.
func descriptorSource(filenames []string) (catalog.Source, error) {
	var data []byte
	for _, filename := range filenames {
		b, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		// Concatenated FileDescriptorSets are a valid FileDescriptorSet.
		data = append(data, b...)
	}
	files, err := catalog.LoadDescriptorSet(data)
	if err != nil {
		return nil, err
	}
	return catalog.ProtoSource{Files: files}, nil
}

// yamlValue converts a decoded YAML value to a Happy value.
// Mappings become objects with their keys in sorted order.
func yamlValue(x interface{}) (happy.Value, error) {
	switch x := x.(type) {
	case nil, bool, string, float64:
		return x, nil
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	case []interface{}:
		elems := make([]happy.Value, len(x))
		for i, e := range x {
			v, err := yamlValue(e)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return happy.NewList(elems), nil
	case map[string]interface{}:
		obj := happy.NewObject()
		for _, k := range sortedKeys(x) {
			v, err := yamlValue(x[k])
			if err != nil {
				return nil, err
			}
			obj.SetField(k, v)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("unsupported value %v of type %T", x, x)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
