// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config holds the options of an analysis run.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// if the MethodFilter is specified
	methodFilterRegex *regexp.Regexp
}

// Options are the options of an analysis run that map directly to config file entries.
type Options struct {
	// SummariesFile is the path of the serialized escape-summary cache, relative to the config file. When set,
	// summaries found in the file are loaded before the analysis and results are written back after it.
	SummariesFile string `yaml:"summaries-file"`

	// MethodFilter restricts the analysis to the methods whose identity matches it. Methods that are filtered
	// out are treated as unknown callees by the analysis of the remaining methods, which is conservative.
	MethodFilter string `yaml:"method-filter"`

	// NumWorkers is the number of parallel analysis workers. Values below 1 mean a single worker.
	NumWorkers int `yaml:"num-workers"`

	// LogLevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// SilenceWarn suppresses warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			SummariesFile: "",
			MethodFilter:  "",
			NumWorkers:    DefaultNumWorkers,
			LogLevel:      int(InfoLevel),
			SilenceWarn:   false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	cfg := NewDefault()
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = DefaultNumWorkers
	}

	if cfg.MethodFilter != "" {
		r, err := regexp.Compile(cfg.MethodFilter)
		if err == nil {
			cfg.methodFilterRegex = r
		}
	}

	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// MatchMethodFilter returns true if the method identity matches the method filter set in the config file. If no
// filter has been set, any identity matches. This function safely considers the case where a filter has been
// specified by the user, but it could not be compiled to a regex. The safe case is to check whether the filter
// string is a prefix of the identity.
func (c Config) MatchMethodFilter(methodID string) bool {
	if c.methodFilterRegex != nil {
		return c.methodFilterRegex.MatchString(methodID)
	} else if c.MethodFilter != "" {
		return strings.HasPrefix(methodID, c.MethodFilter)
	} else {
		return true
	}
}
