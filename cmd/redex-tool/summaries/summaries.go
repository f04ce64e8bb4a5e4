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

// Package summaries implements the front-end for the escape-summary inspection tool.
package summaries

import (
	"fmt"

	"github.com/lfkdsk/redex/analysis/config"
	"github.com/lfkdsk/redex/analysis/localpointers"
	"github.com/lfkdsk/redex/cmd/redex-tool/tools"
	"github.com/lfkdsk/redex/internal/formatutil"
)

// Usage for the summaries tool.
const Usage = `Load a serialized escape-summary cache, validate it and print its contents.
Usage:
  redex-tool summaries [options] [summaries-file]
When no summaries-file argument is given, the summaries-file entry of the config file is used.`

// Run loads the summary cache named either by the first positional argument or by the config file, prints every
// summary it contains and reports aggregate statistics. Loading fails on the first malformed entry.
func Run(flags tools.CommonFlags) error {
	cfg, err := tools.LoadConfig(flags.ConfigPath)
	if err != nil {
		return err
	}
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(cfg)

	var path string
	switch {
	case flags.FlagSet.NArg() > 0:
		path = flags.FlagSet.Arg(0)
	case cfg.SummariesFile != "":
		path = cfg.RelPath(cfg.SummariesFile)
	default:
		return fmt.Errorf("no summaries file: pass one as an argument or set summaries-file in the config file")
	}

	logger.Infof("Loading summaries from %s", formatutil.Cyan(path))
	cache := localpointers.NewSummaryCache()
	if err := cache.LoadFile(path); err != nil {
		return fmt.Errorf("invalid summaries file %s: %w", path, err)
	}

	numEscaping := 0
	numTopReturn := 0
	for _, id := range cache.MethodIDs() {
		summary, _ := cache.Get(id)
		// Method identities come from a file; strip escape sequences before they reach the terminal.
		fmt.Printf("%s %s\n", formatutil.Green(formatutil.Sanitize(id)), formatutil.SanitizeRepr(summary))
		if summary.EscapingParameters.Len() > 0 {
			numEscaping++
		}
		if summary.ReturnedParameters.IsTop() {
			numTopReturn++
		}
	}

	logger.Infof("%s", formatutil.Bold(fmt.Sprintf("%d summaries loaded", cache.Size())))
	logger.Infof("  %s", formatutil.Faint(fmt.Sprintf("%d with at least one escaping parameter", numEscaping)))
	logger.Infof("  %s", formatutil.Yellow(fmt.Sprintf("%d returning an untracked value", numTopReturn)))
	return nil
}
