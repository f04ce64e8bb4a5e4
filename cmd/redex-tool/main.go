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

package main

import (
	"fmt"
	"os"

	"github.com/lfkdsk/redex/cmd/redex-tool/summaries"
	"github.com/lfkdsk/redex/cmd/redex-tool/tools"
	"github.com/lfkdsk/redex/internal/formatutil"
)

// Version is the version of the tool set.
const Version = "v0.1.0"

const usage = `Redex Tool: analysis tools for the bytecode optimizer
Usage:
  redex-tool [tool] [options]
  redex-tool [tool] --help
Tools:
  - summaries: loads a serialized escape-summary cache, validates it and prints its contents
Examples:
  Print a summary cache: redex-tool summaries --config=config.yaml
  Print a specific file: redex-tool summaries summaries.out`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected tool name\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(Version)
		return
	}

	args := os.Args[2:]
	switch cmd := os.Args[1]; cmd {
	case "summaries":
		flags, err := tools.NewCommonFlags("summaries", args, summaries.Usage)
		if err != nil {
			errExit(err)
		}
		if err := summaries.Run(flags); err != nil {
			errExit(err)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: %q is not a valid tool name\n%s\n", cmd, usage)
		os.Exit(2)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", formatutil.Red("error"), err)
	os.Exit(1)
}
