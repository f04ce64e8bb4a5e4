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

package localpointers

import (
	"fmt"
	"time"

	"github.com/lfkdsk/redex/analysis/config"
	"github.com/lfkdsk/redex/analysis/ir"
	"github.com/lfkdsk/redex/internal/funcutil"
	"github.com/lfkdsk/redex/internal/graphutil"
)

// AnalyzeMethod runs the intraprocedural analysis of one method, resolving its call sites against the summaries
// published in the cache, and returns the method's escape summary. Call sites without a published summary are
// treated as calls to unknown methods.
func AnalyzeMethod(method *ir.Method, cache *SummaryCache) EscapeSummary {
	if method.CFG.Exit == nil {
		method.CFG.ComputeExitBlock()
	}
	summaries := InvokeToSummaryMap{}
	method.CFG.ForEachInstruction(func(_ *ir.BasicBlock, instr *ir.Instruction) {
		if instr.Op != ir.OpInvoke {
			return
		}
		if s, ok := cache.Get(instr.Method); ok {
			summaries[instr] = s
		}
	})
	fp := NewFixpointIterator(method.CFG, summaries)
	fp.Run(NewEnvironment())
	return GetEscapeSummary(fp)
}

// AnalyzeScope analyzes every method of the program that matches the config's method filter and publishes the
// resulting summaries into the cache.
//
// Methods are processed bottom-up over the call graph, one strongly connected component at a time, so that when a
// method is analyzed the summaries of all its callees outside its own component are available. Methods inside one
// component (mutual recursion) see each other as unknown callees, which is conservative but keeps the schedule
// acyclic: no analysis ever waits on another. Within a component, methods are analyzed in parallel workers; each
// summary is published exactly once, after its component completes.
func AnalyzeScope(program *ir.Program, cache *SummaryCache, cfg *config.Config, logger *config.LogGroup) error {
	start := time.Now()
	callGraph := graphutil.NewMethodGraph(program)
	order, err := graphutil.Condense(callGraph).BottomUpOrder()
	if err != nil {
		return fmt.Errorf("could not schedule analysis: %w", err)
	}
	logger.Infof("analyzing %d methods in %d call graph components", len(program.Methods), len(order))

	type result struct {
		id      string
		summary EscapeSummary
	}
	analyzed := 0
	for _, component := range order {
		var methods []*ir.Method
		for _, m := range component {
			if cfg.MatchMethodFilter(m.ID) {
				methods = append(methods, m)
			} else {
				logger.Debugf("skipping %s: filtered out", m.ID)
			}
		}
		results := funcutil.MapParallel(methods, func(m *ir.Method) result {
			logger.Tracef("analyzing %s", m.ID)
			return result{id: m.ID, summary: AnalyzeMethod(m, cache)}
		}, cfg.NumWorkers)
		funcutil.Iter(results, func(r result) {
			cache.Publish(r.id, r.summary)
			logger.Debugf("summary of %s: %s", r.id, r.summary)
		})
		analyzed += len(results)
	}
	logger.Infof("analyzed %d methods in %s", analyzed, time.Since(start))
	return nil
}
