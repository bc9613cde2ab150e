// Package kernelcodegen emits the kernel-side C++ configuration: the
// thread/process/capability objects for every user process (state.cpp),
// their forward declarations (state.hpp), and a resource metadata table
// (resources) the kernel can hand to drivers without parsing TOML itself.
package kernelcodegen

import (
	"fmt"
	"sort"

	"github.com/epoxyos/harden/internal/buildererr"
	"github.com/epoxyos/harden/internal/runtypes"
)

// processKobjects emits the kernel objects backing one process: an exit
// object, a klog object, its capability set, the process object, and the
// thread that runs it. It returns the thread's identifier so the caller
// can collect it into the top-level threads array.
func processKobjects(ids *identifierIterator, pid uint64, proc *runtypes.Process, entry uint64) (string, []statement) {
	exitName := ids.Next()
	klogName := ids.Next()
	capsetName := ids.Next()
	procName := ids.Next()
	threadName := ids.Next()

	return threadName, []statement{
		variableDefinition{typ: "exit_kobject", name: exitName},
		variableDefinition{typ: "klog_kobject", name: klogName, initArgs: []expression{litString(proc.Name)}},
		arrayDefinition{typ: "kobject * const", name: capsetName, initArgs: []expression{pointerTo(exitName), pointerTo(klogName)}},
		variableDefinition{typ: "process", name: procName, initArgs: []expression{litUnsigned(pid), pointerTo(capsetName)}},
		variableDefinition{
			typ:  "thread",
			name: threadName,
			initArgs: []expression{
				pointerTo(procName),
				litUnsigned(entry),
				litUnsigned(proc.StackPtr),
			},
		},
	}
}

// GenerateStateCPP emits state.cpp: the kernel object definitions for
// every user process, in ascending process-name order, and the threads
// array the kernel starts at boot. entries maps each process name to its
// ELF entry point.
func GenerateStateCPP(cfg *runtypes.Configuration, entries map[string]uint64) (string, error) {
	ids := &identifierIterator{}

	var threadNames []string
	var allStatements []statement

	pid := uint64(0)
	for _, name := range cfg.Processes.SortedNames() {
		proc := cfg.Processes[name]
		entry, ok := entries[name]
		if !ok {
			return "", buildererr.Newf(buildererr.ConfigParse, "no entry point known for process %q", name)
		}

		threadName, stmts := processKobjects(ids, pid, &proc, entry)
		threadNames = append(threadNames, threadName)
		allStatements = append(allStatements, stmts...)
		pid++
	}

	threadPtrs := make([]expression, len(threadNames))
	for i, n := range threadNames {
		threadPtrs[i] = pointerTo(n)
	}

	doc := []statement{
		include{header: "state.hpp"},
		include{header: "kobject_all.hpp"},
		anonNamespace{statements: allStatements},
		arrayDefinition{typ: "thread * const", name: "threads", initArgs: threadPtrs},
	}
	return renderStatements(doc), nil
}

// GenerateStateHPP emits state.hpp: the forward declaration of the
// threads array state.cpp defines.
func GenerateStateHPP(cfg *runtypes.Configuration) (string, error) {
	doc := []statement{
		pragmaOnce{},
		include{header: "thread.hpp"},
		arrayFwdDeclaration{typ: "thread * const", name: "threads", count: len(cfg.Processes)},
	}
	return renderStatements(doc), nil
}

// GenerateResources emits a resources table: for every process, its
// resolved resources and their virtual addresses (when mapped), so
// kernel-side drivers can locate their MMIO without parsing the original
// TOML configuration.
func GenerateResources(cfg *runtypes.Configuration) (string, error) {
	var allStatements []statement

	for _, name := range cfg.Processes.SortedNames() {
		proc := cfg.Processes[name]

		resNames := make([]string, 0, len(proc.Resources))
		for resName := range proc.Resources {
			resNames = append(resNames, resName)
		}
		sort.Strings(resNames)

		for _, resName := range resNames {
			res := proc.Resources[resName]
			varName := fmt.Sprintf("%s_%s_resource", name, resName)

			var addrExpr expression = litUnsigned(0)
			if res.HasRegion {
				addrExpr = litUnsigned(res.Region.VirtStart)
			}

			allStatements = append(allStatements, variableDefinition{
				typ:  "resource_meta",
				name: varName,
				initArgs: []expression{
					litString(name),
					litString(resName),
					addrExpr,
				},
			})
		}
	}

	doc := []statement{
		include{header: "resource_meta.hpp"},
		anonNamespace{statements: allStatements},
	}
	return renderStatements(doc), nil
}
