package core

// planner.go computes the batch-wide processing order over the entity types
// detected across all files, against the static dependency graph.

import (
	"fmt"
	"sort"
)

// Plan is a dependency-safe processing order. Tiers group entities at the
// same depth; entities in one tier may import concurrently, tiers run
// strictly in sequence.
type Plan struct {
	Order    []string
	Tiers    [][]string
	Warnings []string
}

// BuildPlan orders the present entity types so every type appears after all
// its present dependencies. Dependencies not present in the batch are
// ignored, since nothing in the batch can wait on them. Cycles degrade
// to "no strict ordering" among their members and are reported as warnings,
// never hidden.
//
// Ties at the same depth break by declaration order, then name.
func BuildPlan(present []string, graph map[string][]string, declOrder []string) Plan {
	presentSet := make(map[string]bool, len(present))
	for _, e := range present {
		presentSet[e] = true
	}

	declIdx := make(map[string]int, len(declOrder))
	for i, name := range declOrder {
		declIdx[name] = i
	}

	var plan Plan
	cycleSeen := make(map[string]bool)

	depths := make(map[string]int, len(present))
	for _, e := range present {
		visited := make(map[string]bool)
		depths[e] = depthOf(e, graph, presentSet, visited, func(at string) {
			if !cycleSeen[at] {
				cycleSeen[at] = true
				plan.Warnings = append(plan.Warnings,
					fmt.Sprintf("dependency cycle involving %q: ordering within the cycle is not guaranteed", at))
			}
		})
	}

	maxDepth := 0
	for _, d := range depths {
		if d > maxDepth {
			maxDepth = d
		}
	}

	tiers := make([][]string, maxDepth+1)
	for _, e := range present {
		tiers[depths[e]] = append(tiers[depths[e]], e)
	}

	for _, tier := range tiers {
		sort.SliceStable(tier, func(i, j int) bool {
			di, iOK := declIdx[tier[i]]
			dj, jOK := declIdx[tier[j]]
			if iOK && jOK && di != dj {
				return di < dj
			}
			if iOK != jOK {
				return iOK
			}
			return tier[i] < tier[j]
		})
	}

	for _, tier := range tiers {
		if len(tier) == 0 {
			continue
		}
		plan.Tiers = append(plan.Tiers, tier)
		plan.Order = append(plan.Order, tier...)
	}
	return plan
}

// depthOf computes the dependency depth of an entity restricted to present
// types. A revisit within one traversal means a cycle: it contributes depth
// 0 instead of recursing forever, and onCycle reports it.
func depthOf(entity string, graph map[string][]string, present map[string]bool, visited map[string]bool, onCycle func(string)) int {
	if visited[entity] {
		onCycle(entity)
		return 0
	}
	visited[entity] = true
	defer delete(visited, entity)

	depth := 0
	for _, dep := range graph[entity] {
		if !present[dep] {
			continue
		}
		if d := depthOf(dep, graph, present, visited, onCycle) + 1; d > depth {
			depth = d
		}
	}
	return depth
}
