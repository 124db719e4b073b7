package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"verdant-core/internal/container"
)

// ValidationSummary aggregates every check performed after the
// initialization phases have run.
type ValidationSummary struct {
	TotalManagers     int
	ValidManagers     int
	InvalidManagers   int
	RecoveredManagers int
	DependenciesValid bool
	ContainerValid    bool
	Cycles            [][]string
	Errors            []string
	Valid             bool
}

// ValidationService rechecks manager state after bring-up: initialization
// flags, declared dependencies (missing and circular), custom self-checks,
// and the container's own diagnostics.
type ValidationService struct {
	logger          *zap.Logger
	container       *container.Container
	attemptRecovery bool
}

// NewValidationService creates a validation service. container may be nil
// when no container diagnostics are wanted. attemptRecovery grants each
// still-uninitialized manager one extra initialization attempt before it is
// reported invalid.
func NewValidationService(logger *zap.Logger, c *container.Container, attemptRecovery bool) *ValidationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ValidationService{logger: logger, container: c, attemptRecovery: attemptRecovery}
}

// Validate runs every check and returns a summary. Validation never mutates
// managers except for the optional one-shot recovery attempt.
func (v *ValidationService) Validate(ctx context.Context, descriptors []*Descriptor) ValidationSummary {
	summary := ValidationSummary{
		TotalManagers:     len(descriptors),
		DependenciesValid: true,
		ContainerValid:    true,
	}

	for _, d := range descriptors {
		if !d.Manager.IsInitialized() && v.attemptRecovery {
			if err := d.Manager.Initialize(ctx); err == nil {
				d.Initialized = true
				summary.RecoveredManagers++
				v.logger.Info("manager recovered during validation",
					zap.String("manager", d.Manager.Name()))
			}
		}

		valid := true
		if !d.Manager.IsInitialized() {
			valid = false
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("manager %q is not initialized", d.Manager.Name()))
		}
		if sv, ok := d.Manager.(SelfValidator); ok {
			if res := sv.ValidateState(); !res.Valid {
				valid = false
				for _, e := range res.Errors {
					summary.Errors = append(summary.Errors,
						fmt.Sprintf("manager %q self-check: %s", d.Manager.Name(), e))
				}
			}
		}
		if valid {
			summary.ValidManagers++
		} else {
			summary.InvalidManagers++
		}
	}

	v.validateDependencies(descriptors, &summary)

	if v.container != nil {
		if issues := v.container.Diagnose(); len(issues) > 0 {
			summary.ContainerValid = false
			summary.Errors = append(summary.Errors, issues...)
		}
	}

	summary.Valid = summary.InvalidManagers == 0 &&
		summary.DependenciesValid && summary.ContainerValid
	if summary.Valid {
		v.logger.Info("system validation passed",
			zap.Int("managers", summary.TotalManagers))
	} else {
		v.logger.Warn("system validation found issues",
			zap.Int("invalid_managers", summary.InvalidManagers),
			zap.Strings("errors", summary.Errors))
	}
	return summary
}

// validateDependencies checks declared manager dependencies for missing
// targets and cycles.
func (v *ValidationService) validateDependencies(descriptors []*Descriptor, summary *ValidationSummary) {
	known := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		known[d.Manager.Name()] = true
	}

	graph := make(map[string][]string)
	for _, d := range descriptors {
		name := d.Manager.Name()
		decl, ok := d.Manager.(DependencyDeclarer)
		if !ok {
			continue
		}
		for _, dep := range decl.Dependencies() {
			if !known[dep] {
				summary.DependenciesValid = false
				summary.Errors = append(summary.Errors,
					fmt.Sprintf("manager %q depends on unknown manager %q", name, dep))
				continue
			}
			graph[name] = append(graph[name], dep)
		}
	}

	cycles := detectCycles(graph)
	if len(cycles) > 0 {
		summary.DependenciesValid = false
		summary.Cycles = cycles
		for _, cycle := range cycles {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")))
		}
	}
}

// detectCycles runs a depth-first search over the dependency graph and
// returns each cycle found as the node path that closes it.
func detectCycles(graph map[string][]string) [][]string {
	const (
		white = iota // unvisited
		grey         // on the current path
		black        // fully explored
	)
	color := make(map[string]int)
	var cycles [][]string
	var path []string

	var visit func(node string)
	visit = func(node string) {
		color[node] = grey
		path = append(path, node)
		for _, dep := range graph[node] {
			switch color[dep] {
			case white:
				visit(dep)
			case grey:
				// Close the loop from where dep first appears on the path.
				start := 0
				for i, n := range path {
					if n == dep {
						start = i
						break
					}
				}
				cycle := append(append([]string{}, path[start:]...), dep)
				cycles = append(cycles, cycle)
			}
		}
		path = path[:len(path)-1]
		color[node] = black
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if color[node] == white {
			visit(node)
		}
	}
	return cycles
}
