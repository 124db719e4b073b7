package bootstrap

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"verdant-core/internal/container"
)

// Overall is the aggregate health classification of a bootstrap run.
type Overall string

const (
	OverallHealthy  Overall = "healthy"
	OverallWarning  Overall = "warning"
	OverallCritical Overall = "critical"
)

// ServiceStatus is the checklist verdict for one expected service.
type ServiceStatus struct {
	Name       string `json:"name"`
	Critical   bool   `json:"critical"`
	Registered bool   `json:"registered"`
	Resolvable bool   `json:"resolvable"`
	NilImpl    bool   `json:"nilImplementation"`
	Error      string `json:"error,omitempty"`
}

// Healthy reports whether this service passed every check.
func (s ServiceStatus) Healthy() bool {
	return s.Registered && s.Resolvable && !s.NilImpl
}

// HealthReport summarizes the post-bootstrap checklist.
type HealthReport struct {
	TotalServices      int             `json:"totalServices"`
	HealthyServices    int             `json:"healthyServices"`
	CriticalFailures   int             `json:"criticalFailures"`
	NilImplementations int             `json:"nilImplementations"`
	Statuses           []ServiceStatus `json:"statuses"`
	Errors             []string        `json:"errors,omitempty"`
	Overall            Overall         `json:"overall"`
}

// evaluateChecklist resolves every expected service and classifies the
// outcome: any critical failure makes the report critical, non-critical
// failures degrade it to warning.
func (b *Bootstrapper) evaluateChecklist(c *container.Container) *HealthReport {
	report := &HealthReport{
		TotalServices: len(b.checklist),
		Overall:       OverallHealthy,
	}

	for _, item := range b.checklist {
		status := ServiceStatus{Name: item.Name, Critical: item.Critical}
		status.Registered = c.IsRegisteredType(item.Capability)

		if status.Registered {
			instance, err := c.ResolveType(item.Capability)
			switch {
			case err != nil:
				status.Error = err.Error()
			case isNilInstance(instance):
				status.NilImpl = true
				status.Error = "registered implementation is nil"
				report.NilImplementations++
			default:
				status.Resolvable = true
			}
		} else {
			status.Error = "service is not registered"
		}

		if status.Healthy() {
			report.HealthyServices++
		} else {
			msg := fmt.Sprintf("service %q: %s", item.Name, status.Error)
			report.Errors = append(report.Errors, msg)
			if item.Critical {
				report.CriticalFailures++
				report.Overall = OverallCritical
			} else if report.Overall == OverallHealthy {
				report.Overall = OverallWarning
			}
		}
		report.Statuses = append(report.Statuses, status)
	}
	return report
}

func (b *Bootstrapper) logReport(report *HealthReport) {
	fields := []zap.Field{
		zap.Int("total", report.TotalServices),
		zap.Int("healthy", report.HealthyServices),
		zap.Int("critical_failures", report.CriticalFailures),
		zap.Int("nil_implementations", report.NilImplementations),
		zap.String("overall", string(report.Overall)),
	}
	switch report.Overall {
	case OverallCritical:
		b.logger.Error("bootstrap health report", append(fields, zap.Strings("errors", report.Errors))...)
	case OverallWarning:
		b.logger.Warn("bootstrap health report", append(fields, zap.Strings("errors", report.Errors))...)
	default:
		b.logger.Info("bootstrap health report", fields...)
	}
}

// isNilInstance catches both untyped nil and typed-nil pointers hiding
// behind interface values.
func isNilInstance(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
