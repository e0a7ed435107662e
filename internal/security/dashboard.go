package security

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/dbguard/internal/access"
	"github.com/odyssey-erp/dbguard/internal/audit"
	"github.com/odyssey-erp/dbguard/internal/vault"
)

// Dashboard aggregates per-component statistics with a coarse security level
// and heuristic recommendations. The payload is JSON-serializable for
// exposure over whatever endpoint the caller provides.
type Dashboard struct {
	AccessControl   access.Stats `json:"access_control"`
	AuditLogs       audit.Stats  `json:"audit_logs"`
	Encryption      vault.Stats  `json:"encryption"`
	SecurityLevel   string       `json:"security_level"`
	Recommendations []string     `json:"recommendations,omitempty"`
}

// Dashboard builds the security-status dashboard. Concurrent callers
// collapse onto a single build.
func (m *Manager) Dashboard(ctx context.Context) (Dashboard, error) {
	resultChan := m.dashboards.DoChan("dashboard", func() (any, error) {
		return m.buildDashboard(ctx)
	})
	select {
	case <-ctx.Done():
		return Dashboard{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return Dashboard{}, res.Err
		}
		return res.Val.(Dashboard), nil
	}
}

func (m *Manager) buildDashboard(ctx context.Context) (Dashboard, error) {
	var dash Dashboard

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		dash.AccessControl = m.access.Statistics()
		return nil
	})
	g.Go(func() error {
		dash.AuditLogs = m.audit.Statistics()
		return nil
	})
	g.Go(func() error {
		dash.Encryption = m.vault.Statistics()
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	dash.SecurityLevel = securityLevel(dash.AccessControl, dash.AuditLogs)
	dash.Recommendations = recommendations(dash.AccessControl, dash.AuditLogs)
	return dash, nil
}

// securityLevel scores the posture from the active-user ratio, audit success
// rate and session count.
func securityLevel(accessStats access.Stats, auditStats audit.Stats) string {
	score := 0

	userRatio := 0.0
	if accessStats.TotalUsers > 0 {
		userRatio = float64(accessStats.ActiveUsers) / float64(accessStats.TotalUsers)
	}
	switch {
	case userRatio > 0.8:
		score += 30
	case userRatio > 0.5:
		score += 20
	default:
		score += 10
	}

	successRate := auditStats.SuccessRate
	if auditStats.TotalEvents == 0 {
		successRate = 100
	}
	switch {
	case successRate > 95:
		score += 40
	case successRate > 90:
		score += 30
	default:
		score += 20
	}

	if accessStats.ActiveSessions < 100 {
		score += 30
	} else {
		score += 20
	}

	switch {
	case score >= 80:
		return "HIGH"
	case score >= 60:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// recommendations emits heuristic followups from the aggregated statistics.
func recommendations(accessStats access.Stats, auditStats audit.Stats) []string {
	var recs []string

	maxFailures := 0
	worstUser := ""
	for username, failures := range accessStats.FailedLoginAttempts {
		if failures > maxFailures {
			maxFailures = failures
			worstUser = username
		}
	}
	if maxFailures > 10 {
		recs = append(recs, fmt.Sprintf("Investigate repeated failed logins for %q (%d recent attempts)", worstUser, maxFailures))
	}

	if auditStats.TotalEvents > 0 && auditStats.SuccessRate < 90 {
		recs = append(recs, "Review failed operations - may indicate security issues or training needs")
	}

	if accessStats.ActiveSessions > 50 {
		recs = append(recs, "Monitor active sessions - consider session timeout policies")
	}

	return recs
}
