package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
)

// AlertType identifies the kind of operator alert.
type AlertType string

const (
	AlertEscalations   AlertType = "escalations"
	AlertBillingErrors AlertType = "billing_errors"
)

// Alert is a single operator alert.
type Alert struct {
	Type    AlertType
	Title   string
	Message string
}

// OpsAlerter evaluates a finished run and posts alerts to shoutrrr service
// URLs. A nil *OpsAlerter is a no-op.
type OpsAlerter struct {
	sender *router.ServiceRouter
}

// NewOpsAlerter builds an alerter for urls. With no urls it returns nil.
func NewOpsAlerter(urls []string, timeout time.Duration) (*OpsAlerter, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		// shoutrrr errors can echo the URL, which carries tokens.
		return nil, eris.New("notify: invalid ops alert url")
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))
	return &OpsAlerter{sender: sender}, nil
}

// Evaluate returns the alerts a run summary warrants. escalated lists the
// review entries the run created.
func Evaluate(s model.RunSummary, escalated []model.ReviewEntry) []Alert {
	var alerts []Alert
	scope := s.Job
	if s.Jurisdiction != "" {
		scope += " " + s.Jurisdiction
	}

	if s.Escalated > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "%d of %d facilities need manual review", s.Escalated, s.Processed)
		for i, e := range escalated {
			if i == 10 {
				fmt.Fprintf(&b, "\n... and %d more", len(escalated)-i)
				break
			}
			fmt.Fprintf(&b, "\n- %s (%s): %s", e.FacilityName, e.Stage, firstLine(e.Reason))
		}
		alerts = append(alerts, Alert{
			Type:    AlertEscalations,
			Title:   "careaudit " + scope + ": escalations",
			Message: b.String(),
		})
	}

	if s.BillingErrors > 0 {
		alerts = append(alerts, Alert{
			Type:    AlertBillingErrors,
			Title:   "careaudit " + scope + ": billing errors",
			Message: fmt.Sprintf("%d billing sync errors; facility data was updated regardless", s.BillingErrors),
		})
	}
	return alerts
}

// RunFinished evaluates s and sends the resulting alerts. It returns the
// number delivered.
func (a *OpsAlerter) RunFinished(ctx context.Context, s model.RunSummary, escalated []model.ReviewEntry) int {
	if a == nil {
		return 0
	}
	return a.Send(ctx, Evaluate(s, escalated))
}

// Send delivers alerts, logging failures.
func (a *OpsAlerter) Send(_ context.Context, alerts []Alert) int {
	if a == nil || len(alerts) == 0 {
		return 0
	}
	sent := 0
	for _, alert := range alerts {
		params := types.Params{}
		params.SetTitle(alert.Title)
		if err := firstErr(a.sender.Send(alert.Message, &params)); err != nil {
			zap.L().Error("notify: failed to send ops alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

func firstErr(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 160 {
		s = s[:160]
	}
	return s
}
