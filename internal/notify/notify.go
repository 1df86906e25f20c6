// Package notify renders and delivers facility-owner e-mails and operator
// alerts. Delivery is fire-and-forget: failures are logged and returned but
// never retried.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/k3a/html2text"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/pkg/resend"
)

// Kind names an owner notification.
type Kind string

const (
	KindWelcome             Kind = "welcome"
	KindDowngrade           Kind = "downgrade"
	KindUpgradeOpportunity  Kind = "upgrade_opportunity"
	KindGrandfatherReminder Kind = "grandfather_reminder"
)

var subjects = map[Kind]string{
	KindWelcome:             "Welcome to CareAudit",
	KindDowngrade:           "Important update about your listing on CareAudit",
	KindUpgradeOpportunity:  "Great news: your facility now qualifies for a Featured listing",
	KindGrandfatherReminder: "Your grandfathered rate expires next month",
}

// ErrNoRecipient is returned when a notification has no address to go to.
var ErrNoRecipient = eris.New("notify: no recipient")

// Params carries the values a notification template may reference. Rates
// are in cents.
type Params struct {
	FacilityID   string
	FacilityName string
	City         string
	Jurisdiction string
	Tier         model.Tier
	PreviousTier model.Tier
	Token        string
	OldCount     *int
	NewCount     int
	Ceiling      int
	CurrentRate  int64
	NewRate      int64
	ExpiryDate   time.Time
}

// FacilityParams fills the facility fields of Params from f.
func FacilityParams(f *model.Facility) Params {
	p := Params{
		FacilityID:   f.ID,
		FacilityName: f.Name,
		City:         f.City,
		Jurisdiction: f.Jurisdiction,
		Tier:         f.SponsorTier,
		Token:        f.OnboardingToken,
	}
	if f.ViolationCount != nil {
		p.NewCount = *f.ViolationCount
	}
	return p
}

// Notifier sends one owner notification.
type Notifier interface {
	Notify(ctx context.Context, to string, kind Kind, p Params) error
}

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"button": func(label, url string) map[string]string {
		return map[string]string{"Label": label, "URL": url}
	},
	"plural": func(n int, one, many string) string {
		if n == 1 {
			return one
		}
		return many
	},
	"money": money,
}

func money(cents int64) string {
	if cents%100 == 0 {
		return fmt.Sprintf("$%d", cents/100)
	}
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// Message is a rendered notification.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer turns a Kind and Params into a Message.
type Renderer struct {
	siteURL   string
	templates map[Kind]*template.Template
}

// NewRenderer parses the embedded templates. siteURL prefixes every link.
func NewRenderer(siteURL string) (*Renderer, error) {
	r := &Renderer{
		siteURL:   strings.TrimRight(siteURL, "/"),
		templates: make(map[Kind]*template.Template, len(subjects)),
	}
	for kind := range subjects {
		t, err := template.New(string(kind)).Funcs(funcs).ParseFS(templateFS,
			"templates/layout.html", "templates/"+string(kind)+".html")
		if err != nil {
			return nil, eris.Wrapf(err, "notify: parse %s template", kind)
		}
		r.templates[kind] = t
	}
	return r, nil
}

type view struct {
	Params
	SiteURL          string
	TierName         string
	PreviousTierName string
	OnboardURL       string
	ResponseURL      string
	PortalURL        string
	OptionsURL       string
}

// Render builds the subject, HTML body and plain-text body for kind.
func (r *Renderer) Render(kind Kind, p Params) (*Message, error) {
	t, ok := r.templates[kind]
	if !ok {
		return nil, eris.Errorf("notify: unknown kind %q", kind)
	}
	v := view{
		Params:           p,
		SiteURL:          r.siteURL,
		TierName:         p.Tier.DisplayName(),
		PreviousTierName: p.PreviousTier.DisplayName(),
		OnboardURL:       r.siteURL + "/onboard/" + p.Token,
		ResponseURL:      r.siteURL + "/facility-response/" + p.Token,
		PortalURL:        r.siteURL + "/api/stripe/portal",
		OptionsURL:       r.siteURL + "/for-facilities",
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", v); err != nil {
		return nil, eris.Wrapf(err, "notify: render %s", kind)
	}
	subject := subjects[kind]
	if kind == KindWelcome && p.Tier != "" {
		subject += ": " + p.Tier.DisplayName()
	}
	html := buf.String()
	return &Message{
		Subject: subject,
		HTML:    html,
		Text:    html2text.HTML2Text(html),
	}, nil
}

// Dispatcher renders notifications and sends them through Resend.
type Dispatcher struct {
	client   resend.Client
	renderer *Renderer
	from     string
	replyTo  string
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(client resend.Client, renderer *Renderer, from, replyTo string) *Dispatcher {
	return &Dispatcher{client: client, renderer: renderer, from: from, replyTo: replyTo}
}

// Notify renders kind and sends it to the given address. A failure is logged
// and returned; callers treat it as non-fatal.
func (d *Dispatcher) Notify(ctx context.Context, to string, kind Kind, p Params) error {
	log := zap.L().With(
		zap.String("kind", string(kind)),
		zap.String("facility_id", p.FacilityID),
	)
	if strings.TrimSpace(to) == "" {
		log.Info("notify: no recipient, skipping")
		return ErrNoRecipient
	}

	msg, err := d.renderer.Render(kind, p)
	if err != nil {
		log.Error("notify: render failed", zap.Error(err))
		return err
	}

	email := resend.Email{
		From:    d.from,
		To:      []string{to},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: d.replyTo,
	}
	id, err := d.client.Send(ctx, email)
	if err != nil {
		log.Warn("notify: send failed", zap.Error(err))
		return eris.Wrapf(err, "notify: send %s", kind)
	}
	log.Info("notify: sent", zap.String("message_id", id))
	return nil
}
