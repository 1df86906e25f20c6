package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/careaudit-cli/internal/model"
	"github.com/sells-group/careaudit-cli/pkg/resend"
	resendmocks "github.com/sells-group/careaudit-cli/pkg/resend/mocks"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer("https://careaudit.org/")
	require.NoError(t, err)
	return r
}

func TestRender_AllKinds(t *testing.T) {
	r := newRenderer(t)
	for kind := range subjects {
		msg, err := r.Render(kind, Params{FacilityName: "Sunrise Manor", Tier: model.TierFeatured})
		require.NoError(t, err, kind)
		assert.NotEmpty(t, msg.Subject)
		assert.Contains(t, msg.HTML, "Sunrise Manor")
		assert.Contains(t, msg.Text, "Sunrise Manor")
		assert.NotContains(t, msg.Text, "<p>")
	}
}

func TestRender_UnknownKind(t *testing.T) {
	_, err := newRenderer(t).Render(Kind("bogus"), Params{})
	require.Error(t, err)
}

func TestRender_WelcomeLinksByTier(t *testing.T) {
	r := newRenderer(t)

	msg, err := r.Render(KindWelcome, Params{FacilityName: "A", Tier: model.TierFeatured, Token: "tok-1", City: "Tampa"})
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "https://careaudit.org/onboard/tok-1")
	assert.Contains(t, msg.HTML, "Tampa")
	assert.Equal(t, "Welcome to CareAudit: Featured Verified", msg.Subject)

	msg, err = r.Render(KindWelcome, Params{FacilityName: "A", Tier: model.TierResponseOnly, Token: "tok-3"})
	require.NoError(t, err)
	assert.Contains(t, msg.HTML, "https://careaudit.org/facility-response/tok-3")
	assert.NotContains(t, msg.HTML, "/onboard/")
}

func TestRender_Downgrade(t *testing.T) {
	old := 2
	msg, err := newRenderer(t).Render(KindDowngrade, Params{
		FacilityName: "Oak House",
		City:         "Miami",
		Jurisdiction: "FL",
		PreviousTier: model.TierFeatured,
		OldCount:     &old,
		NewCount:     5,
		Ceiling:      3,
	})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "from 2 to 5")
	assert.Contains(t, msg.Text, "Featured Verified")
	assert.Contains(t, msg.Text, "3 or fewer")

	msg, err = newRenderer(t).Render(KindDowngrade, Params{FacilityName: "Oak House", NewCount: 5, Ceiling: 3})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "now has 5 violations")
}

func TestRender_UpgradePlural(t *testing.T) {
	r := newRenderer(t)
	msg, err := r.Render(KindUpgradeOpportunity, Params{FacilityName: "A", NewCount: 1})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "1 violation")
	assert.NotContains(t, msg.Text, "1 violations")

	msg, err = r.Render(KindUpgradeOpportunity, Params{FacilityName: "A", NewCount: 0})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "0 violations")
}

func TestRender_GrandfatherReminder(t *testing.T) {
	msg, err := newRenderer(t).Render(KindGrandfatherReminder, Params{
		FacilityName: "A",
		CurrentRate:  9900,
		NewRate:      14950,
		ExpiryDate:   time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Contains(t, msg.Text, "$99/month")
	assert.Contains(t, msg.Text, "$149.50/month")
	assert.Contains(t, msg.Text, "March 4, 2026")
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "$0", money(0))
	assert.Equal(t, "$49", money(4900))
	assert.Equal(t, "$49.05", money(4905))
}

func TestFacilityParams(t *testing.T) {
	n := 4
	p := FacilityParams(&model.Facility{ID: "f1", Name: "A", City: "Tampa", Jurisdiction: "FL", SponsorTier: model.TierVerified, ViolationCount: &n})
	assert.Equal(t, "f1", p.FacilityID)
	assert.Equal(t, model.TierVerified, p.Tier)
	assert.Equal(t, 4, p.NewCount)
}

func TestDispatcher_Notify(t *testing.T) {
	client := resendmocks.NewMockClient(t)
	client.On("Send", mock.Anything, mock.MatchedBy(func(e resend.Email) bool {
		return e.From == "CareAudit <noreply@careaudit.org>" &&
			len(e.To) == 1 && e.To[0] == "owner@example.com" &&
			e.ReplyTo == "help@careaudit.org" &&
			e.HTML != "" && e.Text != ""
	})).Return("msg_1", nil).Once()

	d := NewDispatcher(client, newRenderer(t), "CareAudit <noreply@careaudit.org>", "help@careaudit.org")
	err := d.Notify(context.Background(), "owner@example.com", KindUpgradeOpportunity, Params{FacilityName: "A"})
	require.NoError(t, err)
}

func TestDispatcher_NoRecipient(t *testing.T) {
	client := resendmocks.NewMockClient(t)
	d := NewDispatcher(client, newRenderer(t), "from", "")
	err := d.Notify(context.Background(), "  ", KindWelcome, Params{})
	require.ErrorIs(t, err, ErrNoRecipient)
	client.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatcher_SendFailure(t *testing.T) {
	client := resendmocks.NewMockClient(t)
	client.On("Send", mock.Anything, mock.Anything).Return("", &resend.APIError{StatusCode: 422, Body: "bad"}).Once()

	d := NewDispatcher(client, newRenderer(t), "from", "")
	err := d.Notify(context.Background(), "a@b.c", KindWelcome, Params{Tier: model.TierVerified})
	require.Error(t, err)
	var apiErr *resend.APIError
	assert.True(t, errors.As(err, &apiErr))
}
