package email

import (
	"fmt"
	"html/template"
	"strings"
)

// Template tags, also used as deferred task names by the scheduler.
const (
	TagSubscriptionCanceled = "subscription-canceled"
	TagGroupMemberRemoved   = "group-member-removed"
	TagGroupInvite          = "group-invite"
)

var (
	cancellationTmpl = template.Must(template.New(TagSubscriptionCanceled).Parse(`
<p>Hi,</p>
<p>Your subscription has been canceled. You keep access to your paid
features until the end of the current billing period.</p>
<p>Changed your mind? You can reactivate from your subscription page any
time before the period ends.</p>`))

	memberRemovedTmpl = template.Must(template.New(TagGroupMemberRemoved).Parse(`
<p>Hi,</p>
<p>You have been removed from the group subscription{{if .GroupName}}
<strong>{{.GroupName}}</strong>{{end}}. Your account and your work remain
yours; only the features granted by the group plan are affected.</p>`))

	groupInviteTmpl = template.Must(template.New(TagGroupInvite).Parse(`
<p>Hi,</p>
<p>{{.InviterName}} has invited you to join their group subscription.</p>
<p><a href="{{.InviteURL}}">Accept the invitation</a></p>`))
)

// CancellationEmail renders the cancellation notification.
func CancellationEmail(to string) (SendParams, error) {
	return render(to, "Your subscription has been canceled", TagSubscriptionCanceled, cancellationTmpl, nil)
}

// MemberRemovedEmail renders the removed-from-group notification.
func MemberRemovedEmail(to, groupName string) (SendParams, error) {
	return render(to, "You have been removed from a group subscription", TagGroupMemberRemoved,
		memberRemovedTmpl, struct{ GroupName string }{groupName})
}

// GroupInviteEmail renders the group invitation.
func GroupInviteEmail(to, inviterName, inviteURL string) (SendParams, error) {
	return render(to, fmt.Sprintf("%s has invited you to a group subscription", inviterName), TagGroupInvite,
		groupInviteTmpl, struct{ InviterName, InviteURL string }{inviterName, inviteURL})
}

func render(to, subject, tag string, tmpl *template.Template, data any) (SendParams, error) {
	var body strings.Builder
	if err := tmpl.Execute(&body, data); err != nil {
		return SendParams{}, fmt.Errorf("render %s: %w", tag, err)
	}
	return SendParams{
		SendTo:   to,
		Subject:  subject,
		BodyHTML: body.String(),
		Tag:      tag,
	}, nil
}
