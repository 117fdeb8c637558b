// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// InvitationEmailData holds data for the invitation email.
type InvitationEmailData struct {
	SiteName         string
	OrganizationName string
	Role             string
	AcceptLink       string
	ExpiresIn        string // e.g., "7 days"
}

// BuildInvitationEmail creates an invitation email with both HTML and text bodies.
func BuildInvitationEmail(to string, data InvitationEmailData) Email {
	return Email{
		To:       to,
		Subject:  fmt.Sprintf("You're invited to %s on %s", data.OrganizationName, data.SiteName),
		TextBody: buildInvitationText(data),
		HTMLBody: buildInvitationHTML(data),
	}
}

func buildInvitationText(data InvitationEmailData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "You have been invited to join %s on %s as %s.\n\n", data.OrganizationName, data.SiteName, data.Role)
	buf.WriteString("Accept the invitation here:\n")
	buf.WriteString(data.AcceptLink + "\n\n")
	fmt.Fprintf(&buf, "This invitation expires in %s.\n\n", data.ExpiresIn)
	buf.WriteString("If you were not expecting this email, you can safely ignore it.\n")
	return buf.String()
}

var invitationTmpl = template.Must(template.New("invitation").Parse(invitationHTMLTemplate))

func buildInvitationHTML(data InvitationEmailData) string {
	var buf bytes.Buffer
	_ = invitationTmpl.Execute(&buf, data)
	return buf.String()
}

const invitationHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Invitation</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px;">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 24px; font-size: 16px; color: #374151; line-height: 1.5;">
                You have been invited to join <strong>{{.OrganizationName}}</strong> as {{.Role}}.
              </p>
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center">
                    <a href="{{.AcceptLink}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 16px; font-weight: 500; border-radius: 6px;">
                      Accept invitation
                    </a>
                  </td>
                </tr>
              </table>
              <p style="margin: 24px 0 0; font-size: 13px; color: #9ca3af; text-align: center;">
                This invitation expires in {{.ExpiresIn}}.
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`
