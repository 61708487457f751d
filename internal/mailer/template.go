package mailer

import "html/template"

type templateData struct {
	SenderEmail string
	FileName    string
	FileSize    string
	Message     string
	DownloadURL string
}

var transferTemplate = template.Must(template.New("transfer").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
  </head>
  <body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
    <table role="presentation" style="width: 100%; border-collapse: collapse;">
      <tr>
        <td align="center" style="padding: 40px 0;">
          <table role="presentation" style="width: 600px; border-collapse: collapse; background-color: #ffffff; border-radius: 8px;">
            <tr>
              <td style="padding: 40px 40px 20px 40px;">
                <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #111827;">You've Received a Secure File</h1>
              </td>
            </tr>
            <tr>
              <td style="padding: 0 40px 20px 40px;">
                <p style="margin: 0 0 16px 0; font-size: 16px; line-height: 24px; color: #374151;">
                  <strong>{{.SenderEmail}}</strong> has sent you a secure file through SecureTransfer.
                </p>
                <div style="background-color: #f9fafb; border-left: 4px solid #3b82f6; padding: 16px; margin: 24px 0; border-radius: 4px;">
                  <p style="margin: 0 0 8px 0; font-size: 14px; color: #6b7280;">File Details:</p>
                  <p style="margin: 0 0 4px 0; font-size: 16px; font-weight: 600; color: #111827;">{{.FileName}}</p>
                  <p style="margin: 0; font-size: 14px; color: #6b7280;">Size: {{.FileSize}}</p>
                </div>
                {{- if .Message}}
                <div style="background-color: #fffbeb; border-left: 4px solid #f59e0b; padding: 16px; margin: 24px 0; border-radius: 4px;">
                  <p style="margin: 0 0 8px 0; font-size: 14px; color: #92400e; font-weight: 600;">Message from sender:</p>
                  <p style="margin: 0; font-size: 14px; color: #78350f; line-height: 20px;">{{.Message}}</p>
                </div>
                {{- end}}
              </td>
            </tr>
            <tr>
              <td style="padding: 0 40px 40px 40px;" align="center">
                <a href="{{.DownloadURL}}" style="display: inline-block; padding: 14px 32px; background-color: #3b82f6; color: #ffffff; text-decoration: none; border-radius: 6px; font-weight: 600; font-size: 16px;">Download File Now</a>
                <p style="margin: 16px 0 0 0; font-size: 14px; line-height: 20px; color: #6b7280; text-align: center;">
                  Click the button above to access your file directly. No signup required!
                </p>
              </td>
            </tr>
            <tr>
              <td style="padding: 20px 40px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
                <p style="margin: 0; font-size: 12px; line-height: 18px; color: #6b7280; text-align: center;">
                  This email was sent by SecureTransfer. If you didn't expect this file, you can safely ignore this email.
                </p>
              </td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>
`))
