package email

import "strings"

// Template is a pre-rendered mail: the subject line plus an HTML body
// with %placeholder% markers.
type Template struct {
	Subject string
	Body    string
}

// Render substitutes %key% markers in both subject and body.
func (t Template) Render(vars map[string]string) Template {
	subject, body := t.Subject, t.Body
	for key, value := range vars {
		marker := "%" + key + "%"
		subject = strings.ReplaceAll(subject, marker, value)
		body = strings.ReplaceAll(body, marker, value)
	}
	return Template{Subject: subject, Body: body}
}

// RegisterTemplate is the default verification-code mail.
var RegisterTemplate = Template{
	Subject: "Your registration code",
	Body: `<html><body>
<p>Hi %nickname%,</p>
<p>Use this code to finish registering <b>%email%</b>:</p>
<p style="font-size:1.4em"><code>%verifyCode%</code></p>
<p>The code expires shortly. If you did not request it, ignore this mail.</p>
</body></html>`,
}
