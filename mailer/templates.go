package mailer

import (
	"fmt"
	"regexp"
	"time"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

func stripTags(html string) string {
	return tagPattern.ReplaceAllString(html, "")
}

// SendWelcome sends the post-registration welcome email.
func (m *Mailer) SendWelcome(name, email string) Outcome {
	if name == "" {
		name = email
	}
	subject := fmt.Sprintf("Welcome to %s!", m.siteName)
	body := fmt.Sprintf(`<h2>Welcome, %s!</h2>
<p>Your %s account is ready. Complete your profile and submit your KYC
documents to unlock the AI agent.</p>
<p><a href="%s/login">Log in to get started</a></p>`, name, m.siteName, m.siteURL)
	return m.send(subject, body, email)
}

// SendKYCApproved notifies a user that identity verification passed.
func (m *Mailer) SendKYCApproved(name, email string) Outcome {
	if name == "" {
		name = email
	}
	subject := "KYC Verified - You're All Set!"
	body := fmt.Sprintf(`<h2>Good news, %s!</h2>
<p>Your identity documents have been verified. You now have full access to
your AI agent configuration on %s.</p>`, name, m.siteName)
	return m.send(subject, body, email)
}

// SendKYCRejected notifies a user of rejection, including the stored reason.
func (m *Mailer) SendKYCRejected(name, email, reason string) Outcome {
	if name == "" {
		name = email
	}
	if reason == "" {
		reason = "No specific reason provided."
	}
	subject := "KYC Submission Update - Action Required"
	body := fmt.Sprintf(`<h2>Hi %s,</h2>
<p>Your KYC submission was not approved:</p>
<blockquote>%s</blockquote>
<p>Please log in to %s and resubmit your documents.</p>`, name, reason, m.siteName)
	return m.send(subject, body, email)
}

// SendExpiryWarning warns a user their subscription ends soon.
func (m *Mailer) SendExpiryWarning(name, email, packageName string, expiry time.Time, daysRemaining int) Outcome {
	if name == "" {
		name = email
	}
	if packageName == "" {
		packageName = "Your Plan"
	}
	plural := "s"
	if daysRemaining == 1 {
		plural = ""
	}
	subject := fmt.Sprintf("Your %s Subscription Expires in %d Day%s", m.siteName, daysRemaining, plural)
	body := fmt.Sprintf(`<h2>Hi %s,</h2>
<p>Your <strong>%s</strong> subscription expires on %s.</p>
<p>Renew now to keep your AI agent running without interruption.</p>`,
		name, packageName, expiry.Format("2006-01-02"))
	return m.send(subject, body, email)
}
