package mail

import "fmt"

// ComposePasswordReset builds the password-reset notification. The link
// carries the one-hour reset token issued by the token service.
func ComposePasswordReset(to, resetURL string) *Message {
	body := fmt.Sprintf(
		"A password reset was requested for your account.\n\n"+
			"To choose a new password, open the link below within one hour:\n\n%s\n\n"+
			"If you did not request this, you can ignore this message.\n",
		resetURL,
	)
	return &Message{
		To:      []string{to},
		Subject: "Password reset request",
		Body:    body,
	}
}
