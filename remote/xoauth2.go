package remote

import "github.com/emersion/go-sasl"

// xoauth2 implements the SASL XOAUTH2 mechanism used by Gmail and Outlook
// for token based logins. The initial response carries the whole exchange:
// "user=<user>\x01auth=Bearer <token>\x01\x01".
type xoauth2 struct {
	username string
	token    string
}

func NewXOAuth2(username, token string) sasl.Client {
	return &xoauth2{
		username: username,
		token:    token,
	}
}

func (c *xoauth2) Start() (string, []byte, error) {
	ir := []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next is never called: XOAUTH2 has no challenge-response step.
func (c *xoauth2) Next(challenge []byte) ([]byte, error) {
	return nil, nil
}
