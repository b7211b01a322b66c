package lib

import (
	"fmt"
	"math/rand"
	"time"
)

const charset = "abcdefghijklmnopqrstuvwxyz " +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 " +
	",./;'\\ \" []{}<>?:|!@£$%^&*()_+-= "

const template = "From: %s\r\n" +
	"To: %s\r\n" +
	"Subject: %s\r\n" +
	"Date: Wed, 11 May 2022 14:31:59 +0000\r\n" +
	"Message-ID: <%d@localhost/>\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n%s"

var seededRand *rand.Rand = rand.New(
	rand.NewSource(time.Now().UnixMilli()))

func stringWithCharset(length int, charset string) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[seededRand.Intn(len(charset))]
	}
	return string(b)
}

// GenerateEmail returns a plain text RFC 5322 message with a random body.
func GenerateEmail(from, to, subject string, uid uint32) []byte {
	length := seededRand.Intn(3000)
	msg := fmt.Sprintf(template, from, to, subject, uid, stringWithCharset(length, charset))
	return []byte(msg)
}
