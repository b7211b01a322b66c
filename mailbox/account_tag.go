package mailbox

import (
	"crypto/sha256"
	"encoding/hex"
)

// AccountTag makes a stable identifier from a server and username, safe to
// use as a storage key without leaking the account in clear text.
func AccountTag(serverURL, username string) string {
	hasher := sha256.New()
	hasher.Write([]byte(username))
	hasher.Write([]byte(":"))
	hasher.Write([]byte(serverURL))
	hasher.Write([]byte("\n"))
	return hex.EncodeToString(hasher.Sum(nil))
}
