// Command assertion mints a development identity assertion signed with the
// shared HMAC secret. For local testing against services configured with
// identity.hmac_secret; production assertions come from the membership
// identity provider.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"ballotbox.org/internal/identity"
)

func main() {
	log.SetFlags(0)
	var (
		secret  = flag.String("secret", "dev-secret-change-me", "HMAC secret shared with the services")
		subject = flag.String("subject", "member-1", "subject id")
		roles   = flag.String("roles", "member", "comma-separated roles")
		ttl     = flag.Duration("ttl", time.Hour, "assertion lifetime")
	)
	flag.Parse()

	token, err := identity.Mint(*secret, *subject, strings.Split(*roles, ","), *ttl)
	if err != nil {
		log.Fatalf("mint: %v", err)
	}
	fmt.Println(token)
}
