package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowLoginGuide explains where credentials come from and how they are stored
func ShowLoginGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "INSTAGRAM LOGIN")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "igcrawler logs in with a username and password before every run and")
	fmt.Fprintln(w, "keeps the resulting session cookies in memory only.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Credentials are looked up in this order:")
	fmt.Fprintln(w, "  1. --username / --password flags or the config file")
	fmt.Fprintln(w, "  2. the account saved with 'igcrawler auth login'")
	fmt.Fprintln(w, "     (system keychain, or an encrypted file in the config directory)")
	fmt.Fprintln(w, "  3. IGCRAWLER_USERNAME and IGCRAWLER_PASSWORD")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The encrypted file is keyed by IGCRAWLER_PASSPHRASE when set, otherwise")
	fmt.Fprintln(w, "by a random passphrase generated next to it on first use.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Accounts that require a checkpoint or two-factor challenge cannot log in")
	fmt.Fprintln(w, "here; complete the challenge in a browser first.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
