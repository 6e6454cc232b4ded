// Command keytool encrypts venue API credentials into the password-protected
// file format the bot reads through venues.<name>.encrypted_creds_path. It
// can also verify an existing file by decrypting it and printing the key ID.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cexarb/arbot/internal/crypto"
)

func main() {
	out := flag.String("out", "", "output path for the encrypted credentials file")
	verify := flag.String("verify", "", "decrypt an existing file and print its key ID")
	flag.Parse()

	switch {
	case *verify != "":
		runVerify(*verify)
	case *out != "":
		runEncrypt(*out)
	default:
		fmt.Fprintln(os.Stderr, "usage: keytool -out <file> | keytool -verify <file>")
		os.Exit(2)
	}
}

func runEncrypt(path string) {
	reader := bufio.NewReader(os.Stdin)

	apiKey := prompt(reader, "API key: ")
	apiSecret := prompt(reader, "API secret: ")
	passphrase := prompt(reader, "Passphrase (leave empty if the venue has none): ")
	password := prompt(reader, "Encryption password: ")
	confirm := prompt(reader, "Confirm password: ")

	if password != confirm {
		fatal("passwords do not match")
	}

	blob, err := crypto.EncryptCredentials(crypto.Credentials{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		Passphrase: passphrase,
	}, password)
	if err != nil {
		fatal("encrypt: %v", err)
	}

	if err := os.WriteFile(path, blob, 0o600); err != nil {
		fatal("write %s: %v", path, err)
	}
	fmt.Printf("encrypted credentials written to %s\n", path)
}

func runVerify(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fatal("read %s: %v", path, err)
	}

	password := prompt(bufio.NewReader(os.Stdin), "Encryption password: ")
	creds, err := crypto.DecryptCredentials(data, password)
	if err != nil {
		fatal("decrypt: %v", err)
	}

	fmt.Printf("ok: key ID %s\n", redactKey(creds.APIKey))
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		fatal("read input: %v", err)
	}
	return strings.TrimSpace(line)
}

// redactKey shows only enough of the key to identify it.
func redactKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "keytool: "+format+"\n", args...)
	os.Exit(1)
}
