// Command extid prints the stable extension id and the options redirect URL
// for a manifest key, optionally generating the key and patching it into
// manifest.json.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/optionsauth/internal/extid"
)

type options struct {
	publicKey string
	pemPath   string
	generate  bool
	manifest  string
	scheme    string
}

func main() {
	var o options
	flag.StringVar(&o.publicKey, "key", os.Getenv("CRX_PUBLIC_KEY"), "manifest public key (base64 DER)")
	flag.StringVar(&o.pemPath, "pem", "key.pem", "private key file")
	flag.BoolVar(&o.generate, "generate", false, "generate a new key pair and write it to -pem")
	flag.StringVar(&o.manifest, "manifest", "", "manifest.json to patch with the public key")
	flag.StringVar(&o.scheme, "scheme", extid.DefaultScheme, "extension url scheme")
	flag.Parse()

	if err := run(o, os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(o options, w io.Writer) error {
	key, err := resolveKey(o)
	if err != nil {
		return err
	}

	id, err := extid.IDFromPublicKey(key)
	if err != nil {
		return err
	}

	if o.manifest != "" {
		if err := extid.PatchManifest(o.manifest, key); err != nil {
			return err
		}
		fmt.Fprintf(w, "Patched %s\n", o.manifest)
	}

	fmt.Fprintf(w, "Extension ID: %s\n", id)
	fmt.Fprintf(w, "Redirect URL: %s\n", extid.RedirectURL(o.scheme, id))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# .env")
	fmt.Fprintf(w, "CRX_PUBLIC_KEY=%s\n", key)
	return nil
}

// resolveKey picks the public key from -key, a freshly generated pair, or
// the private key at -pem, in that order.
func resolveKey(o options) (string, error) {
	switch {
	case o.publicKey != "" && !o.generate:
		return o.publicKey, nil

	case o.generate:
		k, err := extid.GenerateKey()
		if err != nil {
			return "", err
		}
		if err := extid.WritePrivateKey(o.pemPath, k); err != nil {
			return "", fmt.Errorf("write %s: %w", o.pemPath, err)
		}
		return k.PublicKey, nil

	default:
		data, err := os.ReadFile(o.pemPath)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", o.pemPath, err)
		}
		k, err := extid.ParsePrivateKeyPEM(data)
		if err != nil {
			return "", err
		}
		return k.PublicKey, nil
	}
}
