package conf

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdf2Salt and pbkdf2Iterations fix the passphrase-to-key derivation so
// the same on-disk passphrase always yields the same engine key on both
// ends of the tunnel.
const (
	pbkdf2Salt       = "wgobfs-obfuscation"
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32
)

// Obfuscation configures the keyed keystream applied to every relayed
// datagram. Key_ is the on-disk passphrase; Key is the derived engine key
// consumed by internal/codec and internal/obfuscation.
type Obfuscation struct {
	Key_         string `yaml:"key"`
	MaxDummyData int    `yaml:"max_dummy_data"`

	Key []byte `yaml:"-"`
}

func (o *Obfuscation) setDefaults() {
	if o.MaxDummyData == 0 {
		o.MaxDummyData = -1 // negative sentinel: codec.New applies its own default
	}
}

func (o *Obfuscation) validate() []error {
	var errors []error
	if o.Key_ == "" {
		errors = append(errors, fmt.Errorf("obfuscation key (passphrase) is required"))
		return errors
	}
	if o.MaxDummyData < -1 {
		errors = append(errors, fmt.Errorf("max_dummy_data must be >= 0"))
	}
	o.Key = DeriveKey(o.Key_)
	return errors
}

// DeriveKey turns an operator-supplied passphrase into the fixed-length
// key the obfuscation engine expects, via PBKDF2-HMAC-SHA256.
func DeriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), []byte(pbkdf2Salt), pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
}
