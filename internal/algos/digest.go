// Package algos maps digest algorithms to their wire identities: the
// numeric algorithm id used by the agent's SETHASH command and, for the
// algorithms a smartcard can use, the --hash option name understood by
// the card daemon.
package algos

import (
	"crypto"

	_ "crypto/md5"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	_ "golang.org/x/crypto/ripemd160"

	"code.keywarden.org/golang/internal/utils"
)

// Digest describes one registered digest algorithm.
type Digest struct {
	// ID is the numeric algorithm id expected by SETHASH.
	ID int

	// CardName is the --hash option name for card signing, empty when
	// the card daemon does not accept this algorithm.
	CardName string
}

var digestRegistry *utils.Registry[crypto.Hash, Digest]

// MustRegisterDigest adds d to the Digest registry. It panics if hash is
// already registered or has no linked implementation.
func MustRegisterDigest(hash crypto.Hash, d Digest) {
	err := RegisterDigest(hash, d)
	if nil != err {
		panic(err)
	}
}

// RegisterDigest adds d to the Digest registry. It errors if hash is
// already registered or has no linked implementation.
func RegisterDigest(hash crypto.Hash, d Digest) error {
	if !hash.Available() {
		return newError("missing implementation for Hash %v", hash)
	}
	return wrapError(
		utils.RegistrySet(digestRegistry, hash, d),
		"failed registering digest algorithm %v",
		hash,
	)
}

// GetDigest loads the Digest registered for hash. It errors if hash is
// not registered.
func GetDigest(hash crypto.Hash) (Digest, error) {
	d, found := utils.RegistryGet(digestRegistry, hash)
	if !found {
		return d, newError("unsupported digest algorithm %v", hash)
	}
	return d, nil
}

// GetCardDigest loads the Digest registered for hash and errors unless
// the card daemon accepts it.
func GetCardDigest(hash crypto.Hash) (Digest, error) {
	d, err := GetDigest(hash)
	if nil != err {
		return d, err
	}
	if "" == d.CardName {
		return Digest{}, newError("digest algorithm %v not usable for card signing", hash)
	}
	return d, nil
}

func init() {
	digestRegistry = utils.NewRegistry[crypto.Hash, Digest]()

	// numeric ids follow the agent's algorithm numbering
	MustRegisterDigest(crypto.MD5, Digest{ID: 1, CardName: "md5"})
	MustRegisterDigest(crypto.SHA1, Digest{ID: 2, CardName: "sha1"})
	MustRegisterDigest(crypto.RIPEMD160, Digest{ID: 3, CardName: "rmd160"})
	MustRegisterDigest(crypto.SHA256, Digest{ID: 8, CardName: "sha256"})
	MustRegisterDigest(crypto.SHA384, Digest{ID: 9})
	MustRegisterDigest(crypto.SHA512, Digest{ID: 10})
	MustRegisterDigest(crypto.SHA224, Digest{ID: 11})
}
