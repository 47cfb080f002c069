package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/medtrack/claims-app/conf"
)

var (
	hashIter   int
	hashKeyLen int
	saltSize   int
)

// Note that changing CLAIMS_HASH_ITERATIONS or CLAIMS_HASH_KEY_LENGTH
// invalidates existing stored credential hashes.
func init() {
	hashIter = conf.GetEnvInt("CLAIMS_HASH_ITERATIONS", 130000)
	hashKeyLen = conf.GetEnvInt("CLAIMS_HASH_KEY_LENGTH", 64)
	saltSize = conf.GetEnvInt("CLAIMS_HASH_SALT_SIZE", 32)
}

// Hash is a cryptographically hashed string
type Hash string

// NewHash creates a Hash value from a source string.
// The hash value consists of the salt and hash separated by a colon ( : ).
// If the source of randomness fails it returns an error.
func NewHash(source string) (Hash, error) {
	if source == "" {
		return Hash(""), errors.New("empty string provided to hash function")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return Hash(""), err
	}

	h := pbkdf2.Key([]byte(source), salt, hashIter, hashKeyLen, sha512.New)

	return Hash(fmt.Sprintf("%s:%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(h))), nil
}

// IsHashOf accepts an unhashed string, which it first hashes and then
// compares to itself.
func (h Hash) IsHashOf(source string) bool {
	// Avoid comparing with an empty source so that a hash of an empty string
	// is never successful
	if source == "" {
		return false
	}

	saltAndHash := strings.Split(h.String(), ":")
	if len(saltAndHash) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(saltAndHash[0])
	if err != nil {
		return false
	}

	sourceHash := pbkdf2.Key([]byte(source), salt, hashIter, hashKeyLen, sha512.New)
	return saltAndHash[1] == base64.StdEncoding.EncodeToString(sourceHash)
}

func (h Hash) String() string {
	return string(h)
}
