package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/captainzonks/GeneGnome/models"
)

// passwordAlphabet is alphanumeric plus symbols with ambiguous glyphs
// removed (0/O, 1/l/I, quotes) since the password is read out of an
// email and typed by hand.
const passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789!@#$%^&*-_=+?"

const tokenBytes = 32 // 256-bit download tokens

type SecurityService struct {
	Config *models.Config
}

func NewSecurityService(cfg *models.Config) *SecurityService {
	return &SecurityService{Config: cfg}
}

// GenerateToken returns a 256-bit URL-safe download token.
func (ss *SecurityService) GenerateToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// GeneratePassword draws the configured number of characters from the
// ambiguity-stripped alphabet.
func (ss *SecurityService) GeneratePassword() (string, error) {
	length := ss.Config.Download.PasswordLength
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}

// HashPassword derives an Argon2id hash in PHC string format:
// $argon2id$v=19$m=<KiB>,t=<time>,p=<lanes>$<b64 salt>$<b64 hash>.
// Parameters come from deployment config; only the hash is stored.
func (ss *SecurityService) HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	timeCost := ss.Config.Argon2.Time
	memory := ss.Config.Argon2.MemoryKiB
	lanes := ss.Config.Argon2.Parallelism

	hash := argon2.IDKey([]byte(password), salt, timeCost, memory, lanes, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memory, timeCost, lanes,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword recomputes the hash with the parameters embedded in
// the stored PHC string and compares in constant time.
func (ss *SecurityService) VerifyPassword(password string, encoded string) bool {
	parts := strings.Split(encoded, "$")
	// ["", "argon2id", "v=19", "m=..,t=..,p=..", salt, hash]
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, timeCost uint32
	var lanes uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &lanes); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	got := argon2.IDKey([]byte(password), salt, timeCost, memory, lanes, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
