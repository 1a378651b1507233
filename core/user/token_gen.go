package user

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	tokenEpoch = time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	tokenSalt  = []byte("myschool/user/password-reset")
	nowFunc    = time.Now // mockable

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// tokenGenerator makes and checks password reset tokens of the form "<ts>-<sig>", where ts
// is the base36 count of seconds since 2001 and sig signs ts with the user's credentials.
// A token stops working once the user logs in or changes password, and after timeout.
type tokenGenerator struct {
	secretKey []byte
	timeout   time.Duration
}

// EncodeUID encodes the id of usr for use in a reset link.
func EncodeUID(usr User) string {
	return base64.RawURLEncoding.EncodeToString([]byte(usr.ID))
}

func decodeUID(uid string) (string, error) {
	id, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

func (g tokenGenerator) makeToken(usr User) string {
	return g.tokenAt(usr, secondsSinceEpoch(nowFunc()))
}

func (g tokenGenerator) verifyToken(usr User, token string) error {
	i := strings.IndexByte(token, '-')
	if i <= 0 {
		return errInvalidToken
	}
	ts, err := strconv.ParseInt(token[:i], 36, 64)
	if err != nil || ts < 0 {
		return errInvalidToken
	}
	if !hmac.Equal([]byte(g.tokenAt(usr, ts)), []byte(token)) {
		return errInvalidToken
	}
	if secondsSinceEpoch(nowFunc())-ts > int64(g.timeout/time.Second) {
		return errTokenExpired
	}
	return nil
}

func (g tokenGenerator) tokenAt(usr User, ts int64) string {
	return strconv.FormatInt(ts, 36) + "-" + g.sign(usr, ts)
}

func (g tokenGenerator) sign(usr User, ts int64) string {
	key := sha256.Sum256(append(append([]byte{}, tokenSalt...), g.secretKey...))
	mac := hmac.New(sha256.New, key[:])

	// length prefixes keep the fields from bleeding into each other
	for _, field := range [][]byte{
		[]byte(usr.ID),
		usr.PasswordHash,
		[]byte(lastLoginStamp(usr)),
	} {
		_ = binary.Write(mac, binary.BigEndian, uint32(len(field)))
		mac.Write(field)
	}
	_ = binary.Write(mac, binary.BigEndian, ts)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func lastLoginStamp(usr User) string {
	if usr.LastLogin.IsZero() {
		return ""
	}
	return usr.LastLogin.UTC().Format(time.RFC3339Nano)
}

func secondsSinceEpoch(t time.Time) int64 {
	return int64(t.Sub(tokenEpoch) / time.Second)
}
