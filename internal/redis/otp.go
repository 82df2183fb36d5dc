package redis

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	civic_errors "civic-polls/pkg/errors"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// OTP key pattern:
// - otp:{phone} - hash {code_hash, full_name, attempts}, TTL = code lifetime

const codeDigits = 6

// failAttemptScript counts a wrong guess against the code that was read. It
// never recreates an expired or replaced entry, so the hash keeps its TTL.
var failAttemptScript = goredis.NewScript(`
if redis.call('HGET', KEYS[1], 'code_hash') ~= ARGV[1] then
	return -1
end
local n = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
if n >= tonumber(ARGV[2]) then
	redis.call('DEL', KEYS[1])
end
return n
`)

type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
	BcryptCost  int
}

func DefaultOTPConfig() OTPConfig {
	return OTPConfig{
		TTL:         5 * time.Minute,
		MaxAttempts: 5,
		BcryptCost:  bcrypt.DefaultCost,
	}
}

// OTPStore keeps one pending sign-in code per phone number. Only the bcrypt
// hash of the code is stored.
type OTPStore struct {
	client *goredis.Client
	config OTPConfig
}

func NewOTPStore(client *goredis.Client, config OTPConfig) *OTPStore {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &OTPStore{client: client, config: config}
}

func otpKey(phone string) string {
	return fmt.Sprintf("otp:%s", phone)
}

// Issue generates a fresh code for phone, replacing any pending one, and
// returns it in clear text for delivery.
func (s *OTPStore) Issue(ctx context.Context, phone, fullName string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.config.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	key := otpKey(phone)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]interface{}{
			"code_hash": string(hash),
			"full_name": fullName,
			"attempts":  0,
		})
		pipe.Expire(ctx, key, s.config.TTL)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// Verify checks code against the pending one for phone. A match consumes the
// code and returns the signup metadata stored with it.
func (s *OTPStore) Verify(ctx context.Context, phone, code string) (string, error) {
	key := otpKey(phone)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return "", err
	}
	hash, ok := fields["code_hash"]
	if !ok {
		return "", civic_errors.ErrCodeExpired
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		return "", s.failAttempt(ctx, key, hash)
	}

	// Del doubles as the single-use guard when two requests race.
	deleted, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return "", err
	}
	if deleted == 0 {
		return "", civic_errors.ErrCodeExpired
	}
	return fields["full_name"], nil
}

// failAttempt records a wrong code. It returns ErrCodeExpired when the entry
// is gone or was reissued since it was read, ErrUnauthorized otherwise.
func (s *OTPStore) failAttempt(ctx context.Context, key, hash string) error {
	n, err := failAttemptScript.Run(ctx, s.client, []string{key}, hash, s.config.MaxAttempts).Int64()
	if err != nil {
		return err
	}
	if n < 0 {
		return civic_errors.ErrCodeExpired
	}
	return civic_errors.ErrUnauthorized
}

func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
