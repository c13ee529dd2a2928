package provider

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	localCodeLength     = 6
	localMaxCheckTries  = 5
	localKeyPrefix      = "smsverify:code:"
	localTriesKeyPrefix = "smsverify:tries:"
)

// Local generates codes itself, keeps their bcrypt hash in Redis with a TTL,
// and hands the SMS to a Sender. It enforces expiry and a per-code attempt cap.
type Local struct {
	rdb    *redis.Client
	sender Sender
	ttl    time.Duration
}

// NewLocal creates a Local provider.
func NewLocal(rdb *redis.Client, sender Sender, ttl time.Duration) *Local {
	return &Local{rdb: rdb, sender: sender, ttl: ttl}
}

// SendChallenge replaces any outstanding code for phone and delivers a fresh one.
func (p *Local) SendChallenge(ctx context.Context, phone string) (SendResult, error) {
	code, err := generateCode(localCodeLength)
	if err != nil {
		return SendResult{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return SendResult{}, fmt.Errorf("local: hash code: %w", err)
	}

	pipe := p.rdb.TxPipeline()
	pipe.Set(ctx, localKeyPrefix+phone, hash, p.ttl)
	pipe.Del(ctx, localTriesKeyPrefix+phone)
	if _, err := pipe.Exec(ctx); err != nil {
		return SendResult{}, fmt.Errorf("local: store code: %w", err)
	}

	if err := p.sender.Send(ctx, phone, fmt.Sprintf("Your verification code is %s", code)); err != nil {
		p.rdb.Del(ctx, localKeyPrefix+phone)
		return SendResult{}, fmt.Errorf("local: deliver code: %w", err)
	}
	return SendResult{Accepted: true, Status: "pending"}, nil
}

// CheckChallenge compares code with the stored hash and consumes it on success.
func (p *Local) CheckChallenge(ctx context.Context, phone, code string) (CheckResult, error) {
	hash, err := p.rdb.Get(ctx, localKeyPrefix+phone).Bytes()
	if errors.Is(err, redis.Nil) {
		return CheckResult{Status: "expired"}, nil
	}
	if err != nil {
		return CheckResult{}, fmt.Errorf("local: load code: %w", err)
	}

	pipe := p.rdb.TxPipeline()
	incr := pipe.Incr(ctx, localTriesKeyPrefix+phone)
	pipe.ExpireNX(ctx, localTriesKeyPrefix+phone, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return CheckResult{}, fmt.Errorf("local: count attempt: %w", err)
	}
	if tries := incr.Val(); tries > localMaxCheckTries {
		p.rdb.Del(ctx, localKeyPrefix+phone, localTriesKeyPrefix+phone)
		return CheckResult{Status: "max_attempts_reached"}, nil
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(code)) != nil {
		return CheckResult{Status: "pending"}, nil
	}

	p.rdb.Del(ctx, localKeyPrefix+phone, localTriesKeyPrefix+phone)
	return CheckResult{Verified: true, Status: "approved"}, nil
}

// generateCode produces an N-digit numeric string using crypto/rand.
func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("local: generate code: %w", err)
		}
		digits[i] = '0' + byte(n.Int64())
	}
	return string(digits), nil
}
