package database

import (
	"testing"

	"github.com/referral-intake/platform/pkg/common/config"
	"github.com/stretchr/testify/assert"
)

func TestConnectionSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{
		PostgresHost:     "db",
		PostgresPort:     "5433",
		PostgresUser:     "intake",
		PostgresPassword: "pw",
		PostgresDB:       "referrals",
		PostgresSSLMode:  "require",
		RedisHost:        "cache",
		RedisPort:        "6380",
		RedisDB:          2,
	}

	assert.Equal(t, "host=db user=intake password=pw dbname=referrals port=5433 sslmode=require", PostgresDSN(cfg))

	opts := RedisOptions(cfg)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
}
