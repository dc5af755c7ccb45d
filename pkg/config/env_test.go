package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("INSTANCE_ID", "")
	if got := GetEnv("INSTANCE_ID", "social.example"); got != "social.example" {
		t.Fatalf("expected social.example, got %s", got)
	}
	t.Setenv("INSTANCE_ID", "fosstodon.org")
	if got := GetEnv("INSTANCE_ID", "social.example"); got != "fosstodon.org" {
		t.Fatalf("expected fosstodon.org, got %s", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("SENTIMENT_BATCH_SIZE", "")
	if got := GetEnvInt("SENTIMENT_BATCH_SIZE", 100); got != 100 {
		t.Fatalf("expected 100, got %d", got)
	}
	t.Setenv("SENTIMENT_BATCH_SIZE", "250")
	if got := GetEnvInt("SENTIMENT_BATCH_SIZE", 100); got != 250 {
		t.Fatalf("expected 250, got %d", got)
	}
	t.Setenv("SENTIMENT_BATCH_SIZE", "lots")
	if got := GetEnvInt("SENTIMENT_BATCH_SIZE", 100); got != 100 {
		t.Fatalf("expected 100 on parse error, got %d", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("ENABLE_POLLING", "")
	if !GetEnvBool("ENABLE_POLLING", true) {
		t.Fatal("expected true default")
	}
	t.Setenv("ENABLE_POLLING", "false")
	if GetEnvBool("ENABLE_POLLING", true) {
		t.Fatal("expected false")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("SENTIMENT_INTERVAL", "")
	if got := GetEnvDuration("SENTIMENT_INTERVAL", 5*time.Minute); got != 5*time.Minute {
		t.Fatalf("expected 5m default, got %s", got)
	}
	t.Setenv("SENTIMENT_INTERVAL", "90s")
	if got := GetEnvDuration("SENTIMENT_INTERVAL", 5*time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %s", got)
	}
	t.Setenv("SENTIMENT_INTERVAL", "soon")
	if got := GetEnvDuration("SENTIMENT_INTERVAL", 5*time.Minute); got != 5*time.Minute {
		t.Fatalf("expected 5m on parse error, got %s", got)
	}
}

func TestGetLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"":      logrus.InfoLevel,
	}
	for value, want := range cases {
		t.Setenv("LOG_LEVEL", value)
		if got := GetLogLevel(); got != want {
			t.Fatalf("LOG_LEVEL=%q: expected %s, got %s", value, want, got)
		}
	}
}

func TestLoadEnvWithoutDotenvFile(t *testing.T) {
	// No .env in the test working directory; must not panic or error
	LoadEnv(logrus.New())
}
