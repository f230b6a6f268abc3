package db

import (
	"context"
	"testing"
)

func TestNewPool_BadURL(t *testing.T) {
	_, err := NewPool(context.Background(), PoolConfig{URL: "postgres://%zz"})
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewPool_Unreachable(t *testing.T) {
	_, err := NewPool(context.Background(), PoolConfig{
		URL:      "postgres://hr:hr@127.0.0.1:1/hr?connect_timeout=1",
		MaxConns: 2,
	})
	if err == nil {
		t.Fatal("expected ping error")
	}
}
