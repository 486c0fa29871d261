package email

import (
	"context"
	"net"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_RejectsHeaderInjection(t *testing.T) {
	svc := NewService("smtp.example.com", "25", "shop@example.com")
	calls := 0
	svc.sendMail = func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		calls++
		return nil
	}

	for _, to := range []string{
		"alice@example.com\r\nBcc: everyone@example.com",
		"alice@example.com\nSubject: free perfume",
		"not an address",
	} {
		err := svc.SendOrderConfirmation(context.Background(), to, OrderSummary{Reference: "PF-1"})
		assert.ErrorIs(t, err, ErrInvalidRecipient, to)
	}
	assert.Zero(t, calls)
}

func TestService_SendsBareAddress(t *testing.T) {
	svc := NewService("smtp.example.com", "25", "shop@example.com")
	var gotTo []string
	var gotMsg string
	svc.sendMail = func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotTo, gotMsg = to, string(msg)
		return nil
	}

	err := svc.SendOrderConfirmation(context.Background(), "Alice <alice@example.com>", OrderSummary{Reference: "PF-1"})

	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "To: alice@example.com\r\n")
}

func TestService_SilentRelayTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		// accept and never greet
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	svc := NewService(host, port, "shop@example.com").WithTimeout(100 * time.Millisecond)

	start := time.Now()
	err = svc.SendOrderConfirmation(context.Background(), "alice@example.com", OrderSummary{Reference: "PF-1"})

	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
