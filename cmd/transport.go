// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/edhocd/gateway/api"
	"github.com/edhocd/gateway/internal/session"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// udpTransport drives one orchestrator over a UDP socket: read a datagram,
// hand it to the orchestrator, send back whatever it returns. limiter, if
// non-nil, bounds how often a new datagram is accepted, protecting the
// responder's message-1 handling against a flood of unauthenticated
// handshake attempts.
type udpTransport struct {
	conn    *net.UDPConn
	orch    *session.Orchestrator
	limiter *rate.Limiter
}

func newUDPTransport(addr string, orch *session.Orchestrator, limiter *rate.Limiter) (*udpTransport, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", addr, err)
	}
	return &udpTransport{conn: conn, orch: orch, limiter: limiter}, nil
}

// run serves datagrams until ctx is cancelled or the socket errors.
func (t *udpTransport) run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = t.conn.Close()
	}()

	buf := make([]byte, 2048)
	for {
		n, peer, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("udp read: %w", err)
		}
		if t.limiter != nil && !t.limiter.Allow() {
			slog.Debug("dropping datagram: rate limit exceeded", "peer", peer)
			continue
		}
		datagram := append([]byte(nil), buf[:n]...)
		resp := t.orch.HandleDatagram(datagram)
		if resp == nil {
			continue
		}
		if _, err := t.conn.WriteToUDP(resp, peer); err != nil {
			slog.Warn("udp write failed", "peer", peer, "error", err)
		}
	}
}

// serve runs the UDP transport loop and, if adminAddr is non-empty, the
// admin HTTP surface concurrently, stopping both on SIGINT/SIGTERM or
// whichever returns an error first.
func serve(transportAddr, adminAddr string, orch *session.Orchestrator, limiter *rate.Limiter) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t, err := newUDPTransport(transportAddr, orch, limiter)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.run(gctx) })

	if adminAddr != "" {
		srv := &http.Server{
			Addr:              adminAddr,
			Handler:           api.NewAdminRouter(func() *session.Orchestrator { return orch }),
			ReadHeaderTimeout: 3 * time.Second,
		}
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			slog.Info("admin HTTP surface listening", "addr", adminAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	slog.Info("listening", "transport", transportAddr)
	return g.Wait()
}
