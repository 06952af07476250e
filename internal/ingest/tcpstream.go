package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"raidguard/internal/config"
	"raidguard/internal/model"
)

// StartTCP serves a newline-delimited gate protocol: each request line
// is a trigger attempt, each reply line is the decision.
//
//	-> TRIGGER 5f8b...
//	<- ALLOW 5f8b...
//	<- DENY 5f8b... 86392
func StartTCP(ctx context.Context, cfg *config.Manager, parser *Parser, gate Gate, logger *slog.Logger) {
	current := cfg.Get().Ingest.TCP
	if !current.Enabled {
		if logger != nil {
			logger.Info("tcp gate disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("tcp gate enabled", "addr", current.Addr)
	}
	ln, err := net.Listen("tcp", current.Addr)
	if err != nil {
		if logger != nil {
			logger.Error("tcp gate listen error", "err", err)
		}
		return
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				if logger != nil {
					logger.Warn("tcp gate accept error", "err", err)
				}
				continue
			}
			go handleGateConn(ctx, conn, parser, gate, logger)
		}
	}()
}

func handleGateConn(ctx context.Context, conn net.Conn, parser *Parser, gate Gate, logger *slog.Logger) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 8192), 1024*1024)
	for scanner.Scan() {
		ev, err := parser.ParseLine(scanner.Text())
		if err != nil {
			fmt.Fprintf(conn, "ERR %v\n", err)
			continue
		}
		if ev == nil {
			continue
		}
		ev.Source = "tcp"
		decision, err := Resolve(gate, *ev)
		if err != nil {
			fmt.Fprintf(conn, "ERR %v\n", err)
			continue
		}
		writeGateReply(conn, decision)
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	if err := scanner.Err(); err != nil && logger != nil {
		logger.Warn("tcp gate scanner error", "err", err)
	}
}

func writeGateReply(conn net.Conn, d model.Decision) {
	switch d.Verdict {
	case model.VerdictDenied:
		fmt.Fprintf(conn, "DENY %s %d\n", d.ActorID, int64(d.Remaining.Seconds()))
	case model.VerdictBypassed:
		fmt.Fprintf(conn, "BYPASS %s\n", d.ActorID)
	default:
		fmt.Fprintf(conn, "ALLOW %s\n", d.ActorID)
	}
}
