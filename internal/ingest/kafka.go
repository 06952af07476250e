package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"raidguard/internal/config"
	"raidguard/internal/model"
)

// StartKafka consumes trigger-attempt events from a topic and runs them
// through the gate. Decisions are recorded in the journal like any other
// source; there is no reply channel.
func StartKafka(ctx context.Context, cfg *config.Manager, parser *Parser, gate Gate, logger *slog.Logger) {
	current := cfg.Get().Ingest.Kafka
	if !current.Enabled {
		if logger != nil {
			logger.Info("kafka trigger source disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("kafka trigger source enabled", "brokers", current.Brokers, "topic", current.Topic, "group_id", current.GroupID)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  current.Brokers,
		Topic:    current.Topic,
		GroupID:  current.GroupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	seen := newSeenCache()
	go func() {
		defer reader.Close()
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if logger != nil {
					logger.Warn("kafka read error", "err", err)
				}
				continue
			}
			ev, err := parser.ParseLine(string(m.Value))
			if err != nil || ev == nil {
				if err != nil && logger != nil {
					logger.Warn("kafka trigger parse error", "err", err)
				}
				continue
			}
			ev.Source = "kafka"
			if ttl := cfg.Get().Ingest.DedupeWindow(); ttl > 0 {
				if seen.Seen(dedupeKey(*ev, m.Value), time.Now().UTC(), ttl) {
					continue
				}
			}
			if _, err := Resolve(gate, *ev); err != nil && logger != nil {
				logger.Warn("kafka trigger rejected", "err", err)
			}
		}
	}()
}

func dedupeKey(ev model.TriggerEvent, value []byte) string {
	if ev.EventID != "" {
		return ev.EventID
	}
	h := sha256.Sum256(value)
	return hex.EncodeToString(h[:])
}
