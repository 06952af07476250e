package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"raidguard/internal/model"
)

// Parser turns raw trigger lines into TriggerEvents. Accepted forms:
// a JSON object, "TRIGGER <uuid>", or a bare UUID.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) ParseLine(line string) (*model.TriggerEvent, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		return parseJSONBytes([]byte(trimmed))
	}
	fields := strings.Fields(trimmed)
	switch len(fields) {
	case 1:
		return &model.TriggerEvent{ActorID: fields[0], Raw: line}, nil
	case 2:
		if !strings.EqualFold(fields[0], "trigger") {
			return nil, fmt.Errorf("unknown keyword %q", fields[0])
		}
		return &model.TriggerEvent{ActorID: fields[1], Raw: line}, nil
	default:
		return nil, errors.New("unparseable trigger line")
	}
}

func parseJSONBytes(data []byte) (*model.TriggerEvent, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	lower := make(map[string]string, len(obj))
	for key, val := range obj {
		lower[strings.ToLower(key)] = fmt.Sprint(val)
	}
	ev := &model.TriggerEvent{Raw: string(data)}
	ev.ActorID = firstNonEmpty(lower, "actor_id", "actor", "player_id", "player", "uuid")
	ev.EventID = firstNonEmpty(lower, "event_id", "id")
	if ev.ActorID == "" {
		return nil, errors.New("trigger event missing actor id")
	}
	return ev, nil
}

func firstNonEmpty(fields map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := fields[key]; v != "" {
			return v
		}
	}
	return ""
}
